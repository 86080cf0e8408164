package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all runtime configuration for the gateway.
type Config struct {
	Addr string

	// Identity of the embedding application, as understood by the
	// verification SDK. Both fall back to development defaults so the
	// service boots without any environment set.
	AppID  string
	Action string

	// VerificationLevel requested from the SDK widget.
	VerificationLevel string

	// DedicatedClientMarker is the token in a User-Agent string that
	// identifies the Serenity dedicated client.
	DedicatedClientMarker string

	// ScriptSources are the ordered CDN mirrors for the SDK bundle.
	ScriptSources []string

	// CandidateTimeout bounds a single mirror fetch attempt.
	CandidateTimeout time.Duration

	// MaxLoadCycles caps full passes over the mirror list. Cycles after
	// the first use cache-busted URLs.
	MaxLoadCycles int

	// CallbackBase is where successful verifications redirect to.
	// CallbackBaseDev is used when the request host is loopback.
	CallbackBase    string
	CallbackBaseDev string

	JWTSigningKey string
	StateTokenTTL time.Duration

	// AppSecretHash is the bcrypt hash of the app API secret. Empty
	// disables app authentication (development mode).
	AppSecretHash string

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// RedisConfig holds connection settings for the optional bundle cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BundleTTL    time.Duration
}

// PostgresConfig holds connection settings for the optional session store.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig holds connection settings for the optional audit publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
// Every value has a development fallback.
func FromEnv() Config {
	cfg := Config{
		Addr:                  getenv("VERIFY_GATEWAY_ADDR", ":8080"),
		AppID:                 getenv("VERIFY_APP_ID", "app_serenity_dev"),
		Action:                getenv("VERIFY_ACTION", "serenity-home"),
		VerificationLevel:     getenv("VERIFY_LEVEL", "orb"),
		DedicatedClientMarker: getenv("VERIFY_CLIENT_MARKER", "SerenityApp"),
		CandidateTimeout:      getduration("VERIFY_CANDIDATE_TIMEOUT", 10*time.Second),
		MaxLoadCycles:         getint("VERIFY_MAX_LOAD_CYCLES", 3),
		CallbackBase:          getenv("VERIFY_CALLBACK_BASE", "https://app.serenity.example/verified"),
		CallbackBaseDev:       getenv("VERIFY_CALLBACK_BASE_DEV", "http://localhost:3000/verified"),
		JWTSigningKey:         getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		StateTokenTTL:         getduration("VERIFY_STATE_TTL", 10*time.Minute),
		AppSecretHash:         os.Getenv("VERIFY_APP_SECRET_HASH"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getint("REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			BundleTTL:    getduration("VERIFY_BUNDLE_TTL", 15*time.Minute),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Brokers: getlist("KAFKA_BROKERS"),
			Topic:   getenv("KAFKA_AUDIT_TOPIC", "verify.audit"),
		},
	}

	cfg.ScriptSources = getlist("VERIFY_SCRIPT_SOURCES")
	if len(cfg.ScriptSources) == 0 {
		cfg.ScriptSources = []string{
			"https://cdn.idkit.example/v2/idkit.js",
			"https://cdn-fallback.idkit.example/v2/idkit.js",
			"https://static.serenity.example/vendor/idkit.js",
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getlist(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
