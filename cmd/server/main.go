// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Business logic lives in internal services
// packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"verify-gateway/internal/audit"
	"verify-gateway/internal/device"
	"verify-gateway/internal/platform/config"
	"verify-gateway/internal/platform/httpserver"
	"verify-gateway/internal/platform/kafka"
	"verify-gateway/internal/platform/logger"
	"verify-gateway/internal/platform/metrics"
	platformredis "verify-gateway/internal/platform/redis"
	"verify-gateway/internal/sdk"
	sdkcache "verify-gateway/internal/sdk/cache"
	sdkmetrics "verify-gateway/internal/sdk/metrics"
	"verify-gateway/internal/statetoken"
	httptransport "verify-gateway/internal/transport/http"
	"verify-gateway/internal/verification"
	verificationstore "verify-gateway/internal/verification/store"
	"verify-gateway/internal/widget"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	}

	producer, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
		log.Info("kafka connected", "topic", cfg.Kafka.Topic)
	}

	var auditStore audit.Store = audit.NewInMemoryStore()
	var sessionStore verification.Store = verificationstore.NewInMemoryStore()
	if cfg.Postgres.DSN != "" {
		pgAudit, err := audit.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("postgres audit store failed", "error", err)
			os.Exit(1)
		}
		defer pgAudit.Close()
		auditStore = pgAudit

		pgSessions, err := verificationstore.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("postgres session store failed", "error", err)
			os.Exit(1)
		}
		defer pgSessions.Close()
		sessionStore = pgSessions
		log.Info("postgres connected")
	}

	auditor := audit.NewPublisher(auditStore, 256)
	if producer != nil {
		worker := audit.NewWorker(producer, cfg.Kafka.Topic, auditor.Events(), log)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit worker stopped", "error", err)
			}
		}()
	}

	sources, err := sdk.NewSources(cfg.ScriptSources...)
	if err != nil {
		log.Error("invalid script sources", "error", err)
		os.Exit(1)
	}
	loaderOpts := []sdk.Option{
		sdk.WithCandidateTimeout(cfg.CandidateTimeout),
		sdk.WithMaxCycles(cfg.MaxLoadCycles),
		sdk.WithLogger(log),
		sdk.WithMetrics(sdkmetrics.New()),
	}
	if redisClient != nil {
		loaderOpts = append(loaderOpts, sdk.WithCache(sdkcache.NewRedisCache(redisClient, cfg.Redis.BundleTTL)))
	}
	loader := sdk.NewLoader(sources, loaderOpts...)

	svc := verification.New(
		verification.Config{
			AppID:             cfg.AppID,
			Action:            cfg.Action,
			VerificationLevel: cfg.VerificationLevel,
			CallbackBase:      cfg.CallbackBase,
			CallbackBaseDev:   cfg.CallbackBaseDev,
		},
		loader,
		widget.NewBootstrap(loader),
		device.NewDetector(cfg.DedicatedClientMarker),
		device.NewService(true),
		sessionStore,
		statetoken.NewService(cfg.JWTSigningKey, cfg.StateTokenTTL),
		auditor,
		m,
		log,
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Service:       svc,
		Logger:        log,
		Metrics:       m,
		Redis:         redisClient,
		AppSecretHash: cfg.AppSecretHash,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting verify-gateway", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("verify-gateway stopped")
}
