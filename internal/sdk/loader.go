// Package sdk fetches the third-party verification SDK bundle from a list
// of CDN mirrors. One load is in flight process-wide at any time; every
// concurrent caller shares its outcome. A successful load is memoized for
// the process lifetime and mirrored into the bundle cache; a failed load
// leaves no state behind so the next call starts a fresh cycle.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	sdkmetrics "verify-gateway/internal/sdk/metrics"
	"verify-gateway/pkg/platform/sentinel"
)

// Bundle is one fetched copy of the SDK script.
type Bundle struct {
	Script    []byte    `json:"script"`
	SourceURL string    `json:"source_url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache is the durable marker for an already-fetched bundle. Implementations
// return sentinel.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context) (*Bundle, error)
	Put(ctx context.Context, b *Bundle) error
}

const (
	defaultCandidateTimeout = 10 * time.Second
	defaultMaxCycles        = 3
)

// Loader owns the process-wide singleton load operation.
type Loader struct {
	sources   Sources
	client    *http.Client
	timeout   time.Duration
	maxCycles int
	cache     Cache
	logger    *slog.Logger
	metrics   *sdkmetrics.Metrics
	tracer    trace.Tracer

	group  singleflight.Group
	mu     sync.RWMutex
	bundle *Bundle
}

// Option configures the Loader.
type Option func(*Loader)

// WithHTTPClient overrides the HTTP client used for candidate fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithCandidateTimeout bounds a single candidate fetch.
func WithCandidateTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// WithMaxCycles caps full passes over the candidate list.
func WithMaxCycles(n int) Option {
	return func(l *Loader) { l.maxCycles = n }
}

// WithCache attaches a durable bundle cache consulted before any network cycle.
func WithCache(c Cache) Option {
	return func(l *Loader) { l.cache = c }
}

// WithLogger sets the logger for absorbed per-candidate failures.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.logger = log }
}

// WithMetrics attaches loader metrics.
func WithMetrics(m *sdkmetrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// NewLoader builds a Loader over the given candidate sources.
func NewLoader(sources Sources, opts ...Option) *Loader {
	l := &Loader{
		sources:   sources,
		client:    &http.Client{},
		timeout:   defaultCandidateTimeout,
		maxCycles: defaultMaxCycles,
		logger:    slog.Default(),
		tracer:    otel.Tracer("verify-gateway/internal/sdk"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the SDK bundle, fetching it if no load has succeeded yet.
// It is idempotent and safe for concurrent use: callers arriving while a
// load is in flight block until that load settles and observe its outcome.
func (l *Loader) Load(ctx context.Context) (*Bundle, error) {
	if b := l.memoized(); b != nil {
		return b, nil
	}

	v, err, _ := l.group.Do("sdk-bundle", func() (any, error) {
		// Re-check after winning the flight: a previous holder may have
		// settled between our fast-path check and entering the group.
		if b := l.memoized(); b != nil {
			return b, nil
		}

		start := time.Now()
		b, err := l.loadOnce(ctx)
		if err != nil {
			// Nothing is memoized on failure; the group forgets the key
			// once we return, so the next call starts a fresh cycle.
			return nil, err
		}
		l.memoize(b)
		l.metrics.ObserveLoad(time.Since(start).Seconds())
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bundle), nil
}

// Loaded reports whether a bundle is already available without triggering a load.
func (l *Loader) Loaded() bool {
	return l.memoized() != nil
}

func (l *Loader) memoized() *Bundle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bundle
}

func (l *Loader) memoize(b *Bundle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.bundle == nil {
		l.bundle = b
	}
}

// loadOnce runs the cache check plus up to maxCycles passes over the
// candidate list. Only total exhaustion surfaces to the caller.
func (l *Loader) loadOnce(ctx context.Context) (*Bundle, error) {
	ctx, span := l.tracer.Start(ctx, "sdk.load")
	defer span.End()

	if l.cache != nil {
		b, err := l.cache.Get(ctx)
		switch {
		case err == nil:
			l.metrics.IncCacheHit()
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return b, nil
		case errors.Is(err, sentinel.ErrNotFound):
			// fall through to the network
		default:
			l.logger.WarnContext(ctx, "bundle cache read failed", "error", err)
		}
	}

	var lastErr error
	for cycle := 0; cycle < l.maxCycles; cycle++ {
		for i := 0; i < l.sources.Len(); i++ {
			candidate := l.sources.URL(i, cycle)
			b, err := l.fetchCandidate(ctx, candidate, cycle)
			if err == nil {
				l.metrics.IncAttempt("success")
				if l.cache != nil {
					if cerr := l.cache.Put(ctx, b); cerr != nil {
						l.logger.WarnContext(ctx, "bundle cache write failed", "error", cerr)
					}
				}
				return b, nil
			}

			lastErr = err
			var ce *CandidateError
			if errors.As(err, &ce) {
				l.metrics.IncAttempt(string(ce.Reason))
			}
			l.logger.WarnContext(ctx, "sdk candidate failed",
				"url", candidate,
				"cycle", cycle,
				"error", err,
			)

			// A cancelled parent means the caller is gone; stop cycling.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}

	l.metrics.IncExhaustion()
	span.RecordError(lastErr)
	return nil, fmt.Errorf("%w after %d cycles: %v", ErrExhausted, l.maxCycles, lastErr)
}

// fetchCandidate fetches one mirror with a bounded wait. A network error
// returns immediately; a slow mirror is abandoned at the timeout. Either
// way the partial response is discarded before the next candidate starts.
func (l *Loader) fetchCandidate(parent context.Context, candidate string, cycle int) (*Bundle, error) {
	ctx, cancel := context.WithTimeout(parent, l.timeout)
	defer cancel()

	ctx, span := l.tracer.Start(ctx, "sdk.fetch_candidate", trace.WithAttributes(
		attribute.String("url", candidate),
		attribute.Int("cycle", cycle),
	))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return nil, &CandidateError{URL: candidate, Cycle: cycle, Reason: ReasonNetwork, Cause: err}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		reason := ReasonNetwork
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			reason = ReasonTimeout
		}
		span.RecordError(err)
		return nil, &CandidateError{URL: candidate, Cycle: cycle, Reason: reason, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, &CandidateError{URL: candidate, Cycle: cycle, Reason: ReasonStatus, Cause: err}
	}

	script, err := io.ReadAll(resp.Body)
	if err != nil {
		reason := ReasonNetwork
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			reason = ReasonTimeout
		}
		span.RecordError(err)
		return nil, &CandidateError{URL: candidate, Cycle: cycle, Reason: reason, Cause: err}
	}

	return &Bundle{
		Script:    script,
		SourceURL: candidate,
		FetchedAt: time.Now(),
	}, nil
}
