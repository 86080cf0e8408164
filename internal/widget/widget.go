// Package widget manages the single verification-widget handle for the
// process. The handle is created lazily on first bootstrap, its integration
// strategy is probed once, and it is never replaced afterwards.
package widget

import (
	"context"
	"errors"
	"sync"

	"verify-gateway/internal/sdk"
)

var (
	// ErrSDKUnavailable means the bundle loaded but exposes neither the
	// widget element nor the global SDK surface. Recoverable: the user
	// may retry after the environment changes.
	ErrSDKUnavailable = errors.New("verification SDK unavailable")

	// ErrAlreadyOpening guards against double-opens while a flow is in
	// flight.
	ErrAlreadyOpening = errors.New("widget already opening")

	// ErrNotOpen means an outcome arrived with no flow in flight.
	ErrNotOpen = errors.New("widget not open")

	// ErrAlreadyVerified means a success outcome has been delivered; the
	// flow is terminal.
	ErrAlreadyVerified = errors.New("verification already completed")
)

// Config is the widget configuration handed to the SDK surface.
type Config struct {
	AppID             string
	Action            string
	VerificationLevel string
	EnableTelemetry   bool
}

// Attrs returns the configuration as widget-element attributes.
func (c Config) Attrs() map[string]string {
	attrs := map[string]string{
		"app-id":             c.AppID,
		"action":             c.Action,
		"verification-level": c.VerificationLevel,
	}
	if c.EnableTelemetry {
		attrs["enable-telemetry"] = "true"
	}
	return attrs
}

// Bootstrap creates and owns the process's single widget handle.
type Bootstrap struct {
	loader *sdk.Loader

	mu     sync.Mutex
	handle *Handle
}

// NewBootstrap builds a Bootstrap over the SDK loader.
func NewBootstrap(loader *sdk.Loader) *Bootstrap {
	return &Bootstrap{loader: loader}
}

// Ensure returns the widget handle, creating it on first call. The SDK
// must load first; Load is idempotent so calling it here is cheap when a
// bundle is already memoized. Once a handle exists its strategy and config
// are fixed; later calls return the same handle regardless of cfg.
func (b *Bootstrap) Ensure(ctx context.Context, cfg Config) (*Handle, error) {
	bundle, err := b.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil {
		return b.handle, nil
	}

	strategy, err := probeStrategy(bundle)
	if err != nil {
		// No handle is kept: a retry after the environment changes
		// probes again.
		return nil, err
	}

	b.handle = &Handle{cfg: cfg, strategy: strategy}
	return b.handle, nil
}

// Handle returns the current handle, or nil if none has been created yet.
func (b *Bootstrap) Handle() *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle
}

// Handle is the single instantiated integration surface.
type Handle struct {
	cfg      Config
	strategy Strategy

	mu       sync.Mutex
	opening  bool
	verified bool
	outcomes chan Outcome
}

// Config returns the fixed widget configuration.
func (h *Handle) Config() Config { return h.cfg }

// Strategy returns the probed integration strategy.
func (h *Handle) Strategy() Strategy { return h.strategy }

// Open starts a verification flow and returns the channel its outcome will
// arrive on. A second Open while one is in flight fails with
// ErrAlreadyOpening; delivery of a closed or error outcome re-arms the
// handle so the user can try again.
func (h *Handle) Open(ctx context.Context) (<-chan Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.verified {
		return nil, ErrAlreadyVerified
	}
	if h.opening {
		return nil, ErrAlreadyOpening
	}
	h.opening = true
	h.outcomes = make(chan Outcome, 1)
	return h.outcomes, nil
}

// Deliver completes the in-flight flow with the given outcome. Success is
// terminal; closed and error outcomes reset the opening guard.
func (h *Handle) Deliver(o Outcome) error {
	if !o.Kind.Valid() {
		return errors.New("unknown outcome kind: " + string(o.Kind))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.opening {
		return ErrNotOpen
	}

	h.opening = false
	if o.Kind == OutcomeSuccess {
		h.verified = true
	}

	h.outcomes <- o
	h.outcomes = nil
	return nil
}

// Opening reports whether a flow is currently in flight.
func (h *Handle) Opening() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opening
}
