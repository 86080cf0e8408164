// Package verification ties the SDK loader, widget bootstrap, and
// environment detector together into the session flow the HTTP layer
// exposes.
package verification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"verify-gateway/internal/audit"
	"verify-gateway/internal/device"
	"verify-gateway/internal/platform/metrics"
	"verify-gateway/internal/sdk"
	"verify-gateway/internal/statetoken"
	"verify-gateway/internal/widget"
	dErrors "verify-gateway/pkg/domain-errors"
	"verify-gateway/pkg/platform/sentinel"
)

// Store persists verification sessions. Save upserts; FindByID returns
// sentinel.ErrNotFound for unknown IDs.
type Store interface {
	Save(ctx context.Context, session Session) error
	FindByID(ctx context.Context, id uuid.UUID) (Session, error)
}

// Config fixes the verification identity for this deployment.
type Config struct {
	AppID             string
	Action            string
	VerificationLevel string
	CallbackBase      string
	CallbackBaseDev   string
}

// Service implements the verification session flow.
type Service struct {
	cfg       Config
	loader    *sdk.Loader
	bootstrap *widget.Bootstrap
	detector  *device.Detector
	devices   *device.Service
	store     Store
	tokens    *statetoken.Service
	audit     *audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New wires a Service. metrics may be nil in tests.
func New(
	cfg Config,
	loader *sdk.Loader,
	bootstrap *widget.Bootstrap,
	detector *device.Detector,
	devices *device.Service,
	store Store,
	tokens *statetoken.Service,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		loader:    loader,
		bootstrap: bootstrap,
		detector:  detector,
		devices:   devices,
		store:     store,
		tokens:    tokens,
		audit:     auditor,
		metrics:   m,
		logger:    logger,
	}
}

// StartParams describe the client requesting a session.
type StartParams struct {
	UserAgent string
	Flags     device.Flags
	RequestID string
}

// StartResult is everything the client needs to render the home screen's
// verification entry point.
type StartResult struct {
	Session     Session
	State       string
	WidgetAttrs map[string]string
}

// Start classifies the environment, creates a session, and mints its state
// token. The SDK is not loaded here; that happens lazily on the script
// request so a banner-mode view never pays for it.
func (s *Service) Start(ctx context.Context, p StartParams) (*StartResult, error) {
	env := s.detector.Detect(p.UserAgent, p.Flags)
	mode := ModeBanner
	if env == device.EnvDedicatedClient {
		mode = ModeAutoOpen
	}

	now := time.Now()
	session := Session{
		ID:          uuid.New(),
		AppID:       s.cfg.AppID,
		Action:      s.cfg.Action,
		Level:       s.cfg.VerificationLevel,
		Environment: env,
		Mode:        mode,
		Device:      device.Describe(p.UserAgent),
		Fingerprint: s.devices.ComputeFingerprint(p.UserAgent),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "could not persist session", err)
	}

	state, err := s.tokens.Mint(session.ID, session.Action, string(env))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "could not mint state token", err)
	}

	s.emit(ctx, audit.Event{
		Action:      audit.ActionSessionCreated,
		SessionID:   session.ID,
		AppID:       session.AppID,
		Environment: string(env),
		RequestID:   p.RequestID,
	})
	if s.metrics != nil {
		s.metrics.IncSessionsStarted(string(mode))
	}

	cfg := widget.Config{
		AppID:             s.cfg.AppID,
		Action:            s.cfg.Action,
		VerificationLevel: s.cfg.VerificationLevel,
		EnableTelemetry:   true,
	}
	return &StartResult{Session: session, State: state, WidgetAttrs: cfg.Attrs()}, nil
}

// Script loads and returns the SDK bundle for serving to the client.
// Exhaustion is audited and surfaced as an unavailability the user can
// retry.
func (s *Service) Script(ctx context.Context, requestID string) (*sdk.Bundle, error) {
	bundle, err := s.loader.Load(ctx)
	if err != nil {
		s.emit(ctx, audit.Event{
			Action:    audit.ActionSDKLoadFailed,
			AppID:     s.cfg.AppID,
			Reason:    err.Error(),
			RequestID: requestID,
		})
		if errors.Is(err, sdk.ErrExhausted) {
			return nil, dErrors.Wrap(dErrors.CodeUnavailable, "verification script could not be loaded", err)
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "verification script load failed", err)
	}
	return bundle, nil
}

// Open marks a session's widget flow as in flight. The process-wide widget
// handle enforces the single-open guard.
func (s *Service) Open(ctx context.Context, sessionID uuid.UUID, requestID string) (*Session, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown session")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "could not read session", err)
	}
	if !session.Retryable() {
		return nil, dErrors.New(dErrors.CodeConflict, "session already "+string(session.Status))
	}

	cfg := widget.Config{
		AppID:             session.AppID,
		Action:            session.Action,
		VerificationLevel: session.Level,
		EnableTelemetry:   true,
	}
	handle, err := s.bootstrap.Ensure(ctx, cfg)
	if err != nil {
		if errors.Is(err, widget.ErrSDKUnavailable) {
			return nil, dErrors.New(dErrors.CodeUnavailable, "verification SDK unavailable")
		}
		if errors.Is(err, sdk.ErrExhausted) {
			return nil, dErrors.Wrap(dErrors.CodeUnavailable, "verification script could not be loaded", err)
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "widget bootstrap failed", err)
	}

	if _, err := handle.Open(ctx); err != nil {
		switch {
		case errors.Is(err, widget.ErrAlreadyOpening):
			return nil, dErrors.New(dErrors.CodeConflict, "widget already opening")
		case errors.Is(err, widget.ErrAlreadyVerified):
			return nil, dErrors.New(dErrors.CodeConflict, "verification already completed")
		default:
			return nil, dErrors.Wrap(dErrors.CodeInternal, "widget open failed", err)
		}
	}

	session.Status = StatusOpened
	session.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "could not persist session", err)
	}

	s.emit(ctx, audit.Event{
		Action:      audit.ActionWidgetOpened,
		SessionID:   session.ID,
		AppID:       session.AppID,
		Environment: string(session.Environment),
		RequestID:   requestID,
	})
	return &session, nil
}

// CompleteParams carry the widget outcome reported by the client.
type CompleteParams struct {
	SessionID uuid.UUID
	State     string
	Outcome   widget.Outcome
	Host      string
	RequestID string
}

// CompleteResult tells the client what to do next.
type CompleteResult struct {
	RedirectURL string
	Retry       bool
	Message     string
}

// Complete settles an in-flight widget flow. Success builds the redirect
// URL carrying the opaque result; error and dismissal re-arm the flow so
// the trigger stays usable.
func (s *Service) Complete(ctx context.Context, p CompleteParams) (*CompleteResult, error) {
	claims, err := s.tokens.Validate(p.State)
	if err != nil {
		return nil, err
	}
	if claims.SessionID != p.SessionID.String() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "state token does not match session")
	}
	if !p.Outcome.Kind.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown outcome")
	}

	session, err := s.store.FindByID(ctx, p.SessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown session")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "could not read session", err)
	}
	if session.Status != StatusOpened {
		return nil, dErrors.New(dErrors.CodeConflict, "no widget flow in flight for session")
	}

	// Settle the process-wide handle so its opening guard re-arms.
	if handle := s.bootstrap.Handle(); handle != nil {
		if err := handle.Deliver(p.Outcome); err != nil && !errors.Is(err, widget.ErrNotOpen) {
			s.logger.WarnContext(ctx, "widget outcome delivery failed", "error", err)
		}
	}

	session.UpdatedAt = time.Now()

	switch p.Outcome.Kind {
	case widget.OutcomeSuccess:
		base := widget.CallbackBase(s.cfg.CallbackBase, s.cfg.CallbackBaseDev, p.Host)
		redirect, err := widget.RedirectURL(base, p.Outcome.Payload)
		if err != nil {
			// The result must not be lost silently; the caller stays on
			// the current view and sees the failure.
			s.logger.ErrorContext(ctx, "redirect construction failed",
				"session_id", session.ID,
				"error", err,
			)
			return nil, dErrors.Wrap(dErrors.CodeInternal, "could not build redirect", err)
		}

		session.Status = StatusSucceeded
		session.Result = append(json.RawMessage(nil), p.Outcome.Payload...)
		session.RedirectURL = redirect
		if err := s.store.Save(ctx, session); err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "could not persist session", err)
		}

		s.emit(ctx, audit.Event{
			Action:      audit.ActionVerificationSucceeded,
			SessionID:   session.ID,
			AppID:       session.AppID,
			Environment: string(session.Environment),
			RequestID:   p.RequestID,
		})
		return &CompleteResult{RedirectURL: redirect}, nil

	case widget.OutcomeError:
		session.Status = StatusFailed
		if err := s.store.Save(ctx, session); err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "could not persist session", err)
		}
		s.emit(ctx, audit.Event{
			Action:    audit.ActionVerificationFailed,
			SessionID: session.ID,
			AppID:     session.AppID,
			Reason:    p.Outcome.Message,
			RequestID: p.RequestID,
		})
		return &CompleteResult{Retry: true, Message: p.Outcome.Message}, nil

	default: // widget.OutcomeClosed
		session.Status = StatusDismissed
		if err := s.store.Save(ctx, session); err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "could not persist session", err)
		}
		s.emit(ctx, audit.Event{
			Action:    audit.ActionWidgetDismissed,
			SessionID: session.ID,
			AppID:     session.AppID,
			RequestID: p.RequestID,
		})
		return &CompleteResult{Retry: true}, nil
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
