package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names the audited operation.
type Action string

const (
	ActionSessionCreated        Action = "session_created"
	ActionWidgetOpened          Action = "widget_opened"
	ActionWidgetDismissed       Action = "widget_dismissed"
	ActionVerificationSucceeded Action = "verification_succeeded"
	ActionVerificationFailed    Action = "verification_failed"
	ActionSDKLoadFailed         Action = "sdk_load_failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Action      Action    `json:"action"`
	SessionID   uuid.UUID `json:"session_id,omitempty"`
	AppID       string    `json:"app_id,omitempty"`
	Environment string    `json:"environment,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Store persists audit events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Event, error)
}
