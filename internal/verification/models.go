package verification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"verify-gateway/internal/device"
)

// Status is the lifecycle state of a verification session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOpened    Status = "opened"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusDismissed Status = "dismissed"
)

// Mode is how the client should present the widget.
type Mode string

const (
	// ModeAutoOpen invokes the widget immediately (dedicated client).
	ModeAutoOpen Mode = "auto_open"

	// ModeBanner shows a banner directing the user to the dedicated
	// client instead of opening the widget.
	ModeBanner Mode = "banner"
)

// Session is one verification attempt by one client.
type Session struct {
	ID          uuid.UUID
	AppID       string
	Action      string
	Level       string
	Environment device.Environment
	Mode        Mode
	Device      string
	Fingerprint string
	Status      Status
	Result      json.RawMessage
	RedirectURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Retryable reports whether the session may be opened again.
func (s *Session) Retryable() bool {
	switch s.Status {
	case StatusPending, StatusFailed, StatusDismissed:
		return true
	default:
		return false
	}
}
