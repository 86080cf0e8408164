package widget

import "encoding/json"

// OutcomeKind enumerates the three terminal results of a widget flow.
type OutcomeKind string

const (
	// OutcomeSuccess carries the opaque verification payload. Terminal:
	// the client is expected to navigate to the redirect URL.
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeError carries a user-visible message. The flow may be retried.
	OutcomeError OutcomeKind = "error"

	// OutcomeClosed means the user dismissed the widget without
	// completing verification. The flow may be retried.
	OutcomeClosed OutcomeKind = "closed"
)

// Outcome is the single completion contract for a widget open, replacing
// separate success/error/close callback slots.
type Outcome struct {
	Kind    OutcomeKind
	Payload json.RawMessage // set for OutcomeSuccess; never interpreted here
	Message string          // set for OutcomeError
}

// Valid reports whether the kind is one of the three known outcomes.
func (k OutcomeKind) Valid() bool {
	switch k {
	case OutcomeSuccess, OutcomeError, OutcomeClosed:
		return true
	}
	return false
}
