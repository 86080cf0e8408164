package sdk

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCandidates means the mirror list was empty at construction.
	ErrNoCandidates = errors.New("no candidate script sources configured")

	// ErrExhausted means every candidate failed across every cycle. The
	// loader state is cleared so a later call starts a fresh cycle.
	ErrExhausted = errors.New("all script sources exhausted")
)

// FailureReason classifies a single candidate failure for logs and metrics.
type FailureReason string

const (
	ReasonTimeout FailureReason = "timeout"
	ReasonNetwork FailureReason = "network"
	ReasonStatus  FailureReason = "status"
)

// CandidateError records one failed candidate attempt. These are absorbed
// internally; callers only ever see ErrExhausted.
type CandidateError struct {
	URL    string
	Cycle  int
	Reason FailureReason
	Cause  error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %s (cycle %d) failed: %s: %v", e.URL, e.Cycle, e.Reason, e.Cause)
}

func (e *CandidateError) Unwrap() error { return e.Cause }
