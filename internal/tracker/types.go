package tracker

import (
	"errors"
	"time"
)

var ErrNotTracked = errors.New("payment reference is not tracked")

// Status is the normalized payment state. Processor-specific vocabularies
// (Campay "SUCCESSFUL", order records "paid", etc.) are mapped into these
// four values before they reach the reconciler.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusSuccessful Status = "SUCCESSFUL"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether no further transition is expected after s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Source records which channel produced a StatusRecord. It is kept for
// debugging and display; the reconciler never orders records by source.
type Source string

const (
	SourcePush Source = "push"
	SourcePoll Source = "poll"
	SourceInit Source = "init"
)

// StatusRecord describes the state of a payment at a point in time.
type StatusRecord struct {
	Status    Status         `json:"status"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Source    Source         `json:"source"`
	Extra     map[string]any `json:"extra,omitempty"` // operator, transaction code, raw processor fields
}

// Observer identifies who is interested in a tracked payment: an
// authenticated user or an anonymous session, never both.
type Observer struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (o Observer) Valid() bool {
	return (o.UserID != "") != (o.SessionID != "")
}

// TrackedPayment is the registry's bookkeeping for one payment reference.
// It is mutated only while holding the reference's entry lock.
type TrackedPayment struct {
	Reference  string       `json:"reference"`
	OrderID    string       `json:"order_id"`
	Observer   Observer     `json:"observer"`
	CreatedAt  time.Time    `json:"created_at"`
	Terminal   bool         `json:"terminal"`
	LastStatus StatusRecord `json:"last_status"`

	// StopHint is set when the push channel asserts that no more updates
	// are coming. It never stops polling by itself; a premature hint must
	// not strand a payment in PENDING.
	StopHint string `json:"stop_hint,omitempty"`
}
