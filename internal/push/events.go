package push

import (
	"encoding/json"
	"strings"
	"time"

	"soko/internal/tracker"
)

// Outbound frame events.
const (
	eventTrack        = "track-payment"
	eventStopTracking = "stop-tracking-payment"
)

// Inbound event names, as emitted by the notification service.
const (
	eventStatus         = "payment-status"
	eventInitiated      = "payment-initiated"
	eventSuccess        = "payment-success"
	eventFailed         = "payment-failed"
	eventCancelled      = "payment-cancelled"
	eventCompleted      = "payment-completed"
	eventPollingStopped = "payment-polling-stopped"
)

// frame is an outbound subscription message. The observer identity rides on
// every track frame so that a replay after reconnect is identical to the
// first subscription.
type frame struct {
	Event     string `json:"event"`
	Reference string `json:"reference"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Event is an inbound notification. Known fields are lifted out; whatever
// else the processor attaches (operator, transaction code) is carried
// opaquely in Extra.
type Event struct {
	Event     string
	Reference string
	Status    string
	Message   string
	Reason    string
	Timestamp time.Time
	Extra     map[string]any
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Event = popString(raw, "event")
	e.Reference = popString(raw, "reference")
	e.Status = popString(raw, "status")
	e.Message = popString(raw, "message")
	e.Reason = popString(raw, "reason")

	if ts := popString(raw, "timestamp"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Timestamp = t
		}
	}

	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}

func popString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	delete(m, key)
	s, _ := v.(string)
	return s
}

// StatusRecord normalizes the event into a reconciler record. Some event
// names imply the status (payment-success carries no status field); the
// generic payment-status event carries it explicitly.
func (e *Event) StatusRecord() (tracker.StatusRecord, bool) {
	status, ok := e.status()
	if !ok {
		return tracker.StatusRecord{}, false
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return tracker.StatusRecord{
		Status:    status,
		Message:   e.message(status),
		Timestamp: ts,
		Source:    tracker.SourcePush,
		Extra:     e.Extra,
	}, true
}

func (e *Event) status() (tracker.Status, bool) {
	switch e.Event {
	case eventInitiated:
		return tracker.StatusPending, true
	case eventSuccess:
		return tracker.StatusSuccessful, true
	case eventFailed:
		return tracker.StatusFailed, true
	case eventCancelled:
		return tracker.StatusCancelled, true
	}

	switch strings.ToUpper(strings.TrimSpace(e.Status)) {
	case "PENDING":
		return tracker.StatusPending, true
	case "SUCCESSFUL":
		return tracker.StatusSuccessful, true
	case "FAILED":
		return tracker.StatusFailed, true
	case "CANCELLED":
		return tracker.StatusCancelled, true
	}
	return "", false
}

func (e *Event) message(status tracker.Status) string {
	if e.Message != "" {
		return e.Message
	}
	switch status {
	case tracker.StatusSuccessful:
		return "Payment completed successfully!"
	case tracker.StatusFailed:
		return "Payment failed. Please try again."
	case tracker.StatusCancelled:
		return "Payment was cancelled."
	default:
		return "Payment is being processed..."
	}
}
