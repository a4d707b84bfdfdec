package payments

import (
	"context"

	"soko/internal/tracker"
)

// StatusGateway looks up the authoritative state of a payment from the
// order backend, which holds the processor's view. It exists as an
// interface so the tracking engine can be unit-tested without network I/O.
type StatusGateway interface {
	LookupStatus(ctx context.Context, orderID string) (tracker.StatusRecord, error)
}
