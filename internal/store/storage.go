package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("resource not found")
	QueryTimeoutDuration = time.Second * 5
)

// Storage bundles the read models this service consumes. The order and
// payment records themselves are owned by the storefront backend; we only
// read what tracking recovery and notifications need.
type Storage struct {
	Orders interface {
		PendingPayments(context.Context) ([]PendingPayment, error)
	}
	PushTokens interface {
		GetTokensByUserID(context.Context, string) ([]string, error)
	}
}

func NewStorage(db *pgxpool.Pool) Storage {
	return Storage{
		Orders:     &OrdersStore{db},
		PushTokens: &PushTokensStore{db},
	}
}
