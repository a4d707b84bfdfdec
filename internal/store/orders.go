package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PendingPayment is the triple needed to resume tracking a payment whose
// outcome was still unknown when the process last stopped.
type PendingPayment struct {
	Reference string
	OrderID   string
	UserID    string
	SessionID string
}

type OrdersStore struct {
	db *pgxpool.Pool
}

// PendingPayments returns every order with a non-terminal payment and an
// assigned payment reference, for re-tracking at startup.
func (s *OrdersStore) PendingPayments(ctx context.Context) ([]PendingPayment, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `
	SELECT payment_reference, id::text, COALESCE(user_id::text, ''), COALESCE(session_id, '')
	FROM orders
	WHERE payment_status = 'pending'
	  AND payment_reference IS NOT NULL
	  AND payment_reference <> ''
	ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingPayment
	for rows.Next() {
		var p PendingPayment
		if err := rows.Scan(&p.Reference, &p.OrderID, &p.UserID, &p.SessionID); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
