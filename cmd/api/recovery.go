package main

import (
	"context"
	"time"

	"soko/internal/tracker"
)

// recoverPendingPayments re-tracks every payment that was still pending when
// the process last stopped. Runs once in the background at startup; a failed
// query only costs recovery, not normal operation.
func (app *application) recoverPendingPayments() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pending, err := app.store.Orders.PendingPayments(ctx)
		if err != nil {
			app.logger.Errorf("Error recovering pending payments: %v", err)
			return
		}

		recovered := 0
		for _, p := range pending {
			// Exactly one identity goes through; the user wins when the
			// order carries both.
			obs := tracker.Observer{UserID: p.UserID}
			if p.UserID == "" {
				obs.SessionID = p.SessionID
			}
			if !obs.Valid() {
				app.logger.Warnw("skipping pending payment without a usable observer", "reference", p.Reference)
				continue
			}
			if app.registry.StartTracking(p.Reference, p.OrderID, obs) {
				recovered++
			}
		}

		if recovered > 0 {
			app.logger.Infof("Successfully resumed tracking for %d pending payments", recovered)
		}
	}()
}
