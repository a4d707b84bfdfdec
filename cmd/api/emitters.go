package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"soko/internal/notifications"
	"soko/internal/push"
	"soko/internal/tracker"
)

// pushHandler feeds inbound push-channel events into the reconciler.
type pushHandler struct {
	registry *tracker.Registry
}

var _ push.Handler = (*pushHandler)(nil)

func (h *pushHandler) HandleStatus(reference string, rec tracker.StatusRecord) {
	h.registry.Apply(reference, rec)
}

func (h *pushHandler) HandleStopHint(reference, reason string) {
	h.registry.NoteStopHint(reference, reason)
}

// logObserver records every status transition; it is the only observer that
// fires on non-terminal changes.
type logObserver struct {
	logger *zap.SugaredLogger
}

func (o *logObserver) StatusChanged(reference string, rec tracker.StatusRecord) {
	o.logger.Infow("payment status changed", "reference", reference, "status", rec.Status, "source", rec.Source)
}

func (o *logObserver) Resolved(reference string, rec tracker.StatusRecord) {
	o.logger.Infow("payment resolved", "reference", reference, "status", rec.Status, "source", rec.Source)
}

// pushObserver sends an Expo notification to the owning user's devices when
// their payment resolves. Anonymous sessions have no device tokens.
type pushObserver struct {
	app    *application
	sender notifications.PushSender
}

func (o *pushObserver) StatusChanged(string, tracker.StatusRecord) {}

func (o *pushObserver) Resolved(reference string, rec tracker.StatusRecord) {
	payment, ok := o.app.registry.TrackedPayment(reference)
	if !ok || payment.Observer.UserID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := o.app.store.PushTokens.GetTokensByUserID(ctx, payment.Observer.UserID)
	if err != nil {
		o.app.logger.Errorw("push token lookup failed", "reference", reference, "user_id", payment.Observer.UserID, "error", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := notifications.SendPaymentResolved(ctx, o.sender, tokens, reference, rec); err != nil {
		o.app.logger.Errorw("resolution push failed", "reference", reference, "error", err)
	}
}

// mailObserver alerts the admin inbox about failed payments so support can
// reach out before the customer gives up.
type mailObserver struct {
	app *application
}

func (o *mailObserver) StatusChanged(string, tracker.StatusRecord) {}

func (o *mailObserver) Resolved(reference string, rec tracker.StatusRecord) {
	if rec.Status != tracker.StatusFailed {
		return
	}
	adminEmail := o.app.config.mail.adminEmail
	if adminEmail == "" {
		return
	}

	subject := fmt.Sprintf("Payment failed: %s", reference)
	body := fmt.Sprintf("Payment %s failed at %s.\n\nProcessor message: %s\n", reference, rec.Timestamp.Format(time.RFC1123), rec.Message)

	if err := o.app.mailer.Send(adminEmail, subject, body); err != nil {
		o.app.logger.Errorw("admin alert email failed", "reference", reference, "error", err)
	}
}
