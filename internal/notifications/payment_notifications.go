package notifications

import (
	"context"
	"fmt"

	"github.com/9ssi7/exponent"

	"soko/internal/tracker"
)

// SendPaymentResolved notifies the customer's devices that their payment
// reached a final state. The caller supplies the device tokens; users with
// no registered devices are not an error worth surfacing.
func SendPaymentResolved(ctx context.Context, push PushSender, tokens []string, reference string, rec tracker.StatusRecord) error {
	if len(tokens) == 0 {
		return nil
	}

	var title, body string
	switch rec.Status {
	case tracker.StatusSuccessful:
		title = "Payment Successful"
		body = "Your payment went through. Thank you for your order! 🎉"
	case tracker.StatusFailed:
		title = "Payment Failed"
		body = "Your payment could not be completed. Please try again."
	case tracker.StatusCancelled:
		title = "Payment Cancelled"
		body = "Your payment was cancelled."
	default:
		title = "Payment Update"
		body = rec.Message
	}

	msgs := make([]*exponent.Message, 0, len(tokens))
	for _, t := range tokens {
		token := exponent.Token(t)
		msg := &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":      "payment_resolved",
				"reference": reference,
				"status":    string(rec.Status),
				"screen":    fmt.Sprintf("orders/payments/%s", reference),
			},
		}
		msgs = append(msgs, msg)
	}

	_, err := push.Publish(ctx, msgs)
	return err
}
