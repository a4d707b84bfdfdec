package notifications

import (
	"context"
	"testing"

	"github.com/9ssi7/exponent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soko/internal/tracker"
)

type fakeSender struct {
	msgs []*exponent.Message
}

func (f *fakeSender) Publish(_ context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error) {
	f.msgs = append(f.msgs, msgs...)
	return nil, nil
}

func TestSendPaymentResolvedNoTokens(t *testing.T) {
	// A user without registered devices is normal, not an error.
	sender := &fakeSender{}
	err := SendPaymentResolved(context.Background(), sender, nil, "REF-1", tracker.StatusRecord{Status: tracker.StatusSuccessful})
	require.NoError(t, err)
	assert.Empty(t, sender.msgs)
}

func TestSendPaymentResolvedBuildsMessages(t *testing.T) {
	sender := &fakeSender{}
	rec := tracker.StatusRecord{Status: tracker.StatusFailed}
	err := SendPaymentResolved(context.Background(), sender, []string{"tok-1", "tok-2"}, "REF-1", rec)
	require.NoError(t, err)
	require.Len(t, sender.msgs, 2)

	msg := sender.msgs[0]
	assert.Equal(t, "Payment Failed", msg.Title)
	assert.Equal(t, "REF-1", msg.Data["reference"])
	assert.Equal(t, "FAILED", msg.Data["status"])
}
