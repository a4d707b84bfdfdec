package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soko/internal/tracker"
)

func newStatusServer(t *testing.T, status int, body string, gotAuth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			*gotAuth = r.Header.Get("Authorization")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCampayLookupSuccessful(t *testing.T) {
	var auth string
	srv := newStatusServer(t, http.StatusOK, `{
		"order": {"paymentStatus": "paid", "status": "confirmed"},
		"campayStatus": {"status": "SUCCESSFUL", "operator": "MTN", "code": "TX123"}
	}`, &auth)

	adapter := NewCampayAdapter(srv.URL, "secret-key")
	rec, err := adapter.LookupStatus(context.Background(), "order-1")
	require.NoError(t, err)

	assert.Equal(t, tracker.StatusSuccessful, rec.Status)
	assert.Equal(t, "MTN", rec.Extra["operator"])
	assert.Equal(t, "TX123", rec.Extra["transaction_code"])
	assert.Equal(t, "confirmed", rec.Extra["order_status"])
	assert.Equal(t, "Token secret-key", auth)
}

func TestCampayLookupFallsBackToOrderStatus(t *testing.T) {
	srv := newStatusServer(t, http.StatusOK, `{
		"order": {"paymentStatus": "pending"},
		"campayStatus": {}
	}`, nil)

	adapter := NewCampayAdapter(srv.URL, "")
	rec, err := adapter.LookupStatus(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, tracker.StatusPending, rec.Status)
}

func TestCampayLookupHTTPError(t *testing.T) {
	srv := newStatusServer(t, http.StatusBadGateway, `upstream down`, nil)

	adapter := NewCampayAdapter(srv.URL, "")
	_, err := adapter.LookupStatus(context.Background(), "order-1")
	assert.Error(t, err)
}

func TestCampayLookupUnknownStatus(t *testing.T) {
	srv := newStatusServer(t, http.StatusOK, `{
		"order": {"paymentStatus": "teleported"},
		"campayStatus": {"status": "WARPED"}
	}`, nil)

	adapter := NewCampayAdapter(srv.URL, "")
	_, err := adapter.LookupStatus(context.Background(), "order-1")
	assert.Error(t, err)
}

func TestNormalizeStatusVocabularies(t *testing.T) {
	cases := []struct {
		campay string
		order  string
		want   tracker.Status
	}{
		{"successful", "", tracker.StatusSuccessful},
		{" FAILED ", "", tracker.StatusFailed},
		{"CANCELLED", "", tracker.StatusCancelled},
		{"", "processing", tracker.StatusPending},
		{"", "Paid", tracker.StatusSuccessful},
	}
	for _, c := range cases {
		got, ok := normalizeCampayStatus(c.campay)
		if !ok {
			got, ok = normalizeOrderStatus(c.order)
		}
		require.True(t, ok, "campay=%q order=%q", c.campay, c.order)
		assert.Equal(t, c.want, got)
	}
}
