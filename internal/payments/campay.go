package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"soko/internal/tracker"
)

// CampayAdapter asks the order backend for a payment's current state. The
// backend merges its own order record with a fresh Campay transaction-status
// lookup, and we normalize both vocabularies into the four-value enum.
type CampayAdapter struct {
	BaseURL    string
	APIKey     string
	httpClient *http.Client
}

func NewCampayAdapter(baseURL, apiKey string) *CampayAdapter {
	return &CampayAdapter{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		httpClient: http.DefaultClient,
	}
}

func (c *CampayAdapter) LookupStatus(ctx context.Context, orderID string) (tracker.StatusRecord, error) {
	url := fmt.Sprintf("%s/payments/status/%s", c.BaseURL, orderID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return tracker.StatusRecord{}, fmt.Errorf("campay status request: %w", err)
	}
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Token "+c.APIKey)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return tracker.StatusRecord{}, fmt.Errorf("campay status request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return tracker.StatusRecord{}, fmt.Errorf("campay status failed: http=%d body=%s", resp.StatusCode, string(raw))
	}

	var res struct {
		Order struct {
			PaymentStatus string `json:"paymentStatus"`
			Status        string `json:"status"`
		} `json:"order"`
		CampayStatus struct {
			Status   string `json:"status"` // PENDING, SUCCESSFUL, FAILED, CANCELLED
			Operator string `json:"operator"`
			Code     string `json:"code"`
			Reason   string `json:"reason"`
		} `json:"campayStatus"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return tracker.StatusRecord{}, fmt.Errorf("campay status decode: %w body=%s", err, string(raw))
	}

	// The processor's own status is the fresher source; fall back to the
	// order record when the processor lookup came back empty.
	status, ok := normalizeCampayStatus(res.CampayStatus.Status)
	if !ok {
		status, ok = normalizeOrderStatus(res.Order.PaymentStatus)
	}
	if !ok {
		return tracker.StatusRecord{}, fmt.Errorf("campay status unknown: campay=%q order=%q", res.CampayStatus.Status, res.Order.PaymentStatus)
	}

	extra := map[string]any{}
	if res.CampayStatus.Operator != "" {
		extra["operator"] = res.CampayStatus.Operator
	}
	if res.CampayStatus.Code != "" {
		extra["transaction_code"] = res.CampayStatus.Code
	}
	if res.CampayStatus.Reason != "" {
		extra["reason"] = res.CampayStatus.Reason
	}
	if res.Order.Status != "" {
		extra["order_status"] = res.Order.Status
	}
	if len(extra) == 0 {
		extra = nil
	}

	return tracker.StatusRecord{
		Status:    status,
		Message:   statusMessage(status),
		Timestamp: time.Now(),
		Extra:     extra,
	}, nil
}

func normalizeCampayStatus(s string) (tracker.Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
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

func normalizeOrderStatus(s string) (tracker.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "processing":
		return tracker.StatusPending, true
	case "paid":
		return tracker.StatusSuccessful, true
	case "failed":
		return tracker.StatusFailed, true
	case "cancelled":
		return tracker.StatusCancelled, true
	}
	return "", false
}

func statusMessage(status tracker.Status) string {
	switch status {
	case tracker.StatusSuccessful:
		return "Payment completed successfully!"
	case tracker.StatusFailed:
		return "Payment failed or was cancelled."
	case tracker.StatusCancelled:
		return "Payment was cancelled."
	default:
		return "Payment is being processed..."
	}
}
