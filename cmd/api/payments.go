package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"soko/internal/payments"
	"soko/internal/tracker"
)

func newOrderLookup(cfg trackingConfig) payments.StatusGateway {
	return payments.NewCampayAdapter(cfg.orderAPIURL, cfg.orderAPIKey)
}

type trackPaymentPayload struct {
	Reference string `json:"reference" validate:"required,max=128"`
	OrderID   string `json:"order_id" validate:"required,max=64"`
	// PayerPhone, when present, must be a valid mobile-money number.
	PayerPhone string `json:"payer_phone,omitempty" validate:"omitempty,msisdn"`
}

type trackedPaymentResponse struct {
	Reference string               `json:"reference"`
	Tracked   bool                 `json:"tracked"`
	Status    tracker.StatusRecord `json:"status"`
}

// trackPaymentHandler godoc
//
//	@Summary		Start tracking a payment
//	@Description	Registers interest in a payment reference; status updates arrive via push and polling
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		trackPaymentPayload	true	"Payment reference and order id"
//	@Success		202		{object}	trackedPaymentResponse
//	@Failure		400		{object}	error
//	@Router			/payments/track [post]
func (app *application) trackPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var payload trackPaymentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	obs := app.resolveObserver(w, r)
	if !obs.Valid() {
		app.badRequestResponse(w, r, fmt.Errorf("could not resolve observer identity"))
		return
	}

	if ok := app.registry.StartTracking(payload.Reference, payload.OrderID, obs); !ok {
		app.internalServerError(w, r, fmt.Errorf("tracking rejected for %s", payload.Reference))
		return
	}

	rec, _ := app.registry.GetStatus(payload.Reference)
	resp := trackedPaymentResponse{Reference: payload.Reference, Tracked: true, Status: rec}
	if err := app.jsonResponse(w, http.StatusAccepted, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// paymentStatusHandler godoc
//
//	@Summary	Current status of a tracked payment
//	@Tags		payments
//	@Produce	json
//	@Param		reference	path		string	true	"Payment reference"
//	@Success	200			{object}	trackedPaymentResponse
//	@Failure	404			{object}	error
//	@Router		/payments/track/{reference} [get]
func (app *application) paymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	rec, ok := app.registry.GetStatus(reference)
	if !ok {
		app.notFoundResponse(w, r, fmt.Errorf("payment %s is not tracked", reference))
		return
	}

	resp := trackedPaymentResponse{
		Reference: reference,
		Tracked:   app.registry.IsTracking(reference),
		Status:    rec,
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// stopTrackingHandler godoc
//
//	@Summary	Stop tracking a payment
//	@Tags		payments
//	@Param		reference	path	string	true	"Payment reference"
//	@Success	204
//	@Router		/payments/track/{reference} [delete]
func (app *application) stopTrackingHandler(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	// Idempotent: stopping an untracked reference is a no-op.
	app.registry.StopTracking(reference)
	w.WriteHeader(http.StatusNoContent)
}

// checkPaymentNowHandler godoc
//
//	@Summary		Check a payment immediately
//	@Description	One on-demand status lookup outside the regular poll cadence
//	@Tags			payments
//	@Produce		json
//	@Param			reference	path		string	true	"Payment reference"
//	@Success		200			{object}	trackedPaymentResponse
//	@Failure		404			{object}	error
//	@Router			/payments/track/{reference}/check [post]
func (app *application) checkPaymentNowHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	reference := chi.URLParam(r, "reference")

	rec, err := app.registry.CheckNow(ctx, reference)
	if err != nil {
		if errors.Is(err, tracker.ErrNotTracked) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	resp := trackedPaymentResponse{
		Reference: reference,
		Tracked:   app.registry.IsTracking(reference),
		Status:    rec,
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// trackedPaymentsHandler godoc
//
//	@Summary	List tracked payment references
//	@Tags		payments
//	@Produce	json
//	@Success	200	{array}	tracker.TrackedPayment
//	@Router		/payments/tracked [get]
func (app *application) trackedPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	refs := app.registry.ListTracked()

	tracked := make([]tracker.TrackedPayment, 0, len(refs))
	for _, ref := range refs {
		if p, ok := app.registry.TrackedPayment(ref); ok {
			tracked = append(tracked, p)
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, tracked); err != nil {
		app.internalServerError(w, r, err)
	}
}
