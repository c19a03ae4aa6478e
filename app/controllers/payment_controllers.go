package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/bind"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

type PaymentController struct {
	reconcile      *services.ReconcileService
	publishableKey string
}

func NewPaymentController(reconcile *services.ReconcileService, publishableKey string) *PaymentController {
	return &PaymentController{reconcile: reconcile, publishableKey: publishableKey}
}

// webhookEvent is the subset of a gateway event the storefront reads.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID     string `json:"id"`
			Object string `json:"object"`
		} `json:"object"`
	} `json:"data"`
}

// Webhook handles POST /api/payments/webhook. Only the intent id is taken
// from the payload; the status is re-read from the gateway. A gateway
// failure answers 502 so the sender retries.
func (c *PaymentController) Webhook(w http.ResponseWriter, r *http.Request) {
	var ev webhookEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, bind.MaxBodyBytes)).Decode(&ev); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	intentID := ""
	if ev.Data.Object.Object == "" || ev.Data.Object.Object == "payment_intent" {
		intentID = ev.Data.Object.ID
	}

	outcome, err := c.reconcile.HandleEvent(r.Context(), services.Event{
		ID:       ev.ID,
		Type:     ev.Type,
		IntentID: intentID,
	})
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	response.Success(w, map[string]services.Outcome{"outcome": outcome})
}

type ConfirmView struct {
	Outcome services.Outcome `json:"outcome"`
	Order   *models.Order    `json:"order"`
}

// Confirm handles POST /api/payments/{intent}/confirm: the client asks for
// an immediate status poll after completing payment.
func (c *PaymentController) Confirm(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	outcome, order, err := c.reconcile.ConfirmForUser(r.Context(), sub, chi.URLParam(r, "intent"))
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	response.Success(w, ConfirmView{Outcome: outcome, Order: order})
}

// PublicKey handles GET /api/payments/public-key.
func (c *PaymentController) PublicKey(w http.ResponseWriter, r *http.Request) {
	if c.publishableKey == "" {
		response.NotFound(w)
		return
	}
	response.Success(w, map[string]string{"publishable_key": c.publishableKey})
}
