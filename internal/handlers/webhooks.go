package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/carsi-commerce/api/internal/platform/httpx"
	"github.com/carsi-commerce/api/internal/services"
)

// Stripe caps event payloads at 64KB; anything larger is not a genuine event.
const maxWebhookBodySize = 64 * 1024

// paymentReconciler re-checks the gateway for a settled intent and marks the
// matching order paid. The webhook payload itself is never trusted for that.
type paymentReconciler interface {
	ReconcilePaymentIntent(ctx context.Context, intentID string) (services.Order, error)
}

// WebhookHandlers receives gateway callbacks. Events are verified, logged, and
// settled intents are reconciled against the order book.
type WebhookHandlers struct {
	signingSecret string
	orders        paymentReconciler
	logger        func(ctx context.Context, event string, fields map[string]any)
}

// WebhookOption customises webhook handler behaviour.
type WebhookOption func(*WebhookHandlers)

// WithWebhookLogger sets the structured logging sink for received events.
func WithWebhookLogger(logger func(ctx context.Context, event string, fields map[string]any)) WebhookOption {
	return func(h *WebhookHandlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithWebhookOrderReconciler enables marking orders paid when their intent settles.
func WithWebhookOrderReconciler(orders paymentReconciler) WebhookOption {
	return func(h *WebhookHandlers) {
		h.orders = orders
	}
}

// NewWebhookHandlers constructs handlers verifying callbacks with the given
// endpoint signing secret.
func NewWebhookHandlers(signingSecret string, opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{
		signingSecret: signingSecret,
		logger:        func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.signingSecret == "" {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unconfigured", "webhook endpoint is not configured", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil || int64(len(payload)) > maxWebhookBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "webhook payload unreadable", http.StatusBadRequest))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.signingSecret)
	if err != nil {
		h.logger(ctx, "webhooks.stripe_signature_rejected", map[string]any{"error": err.Error()})
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			h.logger(ctx, "webhooks.stripe_payload_invalid", map[string]any{
				"eventId":   event.ID,
				"eventType": string(event.Type),
				"error":     err.Error(),
			})
			httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "webhook payload invalid", http.StatusBadRequest))
			return
		}
		h.logger(ctx, "webhooks.stripe_payment_event", map[string]any{
			"eventId":   event.ID,
			"eventType": string(event.Type),
			"intentId":  intent.ID,
			"amount":    intent.Amount,
			"currency":  string(intent.Currency),
			"status":    string(intent.Status),
		})
		if event.Type == "payment_intent.succeeded" {
			h.reconcile(ctx, intent.ID)
		}
	default:
		h.logger(ctx, "webhooks.stripe_event_ignored", map[string]any{
			"eventId":   event.ID,
			"eventType": string(event.Type),
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]bool{"received": true})
}

// reconcile is best effort. The endpoint answers 200 either way so the
// gateway does not retry events this system cannot act on.
func (h *WebhookHandlers) reconcile(ctx context.Context, intentID string) {
	if h.orders == nil || intentID == "" {
		return
	}
	order, err := h.orders.ReconcilePaymentIntent(ctx, intentID)
	switch {
	case err == nil:
		h.logger(ctx, "webhooks.stripe_order_reconciled", map[string]any{
			"intentId": intentID,
			"orderId":  order.ID,
		})
	case errors.Is(err, services.ErrOrderNotFound):
		h.logger(ctx, "webhooks.stripe_order_unmatched", map[string]any{
			"intentId": intentID,
		})
	default:
		h.logger(ctx, "webhooks.stripe_reconcile_failed", map[string]any{
			"intentId": intentID,
			"error":    err.Error(),
		})
	}
}
