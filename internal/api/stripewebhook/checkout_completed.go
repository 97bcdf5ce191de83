package stripewebhooks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"travel-marketplace/internal/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
)

// handleCheckoutSession treats the event as a hint only: the order is
// re-verified against the provider, so replayed or out-of-order deliveries
// converge on the same state. A 5xx makes Stripe retry later.
func (h *Handler) handleCheckoutSession(ctx context.Context, eventType string, session *stripe.CheckoutSession) (int, gin.H) {
	orderID := session.ClientReferenceID
	if orderID == "" && session.Metadata != nil {
		orderID = session.Metadata["order_id"]
	}
	log := slog.With("event", eventType, "session_id", session.ID, "order_id", orderID)
	if orderID == "" {
		log.Warn("checkout session without order reference")
		return http.StatusOK, gin.H{"status": "ignored"}
	}

	res, err := h.rec.Reconcile(ctx, orderID)
	switch {
	case err == nil:
		log.Info("order reconciled from webhook", "status", res.Status, "granted", res.Granted)
		return http.StatusOK, gin.H{"status": "received", "order_status": res.Status}
	case errors.Is(err, reconcile.ErrOrderNotFound):
		log.Warn("webhook for unknown order")
		return http.StatusOK, gin.H{"status": "ignored"}
	case errors.Is(err, reconcile.ErrOrderAlreadyTerminal):
		return http.StatusOK, gin.H{"status": "received"}
	default:
		log.Error("webhook reconciliation failed", "error", err)
		return http.StatusInternalServerError, gin.H{"error": "reconciliation failed"}
	}
}
