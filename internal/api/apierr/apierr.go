// Package apierr maps domain errors onto HTTP responses.
package apierr

import (
	"errors"
	"log/slog"
	"net/http"

	"travel-marketplace/internal/handoff"
	"travel-marketplace/internal/ledger"
	"travel-marketplace/internal/reconcile"

	"github.com/gin-gonic/gin"
)

type mapping struct {
	target  error
	status  int
	message string
	code    string
}

// Handoff failures all tell the client to sign in again.
var table = []mapping{
	{handoff.ErrNotFound, http.StatusUnauthorized, "Session handoff not found, please sign in again", "handoff_not_found"},
	{handoff.ErrExpired, http.StatusGone, "Session handoff expired, please sign in again", "handoff_expired"},
	{reconcile.ErrOrderMismatch, http.StatusBadRequest, "Order reference does not match, please sign in again", "order_mismatch"},
	{ledger.ErrInsufficientBalance, http.StatusConflict, "Insufficient credit balance", "insufficient_balance"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "Amount must be positive", "invalid_amount"},
	{reconcile.ErrInvalidRequest, http.StatusBadRequest, "Invalid purchase request", "invalid_request"},
	{reconcile.ErrGatewayUnavailable, http.StatusServiceUnavailable, "Payment provider unavailable, try again shortly", "gateway_unavailable"},
	{reconcile.ErrForbidden, http.StatusForbidden, "Access denied", "forbidden"},
	{reconcile.ErrOrderNotFound, http.StatusNotFound, "Order not found", "order_not_found"},
	{reconcile.ErrOrderAlreadyTerminal, http.StatusConflict, "Order is already closed", "order_closed"},
}

// Status returns the HTTP status and stable code for err.
func Status(err error) (int, string, string) {
	for _, m := range table {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, "internal", "Internal error"
}

// Write responds with the mapped error. Unmapped errors are logged and
// reported as 500 without details.
func Write(c *gin.Context, err error) {
	status, code, msg := Status(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": msg, "code": code})
}
