package admin

import (
	"context"
	"log/slog"
	"net/http"

	"travel-marketplace/internal/api/apierr"
	"travel-marketplace/internal/reconcile"

	"github.com/gin-gonic/gin"
)

// Operator is what support staff can trigger by hand.
type Operator interface {
	Reconcile(ctx context.Context, orderID string) (reconcile.ReconciliationResult, error)
	ExpireStale(ctx context.Context) (reconcile.SweepReport, error)
}

type Handler struct {
	ops Operator
}

func NewHandler(ops Operator) *Handler {
	return &Handler{ops: ops}
}

// POST /admin/orders/:id/reconcile
func (h *Handler) ReconcileOrder(c *gin.Context) {
	id := c.Param("id")
	res, err := h.ops.Reconcile(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	slog.Info("manual reconcile", "order_id", id, "admin_id", c.GetUint("user_id"), "status", res.Status, "granted", res.Granted)
	c.JSON(http.StatusOK, res)
}

// POST /admin/sweep
func (h *Handler) Sweep(c *gin.Context) {
	rep, err := h.ops.ExpireStale(c.Request.Context())
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
