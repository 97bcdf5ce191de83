package orders

import (
	"context"
	"net/http"
	"strconv"

	"travel-marketplace/internal/api/apierr"
	"travel-marketplace/internal/domain/orders"

	"github.com/gin-gonic/gin"
)

type Reader interface {
	Order(ctx context.Context, userID uint, orderID string) (orders.Order, error)
	OrdersForUser(ctx context.Context, userID uint, limit int) ([]orders.Order, error)
}

type Handler struct {
	orders Reader
}

func NewHandler(r Reader) *Handler {
	return &Handler{orders: r}
}

// GET /orders
func (h *Handler) List(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.orders.OrdersForUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /orders/:id
func (h *Handler) Get(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	o, err := h.orders.Order(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
