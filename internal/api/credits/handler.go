package credits

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"travel-marketplace/internal/api/apierr"
	"travel-marketplace/internal/domain/credits"

	"github.com/gin-gonic/gin"
)

type Ledger interface {
	Balance(ctx context.Context, userID uint) (int64, error)
	Consume(ctx context.Context, userID uint, amount int64, remark string) (int64, string, error)
	Transactions(ctx context.Context, userID uint, limit int) ([]credits.CreditTransaction, error)
}

type Handler struct {
	ledger Ledger
}

func NewHandler(l Ledger) *Handler {
	return &Handler{ledger: l}
}

// GET /credits/balance
func (h *Handler) Balance(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance})
}

// GET /credits/transactions?limit=
func (h *Handler) Transactions(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, err := h.ledger.Transactions(c.Request.Context(), userID, limit)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": rows})
}

// POST /credits/consume
func (h *Handler) Consume(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body struct {
		Amount int64  `json:"amount" binding:"required"`
		Remark string `json:"remark"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid amount"})
		return
	}
	remark := strings.TrimSpace(body.Remark)
	if len(remark) > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Remark too long"})
		return
	}

	balance, txID, err := h.ledger.Consume(c.Request.Context(), userID, body.Amount, remark)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "transaction_id": txID})
}
