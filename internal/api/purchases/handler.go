package purchases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"travel-marketplace/internal/api/apierr"
	"travel-marketplace/internal/auth/tokens"
	"travel-marketplace/internal/domain/packages"
	"travel-marketplace/internal/domain/users"
	"travel-marketplace/internal/reconcile"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Purchaser interface {
	Initiate(ctx context.Context, req reconcile.InitiateRequest) (reconcile.InitiateResult, error)
	Complete(ctx context.Context, handoffID, orderRef string) (reconcile.ReconciliationResult, error)
}

type Handler struct {
	db     *gorm.DB
	rec    Purchaser
	tokens *tokens.Issuer
}

func NewHandler(db *gorm.DB, rec Purchaser, iss *tokens.Issuer) *Handler {
	return &Handler{db: db, rec: rec, tokens: iss}
}

// POST /purchases
//
// The client picks a package; price and credit count come from the
// credit_packages allow list.
func (h *Handler) Create(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var body struct {
		PackageID uint `json:"package_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid package_id"})
		return
	}

	ctx := c.Request.Context()
	var pkg packages.CreditPackage
	err := h.db.WithContext(ctx).Where("id = ? AND active = ?", body.PackageID, true).First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown credit package"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credit package"})
		return
	}

	var user users.User
	if err := h.db.WithContext(ctx).Select("id", "email", "role").First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	// A fresh pair is parked server-side and handed back after the redirect.
	pair, err := h.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		slog.Error("token issue failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create session"})
		return
	}

	pkgID := pkg.ID
	res, err := h.rec.Initiate(ctx, reconcile.InitiateRequest{
		UserID:       user.ID,
		Amount:       pkg.AmountMinor,
		Currency:     pkg.Currency,
		Credits:      pkg.Credits,
		PackageID:    &pkgID,
		Product:      fmt.Sprintf("%s - %d credits", pkg.Name, pkg.Credits),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /purchases/return?handoff_id=...&order_ref=...
//
// Public: the provider's redirect carries no bearer token. Only handoff_id
// and order_ref are read; status-like parameters the client appends are
// ignored.
func (h *Handler) Return(c *gin.Context) {
	handoffID := c.Query("handoff_id")
	orderRef := c.Query("order_ref")
	if handoffID == "" || orderRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing handoff_id or order_ref", "code": "invalid_request"})
		return
	}

	res, err := h.rec.Complete(c.Request.Context(), handoffID, orderRef)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, res)
}
