package users

import (
	"context"
	"net/http"

	"travel-marketplace/internal/domain/access"
	"travel-marketplace/internal/domain/users"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BalanceReader interface {
	Balance(ctx context.Context, userID uint) (int64, error)
}

// GetCurrentUser answers GET /me.
func GetCurrentUser(db *gorm.DB, balances BalanceReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := c.Request.Context()

		var user users.User
		if err := db.WithContext(ctx).First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		balance, err := balances.Balance(ctx, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load balance"})
			return
		}

		c.JSON(http.StatusOK, MeResponse{
			User: UserDTO{
				ID:           user.ID,
				Email:        user.Email,
				Name:         user.Name,
				Lastname:     user.Lastname,
				Role:         user.Role,
				AuthProvider: user.AuthProvider,
			},
			Credits: CreditsDTO{Balance: balance},
			Capabilities: CapabilitiesDTO{
				CanPurchaseCredits: access.RoleAllows(user.Role, access.ActionPurchaseCredits),
				CanConsumeCredits:  access.RoleAllows(user.Role, access.ActionConsumeCredits),
			},
		})
	}
}
