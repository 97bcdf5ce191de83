package packages

import (
	"net/http"

	"travel-marketplace/internal/domain/packages"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListPackages answers GET /credit-packages with the active bundles,
// cheapest first.
func ListPackages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []packages.CreditPackage
		err := db.WithContext(c.Request.Context()).
			Where("active = ?", true).
			Order("amount_minor ASC").
			Find(&list).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credit packages"})
			return
		}
		c.JSON(http.StatusOK, list)
	}
}
