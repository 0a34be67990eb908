// internal/middleware/api_key.go
package middleware

import (
	"net/http"

	"github.com/ninexgroup/cashcavash-backend/internal/i18n"
	"github.com/ninexgroup/cashcavash-backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// APIKeyAuth authenticates server-to-server payment requests via the
// x-api-key header instead of a JWT session.
func APIKeyAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.GetHeader("Accept-Language")
		if lang == "" {
			lang = "en"
		}

		apiKey := c.GetHeader("x-api-key")
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": i18n.T(lang, i18n.KeyAuthRequired),
			})
			c.Abort()
			return
		}

		var merchant models.Merchant
		if err := db.Where("api_key = ?", apiKey).First(&merchant).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": i18n.T(lang, i18n.KeyAuthInvalidAPIKey),
			})
			c.Abort()
			return
		}

		c.Set("merchant_id", merchant.ID.String())
		c.Set("merchant_name", merchant.DisplayName())
		c.Set("merchant_role", string(merchant.Role))
		c.Next()
	}
}
