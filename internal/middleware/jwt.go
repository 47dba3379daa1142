package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
	"github.com/noah-isme/academy-schedule-api/pkg/response"
)

// ContextStaffKey is the gin context key storing the console staff claims.
const ContextStaffKey = "currentStaff"

type tokenValidator interface {
	Validate(token string) (*models.StaffClaims, error)
}

// StaffAuth protects console routes by requiring a valid bearer token.
func StaffAuth(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextStaffKey, claims)
		c.Next()
	}
}

// StaffFromContext returns the claims attached by StaffAuth, or nil on public routes.
func StaffFromContext(c *gin.Context) *models.StaffClaims {
	value, exists := c.Get(ContextStaffKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.StaffClaims)
	if !ok {
		return nil
	}
	return claims
}
