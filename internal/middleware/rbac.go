package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kasukras-star/apotikme-api/internal/models"
	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
	"github.com/kasukras-star/apotikme-api/pkg/response"
)

// RequireRoles rejects callers whose token carries none of the given roles.
// Requests without claims pass through, which is the case when authentication is disabled.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			c.Next()
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" cannot perform this action"))
			c.Abort()
			return
		}
		c.Next()
	}
}
