package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leadtracker/crm/internal/auth"
	"github.com/leadtracker/crm/internal/common"
)

const (
	UserIDKey  = "user_id"
	IsAdminKey = "is_admin"
)

// AuthRequired validates the bearer token and stores the caller in the context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			common.Fail(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		claims, err := auth.ParseJWT(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(IsAdminKey, claims.IsAdmin)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(IsAdminKey) {
			common.Fail(c, http.StatusForbidden, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}
