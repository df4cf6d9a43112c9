package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PresenceRefresher is satisfied by the chat service.
type PresenceRefresher interface {
	SetOnline(ctx context.Context, userID uint64) error
}

// Presence marks the authenticated caller online on every request. Failures
// are logged and never block the request.
func Presence(p PresenceRefresher, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := c.GetUint64(UserIDKey); uid != 0 {
			if err := p.SetOnline(c.Request.Context(), uid); err != nil {
				log.Warn().Err(err).Uint64("user_id", uid).Msg("presence refresh failed")
			}
		}
		c.Next()
	}
}
