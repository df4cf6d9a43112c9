package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/leadtracker/crm/internal/analytics"
	"github.com/leadtracker/crm/internal/chat"
	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/config"
	"github.com/leadtracker/crm/internal/httpapi/middleware"
	"github.com/leadtracker/crm/internal/records"
	"github.com/leadtracker/crm/internal/store"
	"github.com/leadtracker/crm/internal/users"
)

type Handler struct {
	Cfg       config.Config
	Log       zerolog.Logger
	Users     *users.Service
	Records   *records.Service
	Analytics *analytics.Service
	Chat      *chat.Service
}

// NewHandler wires every service over one database and one TTL store.
func NewHandler(db *gorm.DB, cfg config.Config, cache store.TTL, log zerolog.Logger, analyticsOpts ...analytics.Option) *Handler {
	analyticsSvc := analytics.NewService(analytics.NewRepo(db), cache, cfg.AnalyticsSnapshotTTL, log, analyticsOpts...)
	return &Handler{
		Cfg:       cfg,
		Log:       log,
		Users:     users.NewService(users.NewRepo(db), log),
		Records:   records.NewService(records.NewRepo(db), analyticsSvc, log),
		Analytics: analyticsSvc,
		Chat: chat.NewService(chat.NewRepo(db), cache, chat.Options{
			PresenceTTL: cfg.PresenceTTL,
			TypingTTL:   cfg.TypingTTL,
		}, log),
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok && id != 0
}

func callerFromContext(c *gin.Context) (records.Caller, bool) {
	uid, ok := userIDFromContext(c)
	if !ok {
		return records.Caller{}, false
	}
	return records.Caller{UserID: uid, IsAdmin: c.GetBool(middleware.IsAdminKey)}, true
}

func unauthorized(c *gin.Context) {
	common.Fail(c, http.StatusUnauthorized, "unauthorized")
}

// fail writes err, logging anything that is not a client error.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status, _ := common.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error().Err(err).
			Str("op", op).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Msg("request failed")
	}
	common.Error(c, err)
}
