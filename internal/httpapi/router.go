package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadtracker/crm/internal/analytics"
	"github.com/leadtracker/crm/internal/common"
	"github.com/leadtracker/crm/internal/config"
	"github.com/leadtracker/crm/internal/httpapi/handlers"
	"github.com/leadtracker/crm/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(h.Log))
	r.Use(middleware.Logger(h.Log))
	r.Use(middleware.Metrics())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/health", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// auth
	r.POST("/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/users/:id", h.GetUserByID)

	// field templates: read for everyone, write for admins
	authGroup.GET("/field-templates", h.ListFieldTemplates)

	// clients
	authGroup.GET("/clients", h.ListClients)
	authGroup.POST("/clients", h.CreateClient)
	authGroup.GET("/clients/:id", h.GetClient)
	authGroup.PUT("/clients/:id", h.UpdateClient)
	authGroup.DELETE("/clients/:id", h.DeleteClient)
	authGroup.GET("/records", h.ListRecords)

	authGroup.GET("/analytics/me", h.MyAnalytics)

	admin := authGroup.Group("/")
	admin.Use(middleware.AdminRequired())
	admin.POST("/users", h.CreateUser)
	admin.POST("/field-templates", h.CreateFieldTemplate)
	admin.PATCH("/field-templates/:id", h.RenameFieldTemplate)
	admin.DELETE("/field-templates/:id", h.DeleteFieldTemplate)
	admin.GET("/analytics", h.AnalyticsSnapshot)
	admin.GET("/analytics/users/:id", h.UserAnalytics)
	admin.GET("/analytics/daily", h.AnalyticsSeries(analytics.Daily))
	admin.GET("/analytics/monthly", h.AnalyticsSeries(analytics.Monthly))
	admin.GET("/analytics/hourly", h.AnalyticsSeries(analytics.Hourly))
	admin.POST("/analytics/refresh", h.RefreshAnalytics)
	admin.GET("/analytics/jobs/:job_id", h.GetAnalyticsJob)

	// chat (every request refreshes presence)
	chatGroup := authGroup.Group("/chat")
	chatGroup.Use(middleware.Presence(h.Chat, h.Log))
	chatGroup.GET("/users", h.ChatUsers)
	chatGroup.POST("/rooms", h.CreateRoom)
	chatGroup.GET("/rooms/:room_id/messages", h.GetMessages)
	chatGroup.POST("/rooms/:room_id/read", h.MarkRoomRead)
	chatGroup.POST("/messages", h.SendMessage)
	chatGroup.POST("/messages/read", h.MarkMessagesRead)
	chatGroup.POST("/typing", h.SetTyping)
	chatGroup.GET("/typing", h.GetTyping)
	chatGroup.POST("/presence", h.SetPresence)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
