package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leadtracker/crm/internal/analytics"
	"github.com/leadtracker/crm/internal/common"
)

// AnalyticsSnapshot returns the cached summaries of every user (admin).
func (h *Handler) AnalyticsSnapshot(c *gin.Context) {
	snap, err := h.Analytics.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, "analytics_snapshot", err)
		return
	}
	common.OK(c, gin.H{"analytics": snap})
}

func (h *Handler) MyAnalytics(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	sum, err := h.Analytics.UserSummary(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "my_analytics", err)
		return
	}
	common.OK(c, gin.H{"analytics": sum})
}

func (h *Handler) UserAnalytics(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		h.fail(c, "user_analytics", err)
		return
	}
	sum, err := h.Analytics.UserSummary(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "user_analytics", err)
		return
	}
	common.OK(c, gin.H{"analytics": sum})
}

// AnalyticsSeries serves one of the global zero-filled series.
func (h *Handler) AnalyticsSeries(g analytics.Granularity) gin.HandlerFunc {
	return func(c *gin.Context) {
		series, err := h.Analytics.Series(c.Request.Context(), g)
		if err != nil {
			h.fail(c, "analytics_series", err)
			return
		}
		common.OK(c, gin.H{"period": g, "series": series})
	}
}

// RefreshAnalytics queues a snapshot refresh. An Idempotency-Key header makes
// retries return the original job.
func (h *Handler) RefreshAnalytics(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))

	job, created, err := h.Analytics.RequestRefresh(c.Request.Context(), uid, key)
	if err != nil {
		h.fail(c, "refresh_analytics", err)
		return
	}
	common.OK(c, gin.H{"job_id": job.ID, "status": job.Status, "created": created})
}

func (h *Handler) GetAnalyticsJob(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("job_id"))
	if jobID == "" {
		h.fail(c, "get_analytics_job", common.Invalid("job_id required"))
		return
	}
	j, err := h.Analytics.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.fail(c, "get_analytics_job", err)
		return
	}
	common.OK(c, gin.H{"job": j})
}
