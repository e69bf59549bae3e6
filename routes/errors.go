package routes

import (
	"context"
	"errors"
	"net/http"

	"clicksprout/internal/crawler"
	"clicksprout/internal/engine"
	"clicksprout/internal/generator"
	"clicksprout/internal/logger"
	"clicksprout/internal/platform"
	"clicksprout/internal/settings"
	"clicksprout/internal/store"
	"clicksprout/middleware"
	"clicksprout/models"
	"clicksprout/services"
	"clicksprout/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP responses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrUnsupportedPlatform):
		utils.RespondWithError(c, http.StatusBadRequest, "unsupported_platform", err.Error(), nil)
	case errors.Is(err, crawler.ErrInvalidInput),
		errors.Is(err, generator.ErrInvalidType),
		errors.Is(err, engine.ErrInvalidPost),
		errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, store.ErrInvalidRecord),
		errors.Is(err, settings.ErrInvalidSettings),
		errors.Is(err, services.ErrInvalidAlert):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		utils.RespondWithNotFound(c, err.Error())
	case errors.Is(err, engine.ErrMaintenanceMode):
		utils.RespondWithUnavailable(c, "maintenance_mode", err.Error())
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, engine.ErrNotRetryable):
		utils.RespondWithConflict(c, "invalid_state", err.Error())
	case errors.Is(err, engine.ErrPostInFlight):
		utils.RespondWithConflict(c, "post_in_flight", err.Error())
	case errors.Is(err, engine.ErrAlreadyRunning):
		utils.RespondWithConflict(c, "already_running", err.Error())
	case errors.Is(err, services.ErrNotPublished):
		utils.RespondWithConflict(c, "not_published", err.Error())
	case errors.Is(err, platform.ErrAuth):
		utils.RespondWithError(c, http.StatusUnauthorized, "platform_auth_failed", err.Error(), nil)
	case errors.Is(err, platform.ErrMetricsUnsupported):
		utils.RespondWithError(c, http.StatusNotImplemented, "metrics_unsupported", err.Error(), nil)
	case errors.Is(err, platform.ErrUnavailable):
		utils.RespondWithUnavailable(c, "platform_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		utils.RespondWithError(c, http.StatusGatewayTimeout, "timeout", "The operation timed out", nil)
	default:
		logger.Error("Request failed", "path", c.FullPath(), "error", err, "request_id", middleware.GetRequestID(c))
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}

// respondPublishError reports a failed publish together with the stored post
func respondPublishError(c *gin.Context, post *models.PostRecord, pubErr *engine.PublishError) {
	if errors.Is(pubErr, platform.ErrAuth) {
		utils.RespondWithError(c, http.StatusUnauthorized, "platform_auth_failed", pubErr.Error(), gin.H{
			"postId": post.ID,
			"status": post.Status,
		})
		return
	}
	if pubErr.Retrying {
		c.JSON(http.StatusAccepted, gin.H{
			"success":       false,
			"postId":        post.ID,
			"status":        post.Status,
			"retryCount":    post.RetryCount,
			"nextAttemptAt": post.NextAttemptAt,
			"lastError":     post.LastError,
		})
		return
	}
	utils.RespondWithError(c, http.StatusBadGateway, "publish_failed", pubErr.Error(), gin.H{
		"postId": post.ID,
		"status": post.Status,
	})
}
