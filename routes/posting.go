package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clicksprout/internal/engine"
	"clicksprout/internal/platform"
	"clicksprout/internal/store"
	"clicksprout/middleware"
	"clicksprout/models"
	"clicksprout/utils"

	"github.com/gin-gonic/gin"
)

// postIDRequest is the body of the single-post engine and scheduler actions
type postIDRequest struct {
	PostID string `json:"postId" binding:"required"`
}

type alertActionRequest struct {
	AlertID string `json:"alertId" binding:"required"`
}

type maintenanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type platformAuthRequest struct {
	Platform string `json:"platform"`
	Action   string `json:"action"`
}

func SetupPostingRoutes(router *gin.Engine, d Dependencies, guard []gin.HandlerFunc) {
	router.POST("/post/:platform", guarded(guard, handlePublish(d))...)

	router.GET("/platform-auth", handleGetPlatformAuth(d))
	router.POST("/platform-auth", guarded(guard, handlePlatformAuthAction(d))...)

	router.GET("/posting-engine", handleEngineQuery(d))
	router.POST("/posting-engine", guarded(guard, handleEngineAction(d))...)

	router.GET("/scheduler", handleListScheduled(d))
	router.POST("/scheduler", guarded(guard, handleSchedulerAction(d))...)
}

func handlePublish(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SchedulePostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}
		req.Platform = c.Param("platform")
		schedulePost(c, d, req)
	}
}

// schedulePost stores the post and answers with the scheduled or published record
func schedulePost(c *gin.Context, d Dependencies, req models.SchedulePostRequest) {
	ctx, cancel := utils.WithExternalTimeout(c.Request.Context())
	defer cancel()

	post, err := d.Engine.SchedulePost(ctx, req)
	respondPost(c, post, err, http.StatusCreated)
}

// respondPost renders the outcome of an engine call that returns a post
func respondPost(c *gin.Context, post *models.PostRecord, err error, created int) {
	var pubErr *engine.PublishError
	if errors.As(err, &pubErr) && post != nil {
		respondPublishError(c, post, pubErr)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	switch post.Status {
	case models.PostStatusPosted:
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"postId":         post.ID,
			"status":         post.Status,
			"url":            post.URL,
			"platformPostId": post.PlatformPostID,
			"postedAt":       post.PostedAt,
		})
	case models.PostStatusScheduled:
		c.JSON(created, gin.H{
			"success":       true,
			"postId":        post.ID,
			"status":        post.Status,
			"scheduledTime": post.ScheduledTime,
		})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "postId": post.ID, "status": post.Status, "post": post})
	}
}

func handleGetPlatformAuth(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithProbeTimeout(c.Request.Context())
		defer cancel()

		if raw := c.Query("platform"); raw != "" {
			p, err := models.ParsePlatform(raw)
			if err != nil {
				respondError(c, err)
				return
			}
			status, err := d.Publishers.AuthStatus(ctx, p)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, status)
			return
		}

		statuses := make([]platform.AuthStatus, 0, len(models.AllPlatforms))
		for _, p := range d.Publishers.Platforms() {
			status, err := d.Publishers.AuthStatus(ctx, p)
			if err != nil {
				respondError(c, err)
				return
			}
			statuses = append(statuses, status)
		}
		c.JSON(http.StatusOK, authSummary(statuses))
	}
}

func handlePlatformAuthAction(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req platformAuthRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}
		action := strings.ToLower(req.Action)
		if action == "" {
			action = "check"
		}
		var p models.Platform
		if req.Platform != "" {
			var err error
			if p, err = models.ParsePlatform(req.Platform); err != nil {
				respondError(c, err)
				return
			}
		}

		ctx, cancel := utils.WithExternalTimeout(c.Request.Context())
		defer cancel()

		switch action {
		case "check", "refresh":
			if action == "refresh" {
				d.Publishers.Invalidate(p)
			}
			if p == "" {
				c.JSON(http.StatusOK, authSummary(d.Publishers.CheckAll(ctx)))
				return
			}
			status, err := d.Publishers.CheckAuth(ctx, p)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, status)
		case "test":
			if p == "" {
				utils.RespondWithBadRequest(c, "platform is required for test", nil)
				return
			}
			start := time.Now()
			status, err := d.Publishers.CheckAuth(ctx, p)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"platform":      status.Platform,
				"success":       status.Authenticated,
				"mode":          status.Mode,
				"message":       status.Message,
				"breaker":       status.Breaker,
				"latencyMs":     time.Since(start).Milliseconds(),
				"authenticated": status.Authenticated,
			})
		default:
			utils.RespondWithBadRequest(c, "Unknown action: "+req.Action, gin.H{"actions": []string{"check", "refresh", "test"}})
		}
	}
}

func authSummary(statuses []platform.AuthStatus) gin.H {
	authenticated := 0
	for _, s := range statuses {
		if s.Authenticated {
			authenticated++
		}
	}
	return gin.H{
		"platforms":     statuses,
		"total":         len(statuses),
		"authenticated": authenticated,
	}
}

func handleEngineQuery(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		switch action := c.DefaultQuery("action", "status"); action {
		case "status":
			c.JSON(http.StatusOK, d.Engine.Status())
		case "health":
			health, err := d.Engine.GetSystemHealth(ctx)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, health)
		case "healthcheck":
			health, err := d.Engine.GetSystemHealth(ctx)
			if err != nil {
				respondError(c, err)
				return
			}
			healthy := health.Running && !health.Maintenance && health.Status != string(models.PlatformCritical)
			code := http.StatusOK
			if !healthy {
				code = http.StatusServiceUnavailable
			}
			c.JSON(code, gin.H{"healthy": healthy, "status": health.Status, "checkedAt": health.Timestamp})
		case "alerts":
			filter, err := alertFilterFromQuery(c)
			if err != nil {
				utils.RespondWithBadRequest(c, err.Error(), nil)
				return
			}
			alerts, err := d.Engine.GetAlerts(ctx, filter)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
		case "config":
			c.JSON(http.StatusOK, d.Engine.Config())
		default:
			utils.RespondWithBadRequest(c, "Unknown action: "+action, gin.H{
				"actions": []string{"status", "health", "healthcheck", "alerts", "config"},
			})
		}
	}
}

func alertFilterFromQuery(c *gin.Context) (models.AlertFilter, error) {
	filter := models.AlertFilter{
		Type:     models.AlertType(c.Query("type")),
		Severity: models.AlertSeverity(c.Query("severity")),
	}
	if raw := c.Query("platform"); raw != "" {
		p, err := models.ParsePlatform(raw)
		if err != nil {
			return filter, err
		}
		filter.Platform = p
	}
	if raw := c.Query("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("resolved must be true or false, got %q", raw)
		}
		filter.Resolved = &resolved
	}
	filter.Limit = 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	return filter, nil
}

func handleEngineAction(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := middleware.GetOperator(c)
		action := c.Query("action")

		switch action {
		case "start":
			// the engine outlives this request
			if err := d.Engine.Start(context.WithoutCancel(c.Request.Context())); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "status": d.Engine.Status()})
		case "stop":
			d.Engine.Stop()
			c.JSON(http.StatusOK, gin.H{"success": true, "status": d.Engine.Status()})
		case "maintenance":
			var req maintenanceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.RespondWithBadRequest(c, "enabled is required", gin.H{"error": err.Error()})
				return
			}
			toggle := d.Engine.DisableMaintenanceMode
			if *req.Enabled {
				toggle = d.Engine.EnableMaintenanceMode
			}
			if err := toggle(c.Request.Context(), who); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "maintenance": d.Engine.InMaintenance()})
		case "resolve-alert", "acknowledge-alert":
			var req alertActionRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.RespondWithBadRequest(c, "alertId is required", gin.H{"error": err.Error()})
				return
			}
			var (
				alert *models.SystemAlert
				err   error
			)
			if action == "resolve-alert" {
				alert, err = d.Engine.ResolveAlert(c.Request.Context(), req.AlertID, who)
			} else {
				alert, err = d.Engine.AcknowledgeAlert(c.Request.Context(), req.AlertID, who)
			}
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "alert": alert})
		case "update-config":
			var patch engine.ConfigPatch
			if err := c.ShouldBindJSON(&patch); err != nil {
				utils.RespondWithBadRequest(c, "Invalid config", gin.H{"error": err.Error()})
				return
			}
			updated, err := d.Engine.UpdateConfig(patch)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "config": updated})
		case "schedule":
			var req models.SchedulePostRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
				return
			}
			schedulePost(c, d, req)
		case "execute", "cancel", "retry":
			var req postIDRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.RespondWithBadRequest(c, "postId is required", gin.H{"error": err.Error()})
				return
			}
			ctx, cancel := utils.WithExternalTimeout(c.Request.Context())
			defer cancel()

			var (
				post *models.PostRecord
				err  error
			)
			switch action {
			case "execute":
				post, err = d.Engine.ExecutePost(ctx, req.PostID)
			case "cancel":
				post, err = d.Engine.CancelPost(ctx, req.PostID)
			case "retry":
				post, err = d.Engine.RetryPost(ctx, req.PostID)
			}
			respondPost(c, post, err, http.StatusOK)
		default:
			utils.RespondWithBadRequest(c, "Unknown action: "+action, gin.H{
				"actions": []string{
					"start", "stop", "maintenance", "resolve-alert", "acknowledge-alert",
					"update-config", "schedule", "execute", "cancel", "retry",
				},
			})
		}
	}
}

func handleListScheduled(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		if id := c.Query("id"); id != "" {
			post, err := d.Engine.GetPost(ctx, id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, post)
			return
		}

		filter := store.PostFilter{
			Status:     models.PostStatus(strings.ToLower(c.Query("status"))),
			Platform:   models.Platform(strings.ToLower(c.Query("platform"))),
			CampaignID: c.Query("campaignId"),
		}
		posts, err := d.Engine.ListPosts(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
	}
}

type schedulerRequest struct {
	Action string `json:"action" binding:"required"`
	models.SchedulePostRequest
	PostID string `json:"postId"`
}

func handleSchedulerAction(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req schedulerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "action is required", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		switch req.Action {
		case "schedule":
			schedulePost(c, d, req.SchedulePostRequest)
		case "cancel":
			if req.PostID == "" {
				utils.RespondWithBadRequest(c, "postId is required", nil)
				return
			}
			post, err := d.Engine.CancelPost(ctx, req.PostID)
			respondPost(c, post, err, http.StatusOK)
		case "reschedule":
			if req.PostID == "" || req.ScheduledTime == nil {
				utils.RespondWithBadRequest(c, "postId and scheduledTime are required", nil)
				return
			}
			post, err := d.Engine.ReschedulePost(ctx, req.PostID, *req.ScheduledTime)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "postId": post.ID, "status": post.Status, "post": post})
		default:
			utils.RespondWithBadRequest(c, "Unknown action: "+req.Action, gin.H{"actions": []string{"schedule", "cancel", "reschedule"}})
		}
	}
}
