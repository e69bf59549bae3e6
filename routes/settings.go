package routes

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"clicksprout/internal/auth"
	"clicksprout/internal/engine"
	"clicksprout/internal/logger"
	"clicksprout/internal/settings"
	"clicksprout/utils"

	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func SetupAuthRoutes(router *gin.Engine, d Dependencies) {
	router.POST("/auth/token", handleIssueToken(d))
}

func SetupSettingsRoutes(router *gin.Engine, d Dependencies, guard []gin.HandlerFunc) {
	router.GET("/settings", handleGetSettings(d))
	router.PUT("/settings", guarded(guard, handleUpdateSettings(d))...)
}

func handleIssueToken(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Issuer == nil || !d.Issuer.Enabled() {
			utils.RespondWithUnavailable(c, "auth_disabled", "Operator authentication is not configured")
			return
		}

		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "username and password are required", gin.H{"error": err.Error()})
			return
		}
		if err := d.Operator.Verify(strings.TrimSpace(req.Username), req.Password); err != nil {
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				logger.Error("Operator verification failed", "error", err)
			}
			logger.Warn("Operator login rejected", "username", req.Username, "client_ip", c.ClientIP())
			utils.RespondWithUnauthorized(c, "Invalid credentials")
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		token, err := d.Issuer.Issue(ctx, d.Operator.Username)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue token", gin.H{"error": err.Error()})
			return
		}
		c.SetCookie("access_token", token.AccessToken, int(time.Until(token.ExpiresAt).Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, token)
	}
}

func handleGetSettings(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Settings.Get())
	}
}

func handleUpdateSettings(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch settings.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			utils.RespondWithBadRequest(c, "Invalid settings", gin.H{"error": err.Error()})
			return
		}

		updated, err := d.Settings.Update(patch)
		if err != nil {
			respondError(c, err)
			return
		}

		// new posts pick up the retry default from the engine
		if patch.DefaultMaxRetries != nil {
			n := updated.DefaultMaxRetries
			if _, err := d.Engine.UpdateConfig(engine.ConfigPatch{DefaultMaxRetries: &n}); err != nil {
				logger.Warn("Engine retry default not updated", "error", err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "settings": updated})
	}
}
