package routes

import (
	"net/http"

	"clicksprout/internal/logger"
	"clicksprout/services"
	"clicksprout/utils"

	"github.com/gin-gonic/gin"
)

func SetupAnalyticsRoutes(router *gin.Engine, d Dependencies) {
	router.GET("/analytics", handlePostAnalytics(d))
	router.GET("/analytics/summary", handleAnalyticsSummary(d))
	router.GET("/posts/export", handleExportPosts(d))
}

func handlePostAnalytics(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID := c.Query("postId")
		if postID == "" {
			utils.RespondWithBadRequest(c, "postId is required", nil)
			return
		}

		ctx, cancel := utils.WithExternalTimeout(c.Request.Context())
		defer cancel()

		row, err := d.Analytics.GetPostAnalytics(ctx, postID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func handleAnalyticsSummary(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		summary, err := d.Analytics.Summary(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"platforms": summary, "count": len(summary)})
	}
}

func handleExportPosts(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.ExportRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid export parameters", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		data, err := d.Export.Collect(ctx, &req)
		if err != nil {
			utils.RespondWithBadRequest(c, "Failed to export posts", gin.H{"error": err.Error()})
			return
		}

		logger.Info("Exporting posts", "format", data.ExportInfo.Format, "records", data.ExportInfo.TotalRecords)
		if err := d.Export.StreamExport(c, data); err != nil {
			utils.RespondWithInternalError(c, "Failed to export posts", gin.H{"error": err.Error()})
		}
	}
}
