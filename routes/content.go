package routes

import (
	"net/http"
	"strings"

	"clicksprout/internal/generator"
	"clicksprout/internal/logger"
	"clicksprout/models"
	"clicksprout/utils"

	"github.com/gin-gonic/gin"
)

func SetupContentRoutes(router *gin.Engine, d Dependencies) {
	router.POST("/scrape", handleScrape(d))
	router.POST("/generate", handleGenerate(d))

	content := router.Group("/content")
	content.GET("", handleGetContent(d))
	content.POST("", handleCreateContent(d))
	content.PUT("", handleUpdateContent(d))
	content.DELETE("", handleDeleteContent(d))
}

func handleScrape(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "A product url is required", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithExternalTimeout(c.Request.Context())
		defer cancel()

		rec, err := d.Scraper.Scrape(ctx, strings.TrimSpace(req.URL))
		if err != nil {
			respondError(c, err)
			return
		}

		if req.EnableMarketResearch {
			rec.MarketResearch = d.Generator.MarketResearch(ctx, generator.InputFromContent(rec, generator.TypeComplete, ""))
		}

		if req.SaveToDatabase {
			if err := d.Repos.Content.Create(ctx, rec); err != nil {
				respondError(c, err)
				return
			}
			logger.Info("Scraped content saved", "content_id", rec.ID, "url", rec.URL, "fallback", rec.Fallback)
		}

		c.JSON(http.StatusOK, rec)
	}
}

func handleGenerate(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}

		kind, err := generator.ParseType(req.Type)
		if err != nil {
			respondError(c, err)
			return
		}
		var p models.Platform
		if req.Platform != "" {
			if p, err = models.ParsePlatform(req.Platform); err != nil {
				respondError(c, err)
				return
			}
		}

		ctx, cancel := utils.WithExternalTimeout(c.Request.Context())
		defer cancel()

		in := generator.Input{
			Title:                 req.Title,
			Description:           req.Description,
			URL:                   req.URL,
			Price:                 req.Price,
			Platform:              p,
			Type:                  kind,
			IncludeMarketResearch: req.IncludeMarketResearch,
		}

		// a bare url is scraped first so there is something to write about
		if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
			if strings.TrimSpace(req.URL) == "" {
				utils.RespondWithBadRequest(c, "title, description or url is required", nil)
				return
			}
			rec, err := d.Scraper.Scrape(ctx, strings.TrimSpace(req.URL))
			if err != nil {
				respondError(c, err)
				return
			}
			scraped := generator.InputFromContent(rec, kind, p)
			scraped.IncludeMarketResearch = req.IncludeMarketResearch
			if in.Price != "" {
				scraped.Price = in.Price
			}
			in = scraped
		}

		c.JSON(http.StatusOK, d.Generator.Generate(ctx, in))
	}
}

func handleGetContent(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		if id := c.Query("id"); id != "" {
			rec, err := d.Repos.Content.Get(ctx, id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, rec)
			return
		}

		records, err := d.Repos.Content.List(ctx, c.Query("url"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"content": records, "count": len(records)})
	}
}

func handleCreateContent(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rec models.ContentRecord
		if err := c.ShouldBindJSON(&rec); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(rec.URL) == "" && strings.TrimSpace(rec.Title) == "" {
			utils.RespondWithBadRequest(c, "url or title is required", nil)
			return
		}
		rec.ID = ""
		normalizeContent(&rec)

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		if err := d.Repos.Content.Create(ctx, &rec); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

func handleUpdateContent(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			utils.RespondWithBadRequest(c, "id query parameter is required", nil)
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		rec, err := d.Repos.Content.Get(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		createdAt := rec.CreatedAt
		// fields absent from the body keep their stored values
		if err := c.ShouldBindJSON(rec); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}
		rec.ID = id
		rec.CreatedAt = createdAt
		normalizeContent(rec)

		if err := d.Repos.Content.Save(ctx, rec); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func handleDeleteContent(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			utils.RespondWithBadRequest(c, "id query parameter is required", nil)
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		deleted, err := d.Repos.Content.Delete(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		if !deleted {
			utils.RespondWithNotFound(c, "content not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
	}
}

func normalizeContent(rec *models.ContentRecord) {
	if rec.Images == nil {
		rec.Images = []string{}
	}
	if rec.Videos == nil {
		rec.Videos = []string{}
	}
	if rec.Hashtags == nil {
		rec.Hashtags = []string{}
	}
}
