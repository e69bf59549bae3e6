package routes

import (
	"fmt"
	"net/http"
	"strings"

	"clicksprout/internal/store"
	"clicksprout/models"
	"clicksprout/utils"

	"github.com/gin-gonic/gin"
)

func SetupCampaignRoutes(router *gin.Engine, d Dependencies) {
	campaigns := router.Group("/campaigns")
	campaigns.GET("", handleGetCampaigns(d))
	campaigns.POST("", handleCreateCampaign(d))
	campaigns.PUT("", handleUpdateCampaign(d))
	campaigns.DELETE("", handleDeleteCampaign(d))

	templates := router.Group("/templates")
	templates.GET("", handleGetTemplates(d))
	templates.POST("", handleCreateTemplate(d))
	templates.PUT("", handleUpdateTemplate(d))
	templates.DELETE("", handleDeleteTemplate(d))
}

func handleGetCampaigns(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		if id := c.Query("id"); id != "" {
			campaign, err := d.Repos.Campaigns.Get(ctx, id)
			if err != nil {
				respondError(c, err)
				return
			}
			posts, err := d.Repos.Posts.List(ctx, store.PostFilter{CampaignID: id})
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"campaign": campaign, "posts": posts})
			return
		}

		campaigns, err := d.Repos.Campaigns.List(ctx, c.Query("status"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"campaigns": campaigns, "count": len(campaigns)})
	}
}

func handleCreateCampaign(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var campaign models.CampaignRecord
		if err := c.ShouldBindJSON(&campaign); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}
		campaign.ID = ""
		campaign.PostIDs = nil
		if err := validateCampaign(&campaign); err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		if err := d.Repos.Campaigns.Create(ctx, &campaign); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, campaign)
	}
}

func handleUpdateCampaign(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			utils.RespondWithBadRequest(c, "id query parameter is required", nil)
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		campaign, err := d.Repos.Campaigns.Get(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		createdAt, postIDs := campaign.CreatedAt, campaign.PostIDs
		if err := c.ShouldBindJSON(campaign); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}
		campaign.ID = id
		campaign.CreatedAt = createdAt
		// post membership is owned by the posting engine
		campaign.PostIDs = postIDs
		if err := validateCampaign(campaign); err != nil {
			respondError(c, err)
			return
		}

		if err := d.Repos.Campaigns.Save(ctx, campaign); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, campaign)
	}
}

// handleDeleteCampaign removes the campaign only; its posts keep their campaignId
func handleDeleteCampaign(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			utils.RespondWithBadRequest(c, "id query parameter is required", nil)
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		deleted, err := d.Repos.Campaigns.Delete(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		if !deleted {
			utils.RespondWithNotFound(c, "campaign not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
	}
}

func validateCampaign(campaign *models.CampaignRecord) error {
	campaign.Name = strings.TrimSpace(campaign.Name)
	if campaign.Name == "" {
		return fmt.Errorf("%w: name is required", store.ErrInvalidRecord)
	}
	switch campaign.Status {
	case "", models.CampaignStatusDraft, models.CampaignStatusActive, models.CampaignStatusPaused, models.CampaignStatusCompleted:
	default:
		return fmt.Errorf("%w: unknown campaign status %q", store.ErrInvalidRecord, campaign.Status)
	}
	platforms := make([]models.Platform, 0, len(campaign.Platforms))
	for _, raw := range campaign.Platforms {
		p, err := models.ParsePlatform(string(raw))
		if err != nil {
			return err
		}
		platforms = append(platforms, p)
	}
	campaign.Platforms = platforms
	return nil
}

func handleGetTemplates(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		if id := c.Query("id"); id != "" {
			tpl, err := d.Repos.Templates.Get(ctx, id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, tpl)
			return
		}

		var p models.Platform
		if raw := c.Query("platform"); raw != "" {
			var err error
			if p, err = models.ParsePlatform(raw); err != nil {
				respondError(c, err)
				return
			}
		}
		templates, err := d.Repos.Templates.List(ctx, p, c.Query("category"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"templates": templates, "count": len(templates)})
	}
}

func handleCreateTemplate(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tpl models.TemplateRecord
		if err := c.ShouldBindJSON(&tpl); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}
		tpl.ID = ""
		if err := validateTemplate(&tpl); err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		if err := d.Repos.Templates.Create(ctx, &tpl); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, tpl)
	}
}

func handleUpdateTemplate(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			utils.RespondWithBadRequest(c, "id query parameter is required", nil)
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		tpl, err := d.Repos.Templates.Get(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		createdAt := tpl.CreatedAt
		if err := c.ShouldBindJSON(tpl); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}
		tpl.ID = id
		tpl.CreatedAt = createdAt
		if err := validateTemplate(tpl); err != nil {
			respondError(c, err)
			return
		}

		if err := d.Repos.Templates.Save(ctx, tpl); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, tpl)
	}
}

func handleDeleteTemplate(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			utils.RespondWithBadRequest(c, "id query parameter is required", nil)
			return
		}

		ctx, cancel := utils.WithStoreTimeout(c.Request.Context())
		defer cancel()

		deleted, err := d.Repos.Templates.Delete(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		if !deleted {
			utils.RespondWithNotFound(c, "template not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
	}
}

func validateTemplate(tpl *models.TemplateRecord) error {
	tpl.Name = strings.TrimSpace(tpl.Name)
	if tpl.Name == "" {
		return fmt.Errorf("%w: name is required", store.ErrInvalidRecord)
	}
	if strings.TrimSpace(tpl.TitleTemplate) == "" && strings.TrimSpace(tpl.BodyTemplate) == "" {
		return fmt.Errorf("%w: titleTemplate or bodyTemplate is required", store.ErrInvalidRecord)
	}
	if tpl.Platform != "" {
		p, err := models.ParsePlatform(string(tpl.Platform))
		if err != nil {
			return err
		}
		tpl.Platform = p
	}
	if tpl.Hashtags == nil {
		tpl.Hashtags = []string{}
	}
	return nil
}
