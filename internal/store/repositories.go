package store

import (
	"context"
	"sort"

	"clicksprout/models"

	"github.com/google/uuid"
)

// Repositories bundles every typed repository over one engine
type Repositories struct {
	Posts     *PostRepository
	Campaigns *CampaignRepository
	Content   *ContentRepository
	Templates *TemplateRepository
	Analytics *AnalyticsRepository
	Alerts    *AlertRepository
}

func NewRepositories(engine Engine) *Repositories {
	return &Repositories{
		Posts:     &PostRepository{t: table[models.PostRecord]{engine, TablePosts}},
		Campaigns: &CampaignRepository{t: table[models.CampaignRecord]{engine, TableCampaigns}},
		Content:   &ContentRepository{t: table[models.ContentRecord]{engine, TableContent}},
		Templates: &TemplateRepository{t: table[models.TemplateRecord]{engine, TableTemplates}},
		Analytics: &AnalyticsRepository{t: table[models.PostAnalytics]{engine, TableAnalytics}},
		Alerts:    &AlertRepository{t: table[models.SystemAlert]{engine, TableAlerts}},
	}
}

// PostFilter narrows post listings. Zero values match everything.
type PostFilter struct {
	Status     models.PostStatus
	Platform   models.Platform
	CampaignID string
}

type PostRepository struct {
	t table[models.PostRecord]
}

// Create assigns an id when missing and stamps both timestamps
func (r *PostRepository) Create(ctx context.Context, post *models.PostRecord) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	return r.t.insert(ctx, post)
}

func (r *PostRepository) Get(ctx context.Context, id string) (*models.PostRecord, error) {
	return r.t.get(ctx, id)
}

// Save writes the full record back. UpdatedAt is owned by the caller so that
// status transitions and stored timestamps agree.
func (r *PostRepository) Save(ctx context.Context, post *models.PostRecord) error {
	return r.t.save(ctx, post.ID, post)
}

func (r *PostRepository) List(ctx context.Context, f PostFilter) ([]models.PostRecord, error) {
	filter := Filter{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Platform != "" {
		filter["platform"] = f.Platform
	}
	if f.CampaignID != "" {
		filter["campaign_id"] = f.CampaignID
	}
	posts, err := r.t.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) (bool, error) {
	return r.t.delete(ctx, id)
}

type CampaignRepository struct {
	t table[models.CampaignRecord]
}

func (r *CampaignRepository) Create(ctx context.Context, c *models.CampaignRecord) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}
	if c.Platforms == nil {
		c.Platforms = []models.Platform{}
	}
	if c.PostIDs == nil {
		c.PostIDs = []string{}
	}
	now := Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	return r.t.insert(ctx, c)
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (*models.CampaignRecord, error) {
	return r.t.get(ctx, id)
}

func (r *CampaignRepository) List(ctx context.Context, status string) ([]models.CampaignRecord, error) {
	filter := Filter{}
	if status != "" {
		filter["status"] = status
	}
	return r.t.find(ctx, filter)
}

func (r *CampaignRepository) Save(ctx context.Context, c *models.CampaignRecord) error {
	c.UpdatedAt = Now()
	return r.t.save(ctx, c.ID, c)
}

// AttachPost records a post id on its campaign
func (r *CampaignRepository) AttachPost(ctx context.Context, campaignID, postID string) error {
	c, err := r.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	for _, id := range c.PostIDs {
		if id == postID {
			return nil
		}
	}
	c.PostIDs = append(c.PostIDs, postID)
	return r.Save(ctx, c)
}

// Delete removes only the campaign. Its posts are left untouched.
func (r *CampaignRepository) Delete(ctx context.Context, id string) (bool, error) {
	return r.t.delete(ctx, id)
}

type ContentRepository struct {
	t table[models.ContentRecord]
}

func (r *ContentRepository) Create(ctx context.Context, c *models.ContentRecord) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	return r.t.insert(ctx, c)
}

func (r *ContentRepository) Get(ctx context.Context, id string) (*models.ContentRecord, error) {
	return r.t.get(ctx, id)
}

// List returns content, optionally only the records scraped from url
func (r *ContentRepository) List(ctx context.Context, url string) ([]models.ContentRecord, error) {
	filter := Filter{}
	if url != "" {
		filter["url"] = url
	}
	return r.t.find(ctx, filter)
}

func (r *ContentRepository) Save(ctx context.Context, c *models.ContentRecord) error {
	c.UpdatedAt = Now()
	return r.t.save(ctx, c.ID, c)
}

func (r *ContentRepository) Delete(ctx context.Context, id string) (bool, error) {
	return r.t.delete(ctx, id)
}

type TemplateRepository struct {
	t table[models.TemplateRecord]
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *models.TemplateRecord) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.Hashtags == nil {
		tpl.Hashtags = []string{}
	}
	now := Now()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	return r.t.insert(ctx, tpl)
}

func (r *TemplateRepository) Get(ctx context.Context, id string) (*models.TemplateRecord, error) {
	return r.t.get(ctx, id)
}

func (r *TemplateRepository) List(ctx context.Context, platform models.Platform, category string) ([]models.TemplateRecord, error) {
	filter := Filter{}
	if platform != "" {
		filter["platform"] = platform
	}
	if category != "" {
		filter["category"] = category
	}
	return r.t.find(ctx, filter)
}

func (r *TemplateRepository) Save(ctx context.Context, tpl *models.TemplateRecord) error {
	tpl.UpdatedAt = Now()
	return r.t.save(ctx, tpl.ID, tpl)
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) (bool, error) {
	return r.t.delete(ctx, id)
}

// AnalyticsRepository keeps one analytics row per post, keyed by the post id
type AnalyticsRepository struct {
	t table[models.PostAnalytics]
}

func (r *AnalyticsRepository) Get(ctx context.Context, postID string) (*models.PostAnalytics, error) {
	return r.t.get(ctx, postID)
}

func (r *AnalyticsRepository) Upsert(ctx context.Context, a *models.PostAnalytics) error {
	a.ID = a.PostID
	_, err := r.t.get(ctx, a.ID)
	switch {
	case err == nil:
		return r.t.save(ctx, a.ID, a)
	case isNotFound(err):
		return r.t.insert(ctx, a)
	default:
		return err
	}
}

func (r *AnalyticsRepository) List(ctx context.Context, platform models.Platform) ([]models.PostAnalytics, error) {
	filter := Filter{}
	if platform != "" {
		filter["platform"] = platform
	}
	return r.t.find(ctx, filter)
}

type AlertRepository struct {
	t table[models.SystemAlert]
}

func (r *AlertRepository) Create(ctx context.Context, a *models.SystemAlert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = Now()
	return r.t.insert(ctx, a)
}

func (r *AlertRepository) Get(ctx context.Context, id string) (*models.SystemAlert, error) {
	return r.t.get(ctx, id)
}

// List returns matching alerts, newest first
func (r *AlertRepository) List(ctx context.Context, f models.AlertFilter) ([]models.SystemAlert, error) {
	filter := Filter{}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Severity != "" {
		filter["severity"] = f.Severity
	}
	if f.Platform != "" {
		filter["platform"] = f.Platform
	}
	if f.Resolved != nil {
		filter["resolved"] = *f.Resolved
	}
	alerts, err := r.t.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].CreatedAt.After(alerts[j].CreatedAt) })
	if f.Limit > 0 && len(alerts) > f.Limit {
		alerts = alerts[:f.Limit]
	}
	return alerts, nil
}

func (r *AlertRepository) Save(ctx context.Context, a *models.SystemAlert) error {
	return r.t.save(ctx, a.ID, a)
}
