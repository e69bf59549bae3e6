package models

import "time"

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

// CampaignRecord groups posts that share a product link and target platforms.
// Deleting a campaign leaves its posts in place.
type CampaignRecord struct {
	ID          string     `bson:"_id" json:"id"`
	Name        string     `bson:"name" json:"name" binding:"required,min=1,max=200"`
	Description string     `bson:"description" json:"description,omitempty"`
	ProductURL  string     `bson:"product_url" json:"productUrl,omitempty"`
	Platforms   []Platform `bson:"platforms" json:"platforms"`
	Status      string     `bson:"status" json:"status"`
	PostIDs     []string   `bson:"post_ids" json:"postIds"`
	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
}
