package models

import "time"

// TemplateRecord is a reusable post template
type TemplateRecord struct {
	ID            string    `bson:"_id" json:"id"`
	Name          string    `bson:"name" json:"name" binding:"required"`
	Platform      Platform  `bson:"platform" json:"platform,omitempty"`
	Category      string    `bson:"category" json:"category,omitempty"`
	TitleTemplate string    `bson:"title_template" json:"titleTemplate"`
	BodyTemplate  string    `bson:"body_template" json:"bodyTemplate"`
	Hashtags      []string  `bson:"hashtags" json:"hashtags"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}
