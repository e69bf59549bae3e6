package models

import "time"

// PostAnalytics holds engagement numbers for one published post
type PostAnalytics struct {
	ID             string    `bson:"_id" json:"id"`
	PostID         string    `bson:"post_id" json:"postId"`
	Platform       Platform  `bson:"platform" json:"platform"`
	Impressions    int64     `bson:"impressions" json:"impressions"`
	Likes          int64     `bson:"likes" json:"likes"`
	Comments       int64     `bson:"comments" json:"comments"`
	Shares         int64     `bson:"shares" json:"shares"`
	Clicks         int64     `bson:"clicks" json:"clicks"`
	EngagementRate float64   `bson:"engagement_rate" json:"engagementRate"`
	FetchedAt      time.Time `bson:"fetched_at" json:"fetchedAt"`
}

// PlatformAnalyticsSummary aggregates analytics for one platform
type PlatformAnalyticsSummary struct {
	Platform          Platform `json:"platform"`
	Posts             int      `json:"posts"`
	Impressions       int64    `json:"impressions"`
	Engagements       int64    `json:"engagements"`
	AvgEngagementRate float64  `json:"avgEngagementRate"`
}
