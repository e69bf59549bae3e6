package models

import "time"

// Placeholder values used when a product page cannot be read
const (
	PlaceholderTitle       = "Product"
	PlaceholderDescription = "Amazing product with great features and competitive pricing."
)

// ContentRecord is the scraped and generated material for one source URL
type ContentRecord struct {
	ID               string          `bson:"_id" json:"id"`
	URL              string          `bson:"url" json:"url"`
	Title            string          `bson:"title" json:"title"`
	Description      string          `bson:"description" json:"description"`
	Price            string          `bson:"price" json:"price,omitempty"`
	Images           []string        `bson:"images" json:"images"`
	Videos           []string        `bson:"videos" json:"videos"`
	Hashtags         []string        `bson:"hashtags" json:"hashtags"`
	GeneratedContent string          `bson:"generated_content" json:"generatedContent,omitempty"`
	MarketResearch   *MarketResearch `bson:"market_research" json:"marketResearch,omitempty"`
	Fallback         bool            `bson:"fallback" json:"fallback"`
	ScrapedAt        time.Time       `bson:"scraped_at" json:"scrapedAt"`
	CreatedAt        time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `bson:"updated_at" json:"updatedAt"`
}

// NewPlaceholderContent builds the best-effort record returned when scraping fails
func NewPlaceholderContent(url string, now time.Time) *ContentRecord {
	return &ContentRecord{
		URL:         url,
		Title:       PlaceholderTitle,
		Description: PlaceholderDescription,
		Images:      []string{},
		Videos:      []string{},
		Hashtags:    []string{},
		Fallback:    true,
		ScrapedAt:   now,
	}
}

// MarketResearch is the optional research block attached to scraped content
type MarketResearch struct {
	Category           string              `bson:"category" json:"category"`
	TargetAudience     string              `bson:"target_audience" json:"targetAudience"`
	KeySellingPoints   []string            `bson:"key_selling_points" json:"keySellingPoints"`
	PricePositioning   string              `bson:"price_positioning" json:"pricePositioning"`
	CompetitorKeywords []string            `bson:"competitor_keywords" json:"competitorKeywords"`
	BestPostingTimes   map[Platform]string `bson:"best_posting_times" json:"bestPostingTimes"`
	Source             string              `bson:"source" json:"source"`
}

// ScrapeRequest is the body of POST /scrape
type ScrapeRequest struct {
	URL                  string `json:"url" binding:"required"`
	EnableMarketResearch bool   `json:"enableMarketResearch"`
	SaveToDatabase       bool   `json:"saveToDatabase"`
}

// GenerateRequest is the body of POST /generate
type GenerateRequest struct {
	Title                 string `json:"title"`
	Description           string `json:"description"`
	URL                   string `json:"url"`
	Price                 string `json:"price"`
	Platform              string `json:"platform"`
	Type                  string `json:"type"`
	IncludeMarketResearch bool   `json:"includeMarketResearch"`
}

// GenerateResponse is the body returned by POST /generate
type GenerateResponse struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Hashtags         []string        `json:"hashtags"`
	GeneratedContent string          `json:"generatedContent"`
	MarketResearch   *MarketResearch `json:"marketResearch,omitempty"`
	Source           string          `json:"source"`
}
