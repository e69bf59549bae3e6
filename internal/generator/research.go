package generator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"clicksprout/internal/logger"
	"clicksprout/models"
)

const (
	markerCategory     = "CATEGORY"
	markerAudience     = "AUDIENCE"
	markerSellingPoint = "SELLING_POINTS"
	markerPricing      = "PRICE_POSITIONING"
	markerKeywords     = "KEYWORDS"
)

var researchMarkers = []string{markerCategory, markerAudience, markerSellingPoint, markerPricing, markerKeywords}

// bestPostingTimes are general engagement windows, local time
var bestPostingTimes = map[models.Platform]string{
	models.PlatformInstagram: "11:00-13:00, 19:00-21:00",
	models.PlatformFacebook:  "09:00-11:00, 13:00-15:00",
	models.PlatformTwitter:   "08:00-10:00, 12:00-13:00",
	models.PlatformLinkedIn:  "07:30-09:00, 12:00-13:00 weekdays",
	models.PlatformPinterest: "20:00-23:00, Saturday mornings",
	models.PlatformReddit:    "06:00-08:00, 20:00-22:00",
	models.PlatformTikTok:    "18:00-22:00",
	models.PlatformMedium:    "07:00-09:00 weekdays",
}

// MarketResearch returns product positioning notes. The LLM fills them when
// available; templates cover every failure.
func (g *Generator) MarketResearch(ctx context.Context, in Input) *models.MarketResearch {
	in = normalizeInput(in)
	research := templateResearch(in)
	if g.llm == nil {
		return research
	}

	text, err := g.llm.Complete(ctx, buildResearchPrompt(in))
	if err == nil {
		var sections map[string]string
		sections, err = parseResearchSections(text)
		if err == nil {
			research.Category = strings.ToLower(sections[markerCategory])
			research.TargetAudience = sections[markerAudience]
			if points := splitList(sections[markerSellingPoint]); len(points) > 0 {
				research.KeySellingPoints = points
			}
			if v := sections[markerPricing]; v != "" {
				research.PricePositioning = v
			}
			if kws := splitList(sections[markerKeywords]); len(kws) > 0 {
				research.CompetitorKeywords = kws
			}
			research.Source = SourceLLM
			return research
		}
	}

	logger.Warn("LLM market research failed, using templates", "title", in.Title, "error", err)
	return research
}

func templateResearch(in Input) *models.MarketResearch {
	b := detectBucket(in.Title, in.Description)

	times := make(map[models.Platform]string, len(bestPostingTimes))
	for p, t := range bestPostingTimes {
		times[p] = t
	}

	return &models.MarketResearch{
		Category:           b.name,
		TargetAudience:     b.audience,
		KeySellingPoints:   sellingPoints(in.Description, b),
		PricePositioning:   pricePositioning(in.Price),
		CompetitorKeywords: competitorKeywords(in.Title, b),
		BestPostingTimes:   times,
		Source:             SourceTemplate,
	}
}

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

// sellingPoints takes up to three sentences of the description
func sellingPoints(description string, b bucket) []string {
	points := []string{}
	for _, s := range sentenceEnd.Split(description, -1) {
		s = strings.TrimRight(strings.TrimSpace(s), ".!?")
		if len(s) < 8 {
			continue
		}
		points = append(points, s)
		if len(points) == 3 {
			break
		}
	}
	if len(points) == 0 {
		points = append(points, strings.TrimSuffix(b.tagline, "."))
	}
	return points
}

var priceNumber = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

func pricePositioning(price string) string {
	raw := priceNumber.FindString(price)
	if raw == "" {
		return "unknown"
	}
	// "1,299.00" and "1.299,00" both read as 1299
	raw = strings.ReplaceAll(raw, ",", ".")
	if i := strings.LastIndex(raw, "."); i >= 0 && len(raw)-i-1 == 2 {
		raw = strings.ReplaceAll(raw[:i], ".", "") + raw[i:]
	} else {
		raw = strings.ReplaceAll(raw, ".", "")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "unknown"
	}
	switch {
	case v < 25:
		return "budget"
	case v < 100:
		return "mid-range"
	default:
		return "premium"
	}
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "your": true, "new": true, "from": true, "this": true, "that": true,
}

func competitorKeywords(title string, b bucket) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(w string) {
		if len(w) < 3 || stopWords[w] || seen[w] || len(out) >= 8 {
			return
		}
		seen[w] = true
		out = append(out, w)
	}
	for _, w := range tokenize(title) {
		add(w)
	}
	for _, tag := range b.hashtags {
		add(strings.TrimPrefix(tag, "#"))
	}
	return out
}

func buildResearchPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are a market research analyst for e-commerce products.\n\n")
	fmt.Fprintf(&b, "Product title: %s\n", in.Title)
	if in.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", in.Description)
	}
	if in.Price != "" {
		fmt.Fprintf(&b, "Price: %s\n", in.Price)
	}
	b.WriteString("\nAnswer using exactly these markers, each at the start of its own line. Lists are comma separated.\n")
	for _, m := range researchMarkers {
		fmt.Fprintf(&b, "%s: ...\n", m)
	}
	return b.String()
}

// parseResearchSections reads the research markers; category and audience are required
func parseResearchSections(text string) (map[string]string, error) {
	sections := make(map[string]string)
	current := ""
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(strings.TrimSpace(line), "#*_- ")
		matched := false
		for _, m := range researchMarkers {
			if len(trimmed) > len(m) && strings.EqualFold(trimmed[:len(m)], m) {
				rest := strings.TrimLeft(trimmed[len(m):], "*_ ")
				if strings.HasPrefix(rest, ":") {
					current = m
					sections[m] = strings.TrimSpace(strings.TrimLeft(rest[1:], "*_ "))
					matched = true
					break
				}
			}
		}
		if !matched && current != "" && strings.TrimSpace(line) != "" {
			sections[current] = strings.TrimSpace(sections[current] + ", " + strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		}
	}
	for _, m := range []string{markerCategory, markerAudience} {
		if sections[m] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrUnparseable, m)
		}
	}
	return sections, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(part), "-*•"))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
