// Package generator produces titles, descriptions, hashtags and post bodies
// for product content. It prefers the LLM and always degrades to templates.
package generator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"clicksprout/internal/logger"
	"clicksprout/internal/telemetry"
	"clicksprout/models"
)

// Sources reported in results
const (
	SourceLLM      = "llm"
	SourceTemplate = "template"
)

// Type selects what the caller wants generated
type Type string

const (
	TypeEnhance  Type = "enhance"
	TypeHashtags Type = "hashtags"
	TypeContent  Type = "content"
	TypeComplete Type = "complete"
)

var ErrInvalidType = errors.New("invalid generation type")

// ParseType accepts the known types; empty means complete
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeComplete, nil
	case TypeEnhance, TypeHashtags, TypeContent, TypeComplete:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// Completer is a text model
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Input is the product material to generate from
type Input struct {
	Title                 string
	Description           string
	URL                   string
	Price                 string
	Platform              models.Platform
	Type                  Type
	IncludeMarketResearch bool
}

// InputFromContent builds an Input from a scraped record
func InputFromContent(rec *models.ContentRecord, kind Type, platform models.Platform) Input {
	return Input{
		Title:       rec.Title,
		Description: rec.Description,
		URL:         rec.URL,
		Price:       rec.Price,
		Platform:    platform,
		Type:        kind,
	}
}

type Generator struct {
	llm     Completer
	metrics *telemetry.Metrics
}

// New returns a generator. A nil llm selects the template strategy for every call.
func New(llm Completer, metrics *telemetry.Metrics) *Generator {
	return &Generator{llm: llm, metrics: metrics}
}

// LLMEnabled reports which strategy Generate tries first
func (g *Generator) LLMEnabled() bool {
	return g.llm != nil
}

// Generate never fails. Any LLM error or unparseable answer falls through to
// the deterministic template result.
func (g *Generator) Generate(ctx context.Context, in Input) models.GenerateResponse {
	in = normalizeInput(in)

	result := fallback(in)
	if g.llm != nil {
		if err := g.generateWithLLM(ctx, in, &result); err != nil {
			logger.Warn("LLM generation failed, using templates",
				"type", string(in.Type),
				"title", in.Title,
				"error", err,
			)
			result = fallback(in)
		}
	}

	if in.IncludeMarketResearch {
		result.MarketResearch = g.MarketResearch(ctx, in)
	}

	g.metrics.RecordGeneration(result.Source, string(in.Type))
	return result
}

func (g *Generator) generateWithLLM(ctx context.Context, in Input, result *models.GenerateResponse) error {
	text, err := g.llm.Complete(ctx, buildPrompt(in))
	if err != nil {
		return err
	}

	sections, err := parseSections(text, requiredMarkers(in.Type))
	if err != nil {
		return err
	}

	if v := sections[markerTitle]; v != "" {
		result.Title = v
	}
	if v := sections[markerDescription]; v != "" {
		result.Description = v
	}
	tags := limitHashtags(in.Platform, parseHashtags(sections[markerHashtags]))
	switch {
	case len(tags) > 0:
		result.Hashtags = tags
	case slices.Contains(requiredMarkers(in.Type), markerHashtags):
		return fmt.Errorf("%w: no usable hashtags", ErrUnparseable)
	}
	if v := sections[markerContent]; v != "" {
		result.GeneratedContent = fitToPlatform(in.Platform, v)
	}
	result.Source = SourceLLM
	return nil
}

func normalizeInput(in Input) Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.URL = strings.TrimSpace(in.URL)
	in.Price = strings.TrimSpace(in.Price)
	if in.Title == "" {
		in.Title = models.PlaceholderTitle
	}
	if in.Type == "" {
		in.Type = TypeComplete
	}
	return in
}
