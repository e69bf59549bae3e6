package generator

import (
	"context"
	"errors"
	"testing"

	"clicksprout/models"

	"github.com/stretchr/testify/assert"
)

func TestMarketResearch_Template(t *testing.T) {
	res := New(nil, nil).MarketResearch(context.Background(), Input{
		Title:       "Trail Hiking Backpack",
		Description: "Waterproof 30L pack. Padded straps for long days! Fits a laptop.",
		Price:       "$89.50",
	})

	assert.Equal(t, SourceTemplate, res.Source)
	assert.Equal(t, "outdoor", res.Category)
	assert.Equal(t, "mid-range", res.PricePositioning)
	assert.Equal(t, []string{"Waterproof 30L pack", "Padded straps for long days", "Fits a laptop"}, res.KeySellingPoints)
	assert.Contains(t, res.CompetitorKeywords, "backpack")
	assert.Len(t, res.BestPostingTimes, len(models.AllPlatforms))
}

func TestMarketResearch_LLM(t *testing.T) {
	llm := &stubCompleter{reply: "CATEGORY: Outdoor Gear\nAUDIENCE: Weekend hikers\nSELLING_POINTS:\n- Waterproof\n- Light\nPRICE_POSITIONING: mid-range\nKEYWORDS: hiking pack, daypack"}
	res := New(llm, nil).MarketResearch(context.Background(), Input{Title: "Backpack"})

	assert.Equal(t, SourceLLM, res.Source)
	assert.Equal(t, "outdoor gear", res.Category)
	assert.Equal(t, "Weekend hikers", res.TargetAudience)
	assert.Equal(t, []string{"Waterproof", "Light"}, res.KeySellingPoints)
	assert.Equal(t, []string{"hiking pack", "daypack"}, res.CompetitorKeywords)
	assert.NotEmpty(t, res.BestPostingTimes)
}

func TestMarketResearch_LLMFailureUsesTemplate(t *testing.T) {
	in := Input{Title: "Backpack"}
	want := New(nil, nil).MarketResearch(context.Background(), in)

	got := New(&stubCompleter{err: errors.New("down")}, nil).MarketResearch(context.Background(), in)
	assert.Equal(t, want, got)

	got = New(&stubCompleter{reply: "no markers here"}, nil).MarketResearch(context.Background(), in)
	assert.Equal(t, want, got)
}

func TestGenerate_IncludesMarketResearch(t *testing.T) {
	res := New(nil, nil).Generate(context.Background(), Input{Title: "Yoga Mat", IncludeMarketResearch: true})
	if assert.NotNil(t, res.MarketResearch) {
		assert.Equal(t, "fitness", res.MarketResearch.Category)
	}
}

func TestPricePositioning(t *testing.T) {
	cases := map[string]string{
		"":           "unknown",
		"call us":    "unknown",
		"$19.99":     "budget",
		"€45":        "mid-range",
		"1,299.00":   "premium",
		"USD 100":    "premium",
		"1.299,00 €": "premium",
	}
	for price, want := range cases {
		assert.Equal(t, want, pricePositioning(price), price)
	}
}
