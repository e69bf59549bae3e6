package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"clicksprout/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func matchesTitlePattern(title, product string) bool {
	for _, p := range TitlePatterns {
		if title == fmt.Sprintf(p, product) {
			return true
		}
	}
	return false
}

func TestGenerate_FallbackIsDeterministic(t *testing.T) {
	g := New(nil, nil)
	in := Input{Title: "Wireless Earbuds Pro", Description: "Noise cancelling earbuds.", Price: "$59", URL: "https://example.com/earbuds", Type: TypeComplete}

	first := g.Generate(context.Background(), in)
	second := g.Generate(context.Background(), in)

	assert.Equal(t, first, second)
	assert.Equal(t, SourceTemplate, first.Source)
	assert.True(t, matchesTitlePattern(first.Title, "Wireless Earbuds Pro"), first.Title)
	assert.Contains(t, first.Hashtags, "#tech")
	assert.Contains(t, first.GeneratedContent, "https://example.com/earbuds")
	assert.Contains(t, first.GeneratedContent, "Price: $59")
	assert.Nil(t, first.MarketResearch)
}

func TestGenerate_PlaceholderContent(t *testing.T) {
	rec := models.NewPlaceholderContent("https://example.com/widget", time.Now())
	res := New(nil, nil).Generate(context.Background(), InputFromContent(rec, TypeComplete, models.PlatformPinterest))

	assert.True(t, matchesTitlePattern(res.Title, "Product"), res.Title)
	assert.Contains(t, res.Title, "Product")
	assert.NotEmpty(t, res.Hashtags)
	assert.NotEmpty(t, res.Description)
	assert.LessOrEqual(t, len([]rune(res.GeneratedContent)), models.PlatformPinterest.MaxTextLength())
}

func TestGenerate_CompleteAlwaysHasHashtags(t *testing.T) {
	g := New(nil, nil)
	for _, title := range []string{"", "Mystery Box", "Yoga Mat", "Dog Leash", "Cold Brew Coffee", "Hiking Backpack"} {
		for _, p := range append([]models.Platform{""}, models.AllPlatforms...) {
			res := g.Generate(context.Background(), Input{Title: title, Platform: p, Type: TypeComplete})
			assert.NotEmpty(t, res.Hashtags, "%q on %q", title, p)
			assert.NotEmpty(t, res.Title)
			assert.LessOrEqual(t, len([]rune(res.GeneratedContent)), platformLimit(p))
		}
	}
}

func TestGenerate_TwitterLengthLimit(t *testing.T) {
	long := strings.Repeat("This lamp is bright and efficient. ", 30)
	res := New(nil, nil).Generate(context.Background(), Input{
		Title:       "Desk Lamp",
		Description: long,
		URL:         "https://example.com/lamp",
		Platform:    models.PlatformTwitter,
	})
	assert.LessOrEqual(t, len([]rune(res.GeneratedContent)), 280)
	assert.Contains(t, res.GeneratedContent, "https://example.com/lamp")
	assert.Len(t, res.Hashtags, 3)
}

func TestGenerate_UsesLLMWhenParseable(t *testing.T) {
	llm := &stubCompleter{reply: "**TITLE:** Glow Up Your Desk\nDESCRIPTION: A lamp that adapts.\nIt charges your phone too.\nHASHTAGS: #DeskSetup, lamp #desksetup\nCONTENT: Bright ideas start here.\n"}
	res := New(llm, nil).Generate(context.Background(), Input{Title: "Desk Lamp", Type: TypeComplete})

	assert.Equal(t, SourceLLM, res.Source)
	assert.Equal(t, "Glow Up Your Desk", res.Title)
	assert.Equal(t, "A lamp that adapts.\nIt charges your phone too.", res.Description)
	assert.Equal(t, []string{"#DeskSetup", "#lamp"}, res.Hashtags)
	assert.Equal(t, "Bright ideas start here.", res.GeneratedContent)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Desk Lamp")
}

func TestGenerate_HashtagsTypeKeepsTemplateFields(t *testing.T) {
	llm := &stubCompleter{reply: "HASHTAGS: #one #two"}
	res := New(llm, nil).Generate(context.Background(), Input{Title: "Desk Lamp", Type: TypeHashtags})

	assert.Equal(t, SourceLLM, res.Source)
	assert.Equal(t, []string{"#one", "#two"}, res.Hashtags)
	assert.True(t, matchesTitlePattern(res.Title, "Desk Lamp"))
}

func TestGenerate_FallsBackOnLLMFailure(t *testing.T) {
	in := Input{Title: "Desk Lamp", Description: "Warm light.", Type: TypeComplete}
	want := New(nil, nil).Generate(context.Background(), in)

	for name, llm := range map[string]*stubCompleter{
		"error":       {err: errors.New("boom")},
		"unparseable": {reply: "Sure! Here is a great post about your lamp."},
		"partial":     {reply: "TITLE: Lamp\nDESCRIPTION: Nice"},
		"no hashtags": {reply: "TITLE: Great\nDESCRIPTION: Nice\nHASHTAGS: ---\nCONTENT: Buy it"},
	} {
		t.Run(name, func(t *testing.T) {
			got := New(llm, nil).Generate(context.Background(), in)
			assert.Equal(t, want, got)
		})
	}
}

func TestGenerate_EmptyHashtagReplyKeepsTemplateTags(t *testing.T) {
	for _, kind := range []Type{TypeComplete, TypeHashtags} {
		t.Run(string(kind), func(t *testing.T) {
			llm := &stubCompleter{reply: "TITLE: Great\nDESCRIPTION: Nice\nHASHTAGS: ---\nCONTENT: Buy it"}
			res := New(llm, nil).Generate(context.Background(), Input{Title: "Desk Lamp", Type: kind})

			assert.Equal(t, SourceTemplate, res.Source)
			assert.NotEmpty(t, res.Hashtags)
		})
	}

	// enhance does not ask for hashtags, so an empty section is not a failure
	llm := &stubCompleter{reply: "TITLE: Great\nDESCRIPTION: Nice\nHASHTAGS: ---"}
	res := New(llm, nil).Generate(context.Background(), Input{Title: "Desk Lamp", Type: TypeEnhance})
	assert.Equal(t, SourceLLM, res.Source)
	assert.Equal(t, "Great", res.Title)
	assert.NotEmpty(t, res.Hashtags)
}

func TestParseType(t *testing.T) {
	kind, err := ParseType("")
	require.NoError(t, err)
	assert.Equal(t, TypeComplete, kind)

	kind, err = ParseType(" Enhance ")
	require.NoError(t, err)
	assert.Equal(t, TypeEnhance, kind)

	_, err = ParseType("poem")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestParseSections(t *testing.T) {
	sections, err := parseSections("intro text\ntitle: A\n\nDescription: B\nmore B\n## Hashtags: #x", []string{markerTitle, markerHashtags})
	require.NoError(t, err)
	assert.Equal(t, "A", sections[markerTitle])
	assert.Equal(t, "B\nmore B", sections[markerDescription])
	assert.Equal(t, "#x", sections[markerHashtags])

	_, err = parseSections("TITLE: only", []string{markerTitle, markerContent})
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParseHashtags(t *testing.T) {
	assert.Equal(t, []string{"#tech", "#smart_home", "#deal2024"}, parseHashtags("tech, #smart_home; ##deal2024 #Tech !!"))
}
