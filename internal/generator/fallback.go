package generator

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"clicksprout/models"
)

// bucket is a keyword category driving template hashtags and copy
type bucket struct {
	name     string
	keywords []string
	hashtags []string
	tagline  string
	audience string
}

// buckets are matched in order; general is the catch-all
var buckets = []bucket{
	{
		name:     "tech",
		keywords: []string{"tech", "phone", "laptop", "headphone", "earbud", "speaker", "charger", "wireless", "bluetooth", "smart", "camera", "gaming", "usb", "keyboard", "mouse", "monitor", "tablet", "watch"},
		hashtags: []string{"#tech", "#gadgets", "#innovation", "#techdeals", "#smarttech", "#musthave"},
		tagline:  "Smart tech that keeps up with you.",
		audience: "Tech enthusiasts and early adopters aged 18-45",
	},
	{
		name:     "fashion",
		keywords: []string{"dress", "shirt", "jacket", "shoe", "sneaker", "fashion", "jeans", "bag", "handbag", "wallet", "hoodie", "apparel", "boots", "scarf"},
		hashtags: []string{"#fashion", "#style", "#ootd", "#outfitinspo", "#trending", "#shopping"},
		tagline:  "Style that turns heads.",
		audience: "Style-conscious shoppers aged 18-35",
	},
	{
		name:     "beauty",
		keywords: []string{"beauty", "skin", "skincare", "makeup", "serum", "cream", "lipstick", "hair", "perfume", "fragrance", "nail", "cosmetic"},
		hashtags: []string{"#beauty", "#skincare", "#selfcare", "#glowup", "#beautyfinds", "#makeup"},
		tagline:  "Your new self-care essential.",
		audience: "Beauty and self-care lovers aged 18-40",
	},
	{
		name:     "home",
		keywords: []string{"home", "kitchen", "lamp", "decor", "furniture", "chair", "table", "bedding", "pillow", "rug", "cookware", "vacuum", "storage", "candle"},
		hashtags: []string{"#homedecor", "#homeessentials", "#interiordesign", "#cozyhome", "#homefinds", "#homeimprovement"},
		tagline:  "Make your space feel like home.",
		audience: "Homeowners and renters refreshing their space, aged 25-55",
	},
	{
		name:     "fitness",
		keywords: []string{"fitness", "yoga", "gym", "workout", "dumbbell", "protein", "running", "exercise", "sport", "bike", "cycling"},
		hashtags: []string{"#fitness", "#workout", "#healthylifestyle", "#fitnessgear", "#gymlife", "#motivation"},
		tagline:  "Gear up for your best workout yet.",
		audience: "Active people and fitness beginners aged 18-45",
	},
	{
		name:     "food",
		keywords: []string{"coffee", "tea", "snack", "chocolate", "food", "organic", "recipe", "spice", "sauce", "gourmet"},
		hashtags: []string{"#foodie", "#yum", "#delicious", "#foodlover", "#tasty", "#treatyourself"},
		tagline:  "A treat worth sharing.",
		audience: "Food lovers and home cooks aged 21-55",
	},
	{
		name:     "outdoor",
		keywords: []string{"outdoor", "camping", "hiking", "tent", "backpack", "garden", "travel", "fishing", "grill"},
		hashtags: []string{"#outdoors", "#adventure", "#explore", "#camping", "#naturelovers", "#travelgear"},
		tagline:  "Built for your next adventure.",
		audience: "Outdoor and travel enthusiasts aged 20-50",
	},
	{
		name:     "pets",
		keywords: []string{"dog", "cat", "pet", "puppy", "kitten", "leash", "collar", "litter", "aquarium"},
		hashtags: []string{"#petlovers", "#dogsofinstagram", "#catsofinstagram", "#petessentials", "#furbaby", "#petcare"},
		tagline:  "Because your pet deserves the best.",
		audience: "Pet owners aged 20-55",
	},
}

var generalBucket = bucket{
	name:     "general",
	hashtags: []string{"#musthave", "#deals", "#shopping", "#trending", "#newarrivals", "#giftideas"},
	tagline:  "A find you will not want to miss.",
	audience: "Online shoppers looking for quality and value, aged 18-55",
}

// TitlePatterns are the fallback title templates. Each contains the product
// title exactly once.
var TitlePatterns = []string{
	"%s: Your New Favorite Find",
	"Discover the %s",
	"Why Everyone Is Talking About the %s",
	"%s - Don't Miss Out",
	"Meet the %s",
	"Upgrade Your Day with the %s",
}

// detectBucket matches the title first and the description second. A keyword
// matches any word it prefixes, so "lamps" hits "lamp".
func detectBucket(title, description string) bucket {
	for _, text := range []string{title, description} {
		words := tokenize(text)
		for _, b := range buckets {
			for _, kw := range b.keywords {
				for _, w := range words {
					if strings.HasPrefix(w, kw) {
						return b
					}
				}
			}
		}
	}
	return generalBucket
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// pickTitle chooses a pattern from the bucket and title so the same product
// always gets the same title
func pickTitle(b bucket, title string) string {
	h := fnv.New32a()
	h.Write([]byte(b.name + "|" + strings.ToLower(title)))
	pattern := TitlePatterns[h.Sum32()%uint32(len(TitlePatterns))]
	return fmt.Sprintf(pattern, title)
}

// fallback is the deterministic template result for in
func fallback(in Input) models.GenerateResponse {
	b := detectBucket(in.Title, in.Description)

	description := in.Description
	if description == "" {
		description = fmt.Sprintf("Check out the %s.", in.Title)
	}
	description = strings.TrimSpace(description + " " + b.tagline)

	title := pickTitle(b, in.Title)
	hashtags := limitHashtags(in.Platform, append([]string{}, b.hashtags...))

	return models.GenerateResponse{
		Title:            title,
		Description:      description,
		Hashtags:         hashtags,
		GeneratedContent: composePost(in.Platform, title, description, in.Price, in.URL, hashtags),
		Source:           SourceTemplate,
	}
}

// composePost assembles a post body and shortens the description until it
// fits the platform limit
func composePost(platform models.Platform, title, description, price, link string, hashtags []string) string {
	build := func(desc string) string {
		parts := []string{title}
		if desc != "" {
			parts = append(parts, desc)
		}
		if price != "" {
			parts = append(parts, "Price: "+price)
		}
		if link != "" {
			parts = append(parts, "Shop now: "+link)
		}
		if len(hashtags) > 0 {
			parts = append(parts, strings.Join(hashtags, " "))
		}
		return strings.Join(parts, "\n\n")
	}

	post := build(description)
	limit := platformLimit(platform)
	if runeLen(post) <= limit {
		return post
	}

	overflow := runeLen(post) - limit
	keep := runeLen(description) - overflow - 1
	if keep > 0 {
		post = build(truncateRunes(description, keep))
	} else {
		post = build("")
	}
	return fitToPlatform(platform, post)
}

// fitToPlatform hard-truncates text that is still over the platform limit
func fitToPlatform(platform models.Platform, text string) string {
	text = strings.TrimSpace(text)
	limit := platformLimit(platform)
	if runeLen(text) <= limit {
		return text
	}
	return truncateRunes(text, limit)
}

func platformLimit(platform models.Platform) int {
	if platform == "" {
		return models.PlatformFacebook.MaxTextLength()
	}
	return platform.MaxTextLength()
}

func limitHashtags(platform models.Platform, tags []string) []string {
	n := 6
	switch platform {
	case models.PlatformTwitter, models.PlatformLinkedIn:
		n = 3
	case models.PlatformInstagram:
		n = 10
	}
	if len(tags) > n {
		return tags[:n]
	}
	return tags
}

func runeLen(s string) int {
	return len([]rune(s))
}

// truncateRunes cuts s to at most n runes, ending in an ellipsis when cut
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
