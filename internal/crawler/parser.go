package crawler

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxImages = 10
	maxVideos = 5
)

// productData is what one product page yields before defaults are applied
type productData struct {
	Title       string
	Description string
	Price       string
	Images      []string
	Videos      []string
}

// candidate is one selector in a field's chain. An empty attr means the
// element text; attrs are tried in order.
type candidate struct {
	selector string
	attrs    []string
}

var titleChain = []candidate{
	{selector: "meta[property='og:title']", attrs: []string{"content"}},
	{selector: "meta[name='twitter:title']", attrs: []string{"content"}},
	{selector: "#productTitle"},
	{selector: "h1[itemprop='name']"},
	{selector: "[itemprop='name']"},
	{selector: "h1.product-title"},
	{selector: ".product-title"},
	{selector: ".product-name"},
	{selector: "h1"},
	{selector: "title"},
}

var descriptionChain = []candidate{
	{selector: "meta[property='og:description']", attrs: []string{"content"}},
	{selector: "meta[name='description']", attrs: []string{"content"}},
	{selector: "meta[name='twitter:description']", attrs: []string{"content"}},
	{selector: "[itemprop='description']"},
	{selector: "#feature-bullets"},
	{selector: ".product-description"},
	{selector: "#productDescription"},
	{selector: ".description"},
}

var priceChain = []candidate{
	{selector: "meta[property='product:price:amount']", attrs: []string{"content"}},
	{selector: "meta[property='og:price:amount']", attrs: []string{"content"}},
	{selector: "[itemprop='price']", attrs: []string{"content", ""}},
	{selector: ".a-price .a-offscreen"},
	{selector: "#priceblock_ourprice"},
	{selector: ".product-price"},
	{selector: ".price"},
}

var imageChain = []candidate{
	{selector: "meta[property='og:image']", attrs: []string{"content"}},
	{selector: "meta[name='twitter:image']", attrs: []string{"content"}},
	{selector: "#landingImage", attrs: []string{"data-old-hires", "src"}},
	{selector: "img[itemprop='image']", attrs: []string{"src", "data-src"}},
	{selector: ".product-image img", attrs: []string{"src", "data-src"}},
	{selector: ".product-gallery img", attrs: []string{"src", "data-src"}},
	{selector: ".gallery img", attrs: []string{"src", "data-src"}},
	{selector: "main img", attrs: []string{"src", "data-src"}},
	{selector: "img", attrs: []string{"src", "data-src"}},
}

var videoChain = []candidate{
	{selector: "meta[property='og:video']", attrs: []string{"content"}},
	{selector: "meta[property='og:video:url']", attrs: []string{"content"}},
	{selector: "video source", attrs: []string{"src"}},
	{selector: "video", attrs: []string{"src"}},
	{selector: "iframe[src*='youtube.com']", attrs: []string{"src"}},
	{selector: "iframe[src*='vimeo.com']", attrs: []string{"src"}},
}

// decorative asset markers; matching images are never product media
var skipImageMarkers = []string{
	"icon", "logo", "sprite", "favicon", "pixel", "spinner", "placeholder", "badge", "blank.gif", ".svg",
}

// extractProduct reads product fields from a parsed page. JSON-LD Product data
// wins; otherwise the first non-empty match in each chain is used. Media
// candidates are gathered across the whole chain in order.
func extractProduct(doc *goquery.Document, pageURL *url.URL) productData {
	ld := extractJSONLD(doc)

	data := productData{
		Title:       firstNonEmpty(ld.Title, firstMatch(doc, titleChain)),
		Description: firstNonEmpty(ld.Description, firstMatch(doc, descriptionChain)),
		Price:       firstNonEmpty(ld.Price, firstMatch(doc, priceChain)),
	}

	images := append([]string{}, ld.Images...)
	images = append(images, allMatches(doc, imageChain)...)
	data.Images = collectMedia(pageURL, images, maxImages, isProductImage)

	videos := append([]string{}, ld.Videos...)
	videos = append(videos, allMatches(doc, videoChain)...)
	data.Videos = collectMedia(pageURL, videos, maxVideos, nil)

	return data
}

func firstMatch(doc *goquery.Document, chain []candidate) string {
	for _, c := range chain {
		var found string
		doc.Find(c.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = readCandidate(s, c.attrs)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func allMatches(doc *goquery.Document, chain []candidate) []string {
	var out []string
	for _, c := range chain {
		doc.Find(c.selector).Each(func(_ int, s *goquery.Selection) {
			if v := readCandidate(s, c.attrs); v != "" {
				out = append(out, v)
			}
		})
	}
	return out
}

func readCandidate(s *goquery.Selection, attrs []string) string {
	if len(attrs) == 0 {
		return collapseSpace(s.Text())
	}
	for _, attr := range attrs {
		if attr == "" {
			if v := collapseSpace(s.Text()); v != "" {
				return v
			}
			continue
		}
		if v, ok := s.Attr(attr); ok {
			if v = collapseSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// collectMedia resolves refs against the page, drops non-http and filtered
// entries, removes duplicates and caps the result
func collectMedia(base *url.URL, refs []string, limit int, keep func(string) bool) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, ref := range refs {
		if len(out) >= limit {
			break
		}
		abs := resolveURL(base, ref)
		if abs == "" || seen[abs] {
			continue
		}
		if keep != nil && !keep(abs) {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

func isProductImage(u string) bool {
	lower := strings.ToLower(u)
	for _, marker := range skipImageMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	parsed.Fragment = ""
	return parsed.String()
}

// jsonLDProduct holds the fields read from schema.org Product markup
type jsonLDProduct struct {
	Title       string
	Description string
	Price       string
	Images      []string
	Videos      []string
}

func extractJSONLD(doc *goquery.Document) jsonLDProduct {
	var product jsonLDProduct
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		node := findProductNode(raw)
		if node == nil {
			return true
		}
		product.Title = collapseSpace(stringValue(node["name"]))
		product.Description = collapseSpace(stringValue(node["description"]))
		product.Price = offerPrice(node["offers"])
		product.Images = urlValues(node["image"])
		product.Videos = urlValues(node["video"])
		return false
	})
	return product
}

func findProductNode(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if node := findProductNode(item); node != nil {
				return node
			}
		}
	case map[string]any:
		if isProductType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findProductNode(graph)
		}
	}
	return nil
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Product"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func offerPrice(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if p := offerPrice(item); p != "" {
				return p
			}
		}
	case map[string]any:
		amount := numberString(t["price"])
		if amount == "" {
			amount = numberString(t["lowPrice"])
		}
		if amount == "" {
			return ""
		}
		return formatPrice(amount, stringValue(t["priceCurrency"]))
	}
	return ""
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"INR": "₹",
	"JPY": "¥",
}

func formatPrice(amount, currency string) string {
	if symbol, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		return symbol + amount
	}
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}

func numberString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// urlValues reads a schema.org image/video value: a string, an object with a
// url-ish field, or a list of either
func urlValues(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, urlValues(item)...)
		}
		return out
	case map[string]any:
		for _, key := range []string{"contentUrl", "url", "embedUrl"} {
			if s := stringValue(t[key]); s != "" {
				return []string{s}
			}
		}
	}
	return nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
