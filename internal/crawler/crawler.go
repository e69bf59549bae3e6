// Package crawler reads product pages and turns them into content records.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clicksprout/internal/config"
	"clicksprout/internal/logger"
	"clicksprout/internal/telemetry"
	"clicksprout/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/chromedp/chromedp"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ErrInvalidInput is returned for anything that is not an absolute http(s) URL
var ErrInvalidInput = errors.New("invalid input")

// FetchError describes a failed page fetch. Scrape never returns it; it is
// logged and replaced by the placeholder record.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures a Scraper
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	RenderJS      bool
	RenderTimeout time.Duration
}

// OptionsFromConfig reads scraper options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:       cfg.ScrapeTimeout,
		UserAgent:     cfg.ScrapeUserAgent,
		RenderJS:      cfg.ScrapeRenderJS,
		RenderTimeout: cfg.RenderTimeout,
	}
}

// Scraper fetches product pages and extracts content records
type Scraper struct {
	opts      Options
	transport http.RoundTripper
	metrics   *telemetry.Metrics
}

func NewScraper(opts Options, metrics *telemetry.Metrics) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 45 * time.Second
	}
	return &Scraper{
		opts:      opts,
		transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		metrics:   metrics,
	}
}

// Scrape returns the best record it can for rawURL. The only error is
// ErrInvalidInput; fetch and parse failures yield the placeholder record.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*models.ContentRecord, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rec, err := s.scrape(ctx, target)
	if err != nil {
		logger.Warn("Scrape failed, using placeholder content", "url", target.String(), "error", err)
		rec = models.NewPlaceholderContent(rawURL, scrapeTime())
	}
	s.metrics.RecordScrape(time.Since(start).Seconds(), rec.Fallback)
	return rec, nil
}

func (s *Scraper) scrape(ctx context.Context, target *url.URL) (*models.ContentRecord, error) {
	body, pageURL, err := s.fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	product := extractProduct(doc, pageURL)
	rec := &models.ContentRecord{
		URL:         target.String(),
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
		Images:      product.Images,
		Videos:      product.Videos,
		Hashtags:    []string{},
		ScrapedAt:   scrapeTime(),
	}
	if rec.Title == "" && rec.Description == "" {
		rec.Fallback = true
	}
	if rec.Title == "" {
		rec.Title = models.PlaceholderTitle
	}
	if rec.Description == "" {
		rec.Description = models.PlaceholderDescription
	}

	logger.Debug("Scraped product page",
		"url", rec.URL,
		"title", rec.Title,
		"images", len(rec.Images),
		"videos", len(rec.Videos),
	)
	return rec, nil
}

// fetch returns the decoded HTML body and the final page URL
func (s *Scraper) fetch(ctx context.Context, target *url.URL) ([]byte, *url.URL, error) {
	if s.opts.RenderJS {
		html, err := renderPageHTML(ctx, target.String(), s.opts.RenderTimeout, s.opts.UserAgent)
		if err == nil && html != "" {
			return []byte(html), target, nil
		}
		logger.Warn("JS render failed, falling back to plain fetch", "url", target.String(), "error", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	c := colly.NewCollector(colly.MaxDepth(1))
	c.WithTransport(ctxTransport{base: s.transport, ctx: fetchCtx})
	c.SetRequestTimeout(s.opts.Timeout)
	c.UserAgent = s.opts.UserAgent

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, br")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
		r.Headers.Set("Sec-Fetch-Dest", "document")
		r.Headers.Set("Sec-Fetch-Mode", "navigate")
		r.Headers.Set("Sec-Fetch-Site", "none")
		r.Headers.Set("Referer", fmt.Sprintf("%s://%s/", r.URL.Scheme, r.URL.Host))
	})

	var (
		body       []byte
		pageURL    *url.URL
		statusCode int
		fetchErr   error
	)

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			fetchErr = fmt.Errorf("unexpected content type %q", contentType)
			return
		}
		body = decodeBody(r.Body, contentType, r.Headers.Get("Content-Encoding"))
		pageURL = r.Request.URL
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode = r.StatusCode
		fetchErr = err
	})

	visitErr := c.Visit(target.String())
	if fetchErr == nil {
		fetchErr = visitErr
	}
	if fetchErr == nil && len(body) == 0 {
		fetchErr = errors.New("empty response body")
	}
	if fetchErr != nil {
		return nil, nil, &FetchError{URL: target.String(), StatusCode: statusCode, Err: fetchErr}
	}
	return body, pageURL, nil
}

// decodeBody undoes brotli encoding (colly handles gzip) and converts the body
// to UTF-8. A charset declared in the header has already been applied by
// colly, so only undeclared encodings are sniffed here.
func decodeBody(raw []byte, contentType, contentEncoding string) []byte {
	body := raw
	if strings.Contains(contentEncoding, "br") {
		if decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body))); err == nil {
			body = decompressed
		}
	}
	if len(body) == 0 || strings.Contains(strings.ToLower(contentType), "charset=") {
		return body
	}
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil || len(decoded) == 0 {
		return body
	}
	return decoded
}

// ctxTransport binds every request of one fetch to the caller's context
type ctxTransport struct {
	base http.RoundTripper
	ctx  context.Context
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func validateURL(rawURL string) (*url.URL, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidInput, raw)
	}
	u.Fragment = ""
	return u, nil
}

func scrapeTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// renderPageHTML loads the page in headless Chrome and returns the rendered HTML
func renderPageHTML(ctx context.Context, urlStr string, timeout time.Duration, userAgent string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(urlStr)); err != nil {
		return "", err
	}

	// soft-fail: product pages often never settle completely
	readyCtx, cancelReady := context.WithTimeout(browserCtx, 10*time.Second)
	_ = chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	cancelReady()

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}
