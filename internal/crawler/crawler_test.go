package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clicksprout/models"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<!doctype html>
<html><head>
<title>Shop | Aurora Desk Lamp</title>
<meta property="og:title" content="Aurora Desk Lamp">
<meta name="description" content="  A dimmable   LED lamp with a wireless charging base. ">
<meta property="og:image" content="/media/lamp-front.jpg">
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"Organization","name":"Shop"},
  {"@type":"Product","name":"Aurora Desk Lamp","offers":{"@type":"Offer","price":49.99,"priceCurrency":"USD"},
   "image":["https://cdn.example.com/lamp-side.jpg",{"url":"/media/lamp-front.jpg"}]}
]}
</script>
</head><body>
<img src="/static/logo.png">
<img src="/static/cart-icon.png">
<div class="product-gallery">
  <img src="/media/lamp-front.jpg">
  <img data-src="/media/lamp-back.jpg">
  <img src="data:image/gif;base64,R0lGOD">
</div>
<video><source src="/media/lamp.mp4"></video>
<iframe src="https://www.youtube.com/embed/abc123"></iframe>
</body></html>`

func newTestScraper(timeout time.Duration) *Scraper {
	return NewScraper(Options{Timeout: timeout}, nil)
}

func TestScrape_ExtractsProductFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, productPage)
	}))
	defer srv.Close()

	rec, err := newTestScraper(5*time.Second).Scrape(context.Background(), srv.URL+"/p/lamp")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/p/lamp", rec.URL)
	assert.Equal(t, "Aurora Desk Lamp", rec.Title)
	assert.Equal(t, "A dimmable LED lamp with a wireless charging base.", rec.Description)
	assert.Equal(t, "$49.99", rec.Price)
	assert.False(t, rec.Fallback)
	assert.Equal(t, []string{
		"https://cdn.example.com/lamp-side.jpg",
		srv.URL + "/media/lamp-front.jpg",
		srv.URL + "/media/lamp-back.jpg",
	}, rec.Images)
	assert.Equal(t, []string{
		srv.URL + "/media/lamp.mp4",
		"https://www.youtube.com/embed/abc123",
	}, rec.Videos)
	assert.NotNil(t, rec.Hashtags)
}

func TestScrape_CapsMedia(t *testing.T) {
	var page strings.Builder
	page.WriteString("<html><body><h1>Bulk Pack</h1>")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&page, `<img src="/img/%d.jpg"><video src="/vid/%d.mp4"></video>`, i, i)
	}
	page.WriteString("</body></html>")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page.String())
	}))
	defer srv.Close()

	rec, err := newTestScraper(5*time.Second).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Bulk Pack", rec.Title)
	assert.Len(t, rec.Images, maxImages)
	assert.Len(t, rec.Videos, maxVideos)
	assert.Equal(t, srv.URL+"/img/0.jpg", rec.Images[0])
}

func TestScrape_PlaceholderOnFailure(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer notFound.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	for name, target := range map[string]string{
		"non-2xx":     notFound.URL + "/widget",
		"timeout":     slow.URL + "/widget",
		"unreachable": closedURL + "/widget",
	} {
		t.Run(name, func(t *testing.T) {
			rec, err := newTestScraper(200*time.Millisecond).Scrape(context.Background(), target)
			require.NoError(t, err)
			assert.Equal(t, target, rec.URL)
			assert.Equal(t, models.PlaceholderTitle, rec.Title)
			assert.Equal(t, models.PlaceholderDescription, rec.Description)
			assert.Empty(t, rec.Images)
			assert.NotNil(t, rec.Images)
			assert.Empty(t, rec.Videos)
			assert.True(t, rec.Fallback)
		})
	}
}

func TestScrape_EmptyPageKeepsPlaceholderText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><p></p></body></html>")
	}))
	defer srv.Close()

	rec, err := newTestScraper(5*time.Second).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, models.PlaceholderTitle, rec.Title)
	assert.Equal(t, models.PlaceholderDescription, rec.Description)
	assert.True(t, rec.Fallback)
}

func TestScrape_InvalidInput(t *testing.T) {
	s := newTestScraper(time.Second)
	for _, raw := range []string{"", "   ", "not a url", "/relative/path", "ftp://example.com/file", "https://"} {
		rec, err := s.Scrape(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidInput, raw)
		assert.Nil(t, rec)
	}
}

func TestDecodeBody_Brotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write([]byte("<html><title>Compressed</title></html>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	body := decodeBody(buf.Bytes(), "text/html", "br")
	assert.Equal(t, "<html><title>Compressed</title></html>", string(body))
}

func TestDecodeBody_SniffsMetaCharset(t *testing.T) {
	// "Café" in windows-1252
	raw := []byte("<html><head><meta charset=\"windows-1252\"></head><body>Caf\xe9</body></html>")
	body := decodeBody(raw, "text/html", "")
	assert.Contains(t, string(body), "Café")
}

func TestIsProductImage(t *testing.T) {
	assert.True(t, isProductImage("https://cdn.example.com/lamp.jpg"))
	assert.False(t, isProductImage("https://cdn.example.com/brand-logo.png"))
	assert.False(t, isProductImage("https://cdn.example.com/Favicon.ico"))
	assert.False(t, isProductImage("https://cdn.example.com/arrow.svg"))
}
