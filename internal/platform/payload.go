package platform

import (
	"fmt"
	"strings"

	"clicksprout/models"
)

// endpoint describes how one platform's API is addressed
type endpoint struct {
	baseURL     string
	publishPath string
	authPath    string
	metricsPath string // formatted with the platform post id; empty when unsupported
	permalink   string // formatted with the platform post id
}

var endpoints = map[models.Platform]endpoint{
	models.PlatformTwitter: {
		baseURL:     "https://api.twitter.com/2",
		publishPath: "/tweets",
		authPath:    "/users/me",
		metricsPath: "/tweets/%s?tweet.fields=public_metrics",
		permalink:   "https://twitter.com/i/web/status/%s",
	},
	models.PlatformFacebook: {
		baseURL:     "https://graph.facebook.com/v19.0",
		publishPath: "/me/feed",
		authPath:    "/me",
		metricsPath: "/%s/insights",
		permalink:   "https://www.facebook.com/%s",
	},
	models.PlatformInstagram: {
		baseURL:     "https://graph.facebook.com/v19.0",
		publishPath: "/me/media",
		authPath:    "/me",
		metricsPath: "/%s/insights",
		permalink:   "https://www.instagram.com/p/%s",
	},
	models.PlatformLinkedIn: {
		baseURL:     "https://api.linkedin.com/rest",
		publishPath: "/posts",
		authPath:    "/me",
		metricsPath: "/socialActions/%s",
		permalink:   "https://www.linkedin.com/feed/update/%s",
	},
	models.PlatformPinterest: {
		baseURL:     "https://api.pinterest.com/v5",
		publishPath: "/pins",
		authPath:    "/user_account",
		metricsPath: "/pins/%s/analytics",
		permalink:   "https://www.pinterest.com/pin/%s",
	},
	models.PlatformReddit: {
		baseURL:     "https://oauth.reddit.com",
		publishPath: "/api/submit",
		authPath:    "/api/v1/me",
		metricsPath: "/api/info?id=%s",
		permalink:   "https://www.reddit.com/comments/%s",
	},
	models.PlatformTikTok: {
		baseURL:     "https://open.tiktokapis.com/v2",
		publishPath: "/post/publish/content/init/",
		authPath:    "/user/info/",
		metricsPath: "/video/query/?id=%s",
		permalink:   "https://www.tiktok.com/video/%s",
	},
	models.PlatformMedium: {
		baseURL:     "https://api.medium.com/v1",
		publishPath: "/me/posts",
		authPath:    "/me",
		permalink:   "https://medium.com/p/%s",
	},
}

// buildPayload shapes a post into the request body its platform expects
func buildPayload(p models.Platform, post *models.PostRecord) map[string]any {
	text := postText(p, post)
	image := ""
	if len(post.Images) > 0 {
		image = post.Images[0]
	}

	switch p {
	case models.PlatformTwitter:
		return map[string]any{"text": text}
	case models.PlatformFacebook:
		body := map[string]any{"message": text}
		if post.Link != "" {
			body["link"] = post.Link
		}
		return body
	case models.PlatformInstagram:
		return map[string]any{"caption": text, "image_url": image}
	case models.PlatformLinkedIn:
		return map[string]any{
			"commentary":     text,
			"visibility":     "PUBLIC",
			"lifecycleState": "PUBLISHED",
			"link":           post.Link,
		}
	case models.PlatformPinterest:
		return map[string]any{
			"title":        truncate(post.Title, 100),
			"description":  text,
			"link":         post.Link,
			"media_source": map[string]any{"source_type": "image_url", "url": image},
		}
	case models.PlatformReddit:
		body := map[string]any{"title": truncate(post.Title, 300), "kind": "self", "text": text}
		if post.Link != "" {
			body["kind"] = "link"
			body["url"] = post.Link
		}
		return body
	case models.PlatformTikTok:
		return map[string]any{
			"post_info":   map[string]any{"title": text, "privacy_level": "PUBLIC_TO_EVERYONE"},
			"source_info": map[string]any{"source": "PULL_FROM_URL", "photo_images": post.Images},
		}
	case models.PlatformMedium:
		tags := make([]string, 0, 5)
		for _, h := range post.Hashtags {
			if len(tags) == 5 {
				break
			}
			tags = append(tags, strings.TrimPrefix(h, "#"))
		}
		return map[string]any{
			"title":         post.Title,
			"contentFormat": "markdown",
			"content":       fmt.Sprintf("# %s\n\n%s", post.Title, text),
			"canonicalUrl":  post.Link,
			"tags":          tags,
			"publishStatus": "public",
		}
	}
	return map[string]any{"text": text}
}

// postText joins content, link and hashtags and fits the platform limit.
// Hashtags already present in the content are not repeated.
func postText(p models.Platform, post *models.PostRecord) string {
	parts := []string{strings.TrimSpace(post.Content)}
	if post.Link != "" && !strings.Contains(post.Content, post.Link) && p != models.PlatformFacebook && p != models.PlatformReddit {
		parts = append(parts, post.Link)
	}
	var missing []string
	for _, h := range post.Hashtags {
		if !strings.Contains(post.Content, h) {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		parts = append(parts, strings.Join(missing, " "))
	}
	return truncate(strings.Join(parts, "\n\n"), p.MaxTextLength())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
