package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedPlatform is returned for any platform outside the supported set
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Platform identifies a social network a post can be published to
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformPinterest Platform = "pinterest"
	PlatformReddit    Platform = "reddit"
	PlatformTikTok    Platform = "tiktok"
	PlatformMedium    Platform = "medium"
)

// AllPlatforms lists every supported platform in display order
var AllPlatforms = []Platform{
	PlatformInstagram,
	PlatformFacebook,
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformPinterest,
	PlatformReddit,
	PlatformTikTok,
	PlatformMedium,
}

// ParsePlatform normalizes a platform name and rejects unknown ones
func ParsePlatform(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, name)
	}
	return p, nil
}

// Valid reports whether p is one of the supported platforms
func (p Platform) Valid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// MaxTextLength is the longest body a platform accepts
func (p Platform) MaxTextLength() int {
	switch p {
	case PlatformTwitter:
		return 280
	case PlatformPinterest:
		return 500
	case PlatformInstagram, PlatformTikTok:
		return 2200
	case PlatformLinkedIn:
		return 3000
	case PlatformFacebook:
		return 63206
	case PlatformReddit:
		return 40000
	default:
		return 100000
	}
}

// RequiresMedia reports whether a post needs at least one image or video
func (p Platform) RequiresMedia() bool {
	return p == PlatformInstagram || p == PlatformPinterest || p == PlatformTikTok
}
