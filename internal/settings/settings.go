// Package settings holds the operator preferences that shape generated and
// scheduled posts. The Service owns the only copy; Load and Save are pure.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clicksprout/internal/logger"
	"clicksprout/models"
)

var ErrInvalidSettings = errors.New("invalid settings")

// PostingWindow limits suggested posting hours, in the settings timezone
type PostingWindow struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Settings is the serialized operator configuration
type Settings struct {
	DefaultPlatforms  []models.Platform `json:"defaultPlatforms"`
	BrandVoice        string            `json:"brandVoice"`
	AutoHashtags      bool              `json:"autoHashtags"`
	DefaultHashtags   []string          `json:"defaultHashtags"`
	DefaultMaxRetries int               `json:"defaultMaxRetries"`
	Timezone          string            `json:"timezone"`
	PostingWindow     PostingWindow     `json:"postingWindow"`
	MarketResearch    bool              `json:"marketResearch"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func Default() Settings {
	return Settings{
		DefaultPlatforms:  []models.Platform{models.PlatformInstagram, models.PlatformFacebook, models.PlatformTwitter},
		BrandVoice:        "friendly",
		AutoHashtags:      true,
		DefaultHashtags:   []string{},
		DefaultMaxRetries: models.DefaultMaxRetries,
		Timezone:          "UTC",
		PostingWindow:     PostingWindow{StartHour: 9, EndHour: 21},
	}
}

func (s Settings) Validate() error {
	for _, p := range s.DefaultPlatforms {
		if !p.Valid() {
			return fmt.Errorf("%w: %q", models.ErrUnsupportedPlatform, p)
		}
	}
	if s.DefaultMaxRetries < 0 {
		return fmt.Errorf("%w: defaultMaxRetries must not be negative", ErrInvalidSettings)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidSettings, s.Timezone, err)
	}
	w := s.PostingWindow
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 1 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("%w: posting window must satisfy 0 <= start < end <= 24", ErrInvalidSettings)
	}
	return nil
}

// Load decodes settings, filling anything missing from Default
func Load(r io.Reader) (Settings, error) {
	s := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save encodes settings as indented JSON
func Save(w io.Writer, s Settings) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func (s *Settings) normalize() {
	if s.DefaultPlatforms == nil {
		s.DefaultPlatforms = []models.Platform{}
	}
	for i, p := range s.DefaultPlatforms {
		s.DefaultPlatforms[i] = models.Platform(strings.ToLower(strings.TrimSpace(string(p))))
	}
	if s.DefaultHashtags == nil {
		s.DefaultHashtags = []string{}
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
}

func (s Settings) clone() Settings {
	s.DefaultPlatforms = append([]models.Platform{}, s.DefaultPlatforms...)
	s.DefaultHashtags = append([]string{}, s.DefaultHashtags...)
	return s
}

// Patch changes only the fields that are set
type Patch struct {
	DefaultPlatforms  *[]models.Platform `json:"defaultPlatforms"`
	BrandVoice        *string            `json:"brandVoice"`
	AutoHashtags      *bool              `json:"autoHashtags"`
	DefaultHashtags   *[]string          `json:"defaultHashtags"`
	DefaultMaxRetries *int               `json:"defaultMaxRetries"`
	Timezone          *string            `json:"timezone"`
	PostingWindow     *PostingWindow     `json:"postingWindow"`
	MarketResearch    *bool              `json:"marketResearch"`
}

func (s Settings) apply(p Patch) Settings {
	if p.DefaultPlatforms != nil {
		s.DefaultPlatforms = append([]models.Platform{}, (*p.DefaultPlatforms)...)
	}
	if p.BrandVoice != nil {
		s.BrandVoice = *p.BrandVoice
	}
	if p.AutoHashtags != nil {
		s.AutoHashtags = *p.AutoHashtags
	}
	if p.DefaultHashtags != nil {
		s.DefaultHashtags = append([]string{}, (*p.DefaultHashtags)...)
	}
	if p.DefaultMaxRetries != nil {
		s.DefaultMaxRetries = *p.DefaultMaxRetries
	}
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
	if p.PostingWindow != nil {
		s.PostingWindow = *p.PostingWindow
	}
	if p.MarketResearch != nil {
		s.MarketResearch = *p.MarketResearch
	}
	s.normalize()
	return s
}

// Service guards the current settings and persists every change to one file
type Service struct {
	path string

	mu      sync.RWMutex
	current Settings
}

// NewService loads path, starting from defaults when the file does not exist yet
func NewService(path string) (*Service, error) {
	s := &Service{path: path, current: Default()}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("Settings file not found, using defaults", "path", path)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	defer f.Close()

	loaded, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings from %s: %w", path, err)
	}
	s.current = loaded
	return s, nil
}

// Get returns a copy of the current settings
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// Update validates the patched settings and writes them to disk before
// making them current
func (s *Service) Update(p Patch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.clone().apply(p)
	if err := next.Validate(); err != nil {
		return s.current.clone(), err
	}
	next.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if err := s.persist(next); err != nil {
		return s.current.clone(), err
	}
	s.current = next
	logger.Info("Settings updated", "path", s.path)
	return next.clone(), nil
}

// persist writes through a temp file so a crash never leaves half a file
func (s *Service) persist(next Settings) error {
	if s.path == "" {
		return nil
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Save(tmp, next); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
