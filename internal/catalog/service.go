// Package catalog loads the content catalogue from the store and keeps it in
// sync with an import file.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/evercast/internal/logger"
	"github.com/stwalsh4118/evercast/internal/models"
)

// Store is the persistence the catalogue needs
type Store interface {
	List(ctx context.Context) ([]*models.ContentRecord, error)
	ReplaceAll(ctx context.Context, records []*models.ContentRecord) error
}

// Service converts stored records into playable content items
type Service struct {
	store               Store
	defaultSlideSeconds int
	log                 zerolog.Logger
}

// NewService creates a catalogue service. Slides stored without a duration get defaultSlide.
func NewService(store Store, defaultSlide time.Duration) *Service {
	if defaultSlide <= 0 {
		defaultSlide = models.DefaultSlideDuration
	}
	return &Service{
		store:               store,
		defaultSlideSeconds: int(defaultSlide / time.Second),
		log:                 logger.Component("catalog"),
	}
}

// Load returns every valid stored item. Records that cannot be converted are skipped.
func (s *Service) Load(ctx context.Context) ([]models.ContentItem, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}

	items := make([]models.ContentItem, 0, len(records))
	for _, rec := range records {
		item, err := rec.ToItem(s.defaultSlideSeconds)
		if err != nil {
			s.log.Warn().Err(err).Str("item_id", rec.ID).Msg("Skipping unusable catalogue record")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// ImportFile replaces the stored catalogue with the contents of the JSON file at path
func (s *Service) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open catalogue file: %w", err)
	}
	defer f.Close()

	n, err := s.Import(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	return n, nil
}

// Import replaces the stored catalogue with the JSON document read from r
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	records, err := Decode(r)
	if err != nil {
		return 0, err
	}
	if err := s.store.ReplaceAll(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to store catalogue: %w", err)
	}

	s.log.Info().Int("items", len(records)).Msg("Catalogue imported")
	return len(records), nil
}

// Entry is one item of an import file
type Entry struct {
	ID              string  `json:"id"`
	Kind            string  `json:"kind"`
	Title           string  `json:"title"`
	Name            string  `json:"name"`
	SourceURL       string  `json:"source_url"`
	AudioURL        *string `json:"audio_url"`
	DeckURL         *string `json:"deck_url"`
	Thumbnail       string  `json:"thumbnail"`
	Category        string  `json:"category"`
	DurationSeconds *int    `json:"duration_seconds"`
}

type document struct {
	Items []Entry `json:"items"`
}

// Decode parses an import document. It accepts either a bare array of entries
// or an object with an "items" array.
func Decode(r io.Reader) ([]*models.ContentRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}

	var entries []Entry
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(raw, &entries)
	} else {
		var doc document
		err = json.Unmarshal(raw, &doc)
		entries = doc.Items
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	records := make([]*models.ContentRecord, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		rec, err := e.record()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidDocument, i, err)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: entry %d: duplicate id %q", ErrInvalidDocument, i, rec.ID)
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
	return records, nil
}

// record validates e and converts it. Entries without an id get a stable one
// derived from their kind, title and source, so re-imports keep deep links valid.
func (e Entry) record() (*models.ContentRecord, error) {
	kind := models.ContentKind(strings.ToLower(strings.TrimSpace(e.Kind)))
	if kind == "" {
		kind = models.KindStream
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown kind %q", e.Kind)
	}

	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = strings.TrimSpace(e.Name)
	}
	category := strings.TrimSpace(e.Category)
	if category == "" {
		return nil, fmt.Errorf("category is required")
	}

	rec := &models.ContentRecord{
		ID:              strings.TrimSpace(e.ID),
		Kind:            string(kind),
		Title:           title,
		AudioURL:        nonEmpty(e.AudioURL),
		DeckURL:         nonEmpty(e.DeckURL),
		Thumbnail:       e.Thumbnail,
		Category:        category,
		DurationSeconds: e.DurationSeconds,
	}

	switch kind {
	case models.KindStream:
		src := strings.TrimSpace(e.SourceURL)
		if src == "" {
			return nil, fmt.Errorf("stream %q has no source_url", title)
		}
		rec.SourceURL = &src
		rec.DurationSeconds = nil
	case models.KindSlide:
		if e.DurationSeconds != nil && *e.DurationSeconds <= 0 {
			return nil, fmt.Errorf("slide %q has a non-positive duration", title)
		}
	}

	if rec.ID == "" {
		key := strings.Join([]string{rec.Kind, rec.Title, e.SourceURL, deref(e.AudioURL), deref(e.DeckURL)}, "\x00")
		rec.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
	}
	return rec, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
