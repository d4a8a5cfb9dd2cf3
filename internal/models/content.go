package models

import (
	"encoding/json"
	"time"
)

// ContentKind distinguishes the two playable content variants
type ContentKind string

// Content kinds
const (
	KindStream ContentKind = "stream"
	KindSlide  ContentKind = "slide"
)

// DefaultSlideDuration is how long a slide is shown when it carries no duration of its own
const DefaultSlideDuration = 45 * time.Second

// IsValid reports whether k is a known content kind
func (k ContentKind) IsValid() bool {
	return k == KindStream || k == KindSlide
}

// ContentItem is a selectable entry in the content pool.
// It is implemented by *StreamItem and *SlideItem.
type ContentItem interface {
	ItemID() string
	ItemCategory() string
	Kind() ContentKind
}

// StreamItem is a streamed video
type StreamItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceURL string    `json:"source_url"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemID returns the stream identifier
func (s *StreamItem) ItemID() string { return s.ID }

// ItemCategory returns the stream category tag
func (s *StreamItem) ItemCategory() string { return s.Category }

// Kind returns KindStream
func (s *StreamItem) Kind() ContentKind { return KindStream }

// MarshalJSON adds the kind discriminator to the encoded stream
func (s *StreamItem) MarshalJSON() ([]byte, error) {
	type plain StreamItem
	return json.Marshal(struct {
		Kind ContentKind `json:"kind"`
		*plain
	}{KindStream, (*plain)(s)})
}

// SlideItem is a timed image-slide article with optional narration
type SlideItem struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	AudioURL        *string `json:"audio_url,omitempty"`
	DeckURL         *string `json:"deck_url,omitempty"`
	Category        string  `json:"category"`
	DurationSeconds int     `json:"duration_seconds"`
	Thumbnail       string  `json:"thumbnail,omitempty"`
}

// ItemID returns the slide identifier
func (s *SlideItem) ItemID() string { return s.ID }

// ItemCategory returns the slide category tag
func (s *SlideItem) ItemCategory() string { return s.Category }

// Kind returns KindSlide
func (s *SlideItem) Kind() ContentKind { return KindSlide }

// Duration returns how long the slide stays on screen, using fallback when unset
func (s *SlideItem) Duration(fallback time.Duration) time.Duration {
	if s.DurationSeconds <= 0 {
		return fallback
	}
	return time.Duration(s.DurationSeconds) * time.Second
}

// MarshalJSON adds the kind discriminator to the encoded slide
func (s *SlideItem) MarshalJSON() ([]byte, error) {
	type plain SlideItem
	return json.Marshal(struct {
		Kind ContentKind `json:"kind"`
		*plain
	}{KindSlide, (*plain)(s)})
}

// IsStream reports whether item is a streamed video
func IsStream(item ContentItem) bool {
	return item != nil && item.Kind() == KindStream
}

// SameItem reports whether a and b refer to the same pool entry
func SameItem(a, b ContentItem) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ItemID() == b.ItemID()
}
