package models

import (
	"fmt"
	"time"
)

// ContentRecord is the stored form of a content item.
// Both variants share one table, discriminated by Kind.
type ContentRecord struct {
	ID              string    `json:"id" gorm:"type:text;primaryKey;column:id"`
	Position        int       `json:"position" gorm:"type:integer;not null;default:0;column:position"`
	Kind            string    `json:"kind" gorm:"type:text;not null;column:kind" validate:"oneof=stream slide"`
	Title           string    `json:"title" gorm:"type:text;not null;column:title" validate:"required"`
	SourceURL       *string   `json:"source_url,omitempty" gorm:"type:text;column:source_url"`
	AudioURL        *string   `json:"audio_url,omitempty" gorm:"type:text;column:audio_url"`
	DeckURL         *string   `json:"deck_url,omitempty" gorm:"type:text;column:deck_url"`
	Thumbnail       string    `json:"thumbnail" gorm:"type:text;not null;default:'';column:thumbnail"`
	Category        string    `json:"category" gorm:"type:text;not null;column:category" validate:"required"`
	DurationSeconds *int      `json:"duration_seconds,omitempty" gorm:"type:integer;column:duration_seconds"`
	CreatedAt       time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// TableName pins the table created by the migrations
func (ContentRecord) TableName() string {
	return "content_items"
}

// ToItem converts the record into its ContentItem variant.
// defaultSlideSeconds fills slides stored without a duration.
func (r *ContentRecord) ToItem(defaultSlideSeconds int) (ContentItem, error) {
	switch ContentKind(r.Kind) {
	case KindStream:
		if r.SourceURL == nil || *r.SourceURL == "" {
			return nil, fmt.Errorf("stream %s has no source url", r.ID)
		}
		return &StreamItem{
			ID:        r.ID,
			Name:      r.Title,
			SourceURL: *r.SourceURL,
			Thumbnail: r.Thumbnail,
			Category:  r.Category,
			CreatedAt: r.CreatedAt,
		}, nil
	case KindSlide:
		duration := defaultSlideSeconds
		if r.DurationSeconds != nil && *r.DurationSeconds > 0 {
			duration = *r.DurationSeconds
		}
		return &SlideItem{
			ID:              r.ID,
			Title:           r.Title,
			AudioURL:        r.AudioURL,
			DeckURL:         r.DeckURL,
			Category:        r.Category,
			DurationSeconds: duration,
			Thumbnail:       r.Thumbnail,
		}, nil
	default:
		return nil, fmt.Errorf("content %s has unknown kind %q", r.ID, r.Kind)
	}
}
