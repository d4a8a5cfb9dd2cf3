// Package api provides HTTP handlers for the REST API endpoints.
package api

import (
	"github.com/stwalsh4118/evercast/internal/models"
	"github.com/stwalsh4118/evercast/internal/playback"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateSessionRequest is the body of POST /sessions
type CreateSessionRequest struct {
	// DeepLink is an item id or a shared URL naming the item to open with
	DeepLink string `json:"deep_link"`
}

// PlayRequest is the body of POST /sessions/:id/play and /deeplink
type PlayRequest struct {
	ItemID string `json:"item_id"`
	URL    string `json:"url"`
}

// ContentEndedRequest is the optional body of POST /sessions/:id/content-ended
type ContentEndedRequest struct {
	ItemID string `json:"item_id"`
}

// AdvanceRequest is the body of POST /sessions/:id/advance
type AdvanceRequest struct {
	DelayMS int64 `json:"delay_ms" binding:"gte=0"`
}

// PlaybackErrorRequest is the body of POST /sessions/:id/errors
type PlaybackErrorRequest struct {
	Source    string `json:"source" binding:"required"`
	Kind      string `json:"kind"`
	ItemID    string `json:"item_id"`
	BumperURL string `json:"bumper_url"`
	Message   string `json:"message"`
}

// VisibilityRequest is the body of POST /sessions/:id/visibility
type VisibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// TransitionResponse reports the outcome of a state machine operation
type TransitionResponse struct {
	Changed   bool              `json:"changed"`
	NoContent bool              `json:"no_content,omitempty"`
	State     playback.Snapshot `json:"state"`
}

// DeepLinkResponse reports an accepted deep link
type DeepLinkResponse struct {
	Item    models.ContentItem `json:"item"`
	DelayMS int64              `json:"delay_ms"`
}

// VisibilityResponse reports the wake lock after a visibility change
type VisibilityResponse struct {
	Visible  bool `json:"visible"`
	WakeLock bool `json:"wake_lock"`
}

// ContentListResponse is the body of GET /content
type ContentListResponse struct {
	Items []*models.ContentRecord `json:"items"`
	Total int                     `json:"total"`
}
