package playback

import (
	"github.com/stwalsh4118/evercast/internal/models"
)

// Phase is the transition state derived from the playback state
type Phase string

const (
	// PhaseEmpty means nothing has been selected yet
	PhaseEmpty Phase = "empty"
	// PhaseOverlayShowing means a bumper occludes the content
	PhaseOverlayShowing Phase = "overlay_showing"
	// PhaseContentActive means the overlay was dismissed for the current item
	PhaseContentActive Phase = "content_active"
)

// state is the authoritative playback state. Only the engine touches it, under its lock.
type state struct {
	current        models.ContentItem
	next           models.ContentItem
	bumperURL      string
	bumperQueue    []string
	overlayVisible bool
	playIntent     bool
	contentActive  bool
}

func (s *state) phase() Phase {
	switch {
	case s.current == nil:
		return PhaseEmpty
	case s.overlayVisible:
		return PhaseOverlayShowing
	default:
		return PhaseContentActive
	}
}

// Snapshot is a read-only copy of the playback state handed to renderers and listeners
type Snapshot struct {
	Revision       uint64             `json:"revision"`
	Phase          Phase              `json:"phase"`
	Current        models.ContentItem `json:"current,omitempty"`
	Next           models.ContentItem `json:"next,omitempty"`
	BumperURL      string             `json:"bumper_url,omitempty"`
	BumperQueue    []string           `json:"bumper_queue"`
	OverlayVisible bool               `json:"overlay_visible"`
	PlayIntent     bool               `json:"play_intent"`
	ContentActive  bool               `json:"content_active"`
	AdvancePending bool               `json:"advance_pending"`
	FallbackArmed  bool               `json:"fallback_armed"`
}

// CurrentID returns the identifier of the current item, or "" before the first selection
func (s Snapshot) CurrentID() string {
	if s.Current == nil {
		return ""
	}
	return s.Current.ItemID()
}

// NextID returns the identifier of the prepared item, or ""
func (s Snapshot) NextID() string {
	if s.Next == nil {
		return ""
	}
	return s.Next.ItemID()
}
