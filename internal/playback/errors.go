package playback

import (
	"errors"
	"fmt"
	"strings"
)

// Engine errors
var (
	// ErrNoContent indicates the pool has nothing left to select
	ErrNoContent = errors.New("no content available")

	// ErrEngineClosed indicates the session that owned the engine has ended
	ErrEngineClosed = errors.New("playback engine is closed")

	// ErrItemNotFound indicates a requested item is not in the pool
	ErrItemNotFound = errors.New("content item not found")

	// ErrNilItem indicates an override was requested without an item
	ErrNilItem = errors.New("content item is required")
)

// IsNoContent checks if the error reports an exhausted pool
func IsNoContent(err error) bool {
	return errors.Is(err, ErrNoContent)
}

// IsClosed checks if the error reports a closed engine
func IsClosed(err error) bool {
	return errors.Is(err, ErrEngineClosed)
}

// FailureSource identifies which player reported a failure
type FailureSource string

// Failure sources
const (
	SourceBumper  FailureSource = "bumper"
	SourceContent FailureSource = "content"
)

// IsValid reports whether s is a known failure source
func (s FailureSource) IsValid() bool {
	return s == SourceBumper || s == SourceContent
}

// FailureKind classifies a player failure
type FailureKind int

const (
	// FailureUnknown is any failure that could not be classified
	FailureUnknown FailureKind = iota
	// FailureAutoplayRejected indicates the platform blocked unattended playback
	FailureAutoplayRejected
	// FailureSourceUnavailable indicates the media URI could not be loaded
	FailureSourceUnavailable
	// FailureDecode indicates the media loaded but could not be decoded
	FailureDecode
)

// String returns the string representation of FailureKind
func (k FailureKind) String() string {
	switch k {
	case FailureAutoplayRejected:
		return "autoplay_rejected"
	case FailureSourceUnavailable:
		return "source_unavailable"
	case FailureDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// ParseFailureKind maps a reported kind name to a FailureKind
func ParseFailureKind(s string) FailureKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "autoplay_rejected", "notallowederror":
		return FailureAutoplayRejected
	case "source_unavailable", "notsupportederror", "network":
		return FailureSourceUnavailable
	case "decode":
		return FailureDecode
	default:
		return FailureUnknown
	}
}

// Severity returns how loudly a failure of this kind is logged
func (k FailureKind) Severity() string {
	switch k {
	case FailureAutoplayRejected:
		// expected on unattended displays until the user interacts once
		return "info"
	case FailureSourceUnavailable, FailureDecode:
		return "warning"
	default:
		return "error"
	}
}

// PlaybackFailure is a failure reported by the bumper or content player.
// Failures are always recovered inside the engine and never propagated.
type PlaybackFailure struct {
	Source FailureSource
	Kind   FailureKind
	// ItemID names the content item that failed. Empty means the current item.
	ItemID string
	// BumperURL names the bumper that failed. Empty means the current bumper.
	BumperURL string
	Cause     error
}

// Error implements the error interface
func (f *PlaybackFailure) Error() string {
	subject := f.ItemID
	if f.Source == SourceBumper {
		subject = f.BumperURL
	}
	msg := fmt.Sprintf("%s playback failed: %s", f.Source, f.Kind)
	if subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, subject)
	}
	if f.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Cause)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (f *PlaybackFailure) Unwrap() error {
	return f.Cause
}
