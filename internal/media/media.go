// Package media holds the vocabulary shared by every stage of the pipeline:
// media kinds, processing states and the error taxonomy callers match on.
package media

import (
	"errors"
	"fmt"
	"path"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// ParseKind accepts the wire names "image" and "video".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindImage, KindVideo:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown media type %q", ErrValidation, s)
}

type State string

const (
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

var transitions = map[State][]State{
	StateUploading:  {StateProcessing, StateReady, StateFailed},
	StateProcessing: {StateReady, StateFailed},
}

// CanTransition reports whether an item may move from one state to another.
// States only move forward; ready and failed are final.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	// ErrValidation marks input the caller must fix before retrying.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing event or media item.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a duplicate id or a write against a settled item.
	ErrConflict = errors.New("conflict")
)

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// OriginalKey is the object key of an uploaded original.
func OriginalKey(eventID, mediaID, ext string) string {
	return path.Join("events", eventID, mediaID+ext)
}

// PreviewKey is the object key of a transcoded video preview.
func PreviewKey(eventID, mediaID string) string {
	return path.Join("events", eventID, "preview_"+mediaID+".mp4")
}
