package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTaste      = errors.New("invalid taste vector")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrNoTasteProfile    = errors.New("taste profile missing")

	// ErrStaleProfile is returned when a profile write was computed from an
	// older history revision than the one already stored.
	ErrStaleProfile = errors.New("stale profile write")
)

// ValidateID rejects IDs that stores cannot key on: empty ones, and ones
// holding a NUL byte, which separates the parts of composite keys.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidInput, kind)
	}
	if strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %s id contains a NUL byte", ErrInvalidInput, kind)
	}
	return nil
}
