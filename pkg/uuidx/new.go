// Package uuidx generates time-ordered identifiers.
package uuidx

import "github.com/google/uuid"

// New returns a fresh v7 UUID. v7 sorts by creation time, which keeps ids
// usable as log correlation keys. Panics only if the system entropy source
// is broken.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a fresh v7 UUID in its canonical string form.
func NewString() string {
	return New().String()
}
