// Package id provides UUIDv7 identifiers for all documents.
// Identifiers are carried as canonical strings so the same value works as a
// PostgreSQL TEXT key, a MongoDB _id and a JSON field.
package id

import (
	"github.com/google/uuid"
)

// New generates a new UUIDv7 (time-ordered) identifier.
func New() string {
	v, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New().String()
	}
	return v.String()
}

// Valid reports whether s is a well-formed UUID.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}

// Normalize returns the canonical lower-case form of s.
func Normalize(s string) (string, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
