package id

import "github.com/google/uuid"

// New returns a random identifier for a stored image.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s is an identifier in the canonical form New emits.
func Valid(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
