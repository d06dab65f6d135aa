package pkg

import "github.com/google/uuid"

// GenerateMatchID returns an opaque unique identifier for a new match.
func GenerateMatchID() string {
	return uuid.NewString()
}
