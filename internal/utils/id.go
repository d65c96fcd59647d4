package utils

import "github.com/google/uuid"

// GenerateID returns a new random identifier for stage runs.
func GenerateID() string {
	return uuid.NewString()
}
