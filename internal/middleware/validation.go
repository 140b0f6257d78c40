package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxScenarioIDLength = 64

// ValidateSessionID validates a session ID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid session ID format")
	}
	return nil
}

// ValidateScenarioID validates a scenario ID. Unknown but well-formed IDs
// pass; whether they exist is for the catalog to decide.
func ValidateScenarioID(id string) error {
	if len(id) == 0 {
		return errors.New("scenario ID cannot be empty")
	}
	if len(id) > maxScenarioIDLength {
		return errors.New("scenario ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("scenario ID must be valid UTF-8")
	}
	return nil
}

// ValidateKey validates a keyboard key name.
func ValidateKey(key string) error {
	if len(key) == 0 {
		return errors.New("key cannot be empty")
	}
	if utf8.RuneCountInString(key) > 16 {
		return errors.New("key exceeds maximum length")
	}
	return nil
}
