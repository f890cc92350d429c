package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength = 100
	MaxBioLength  = 500
)

// ValidateName validates a display name
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("name is required")
	}

	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return errors.New("name is too long (max 100 characters)")
	}

	return nil
}

func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return errors.New("bio is too long (max 500 characters)")
	}
	return nil
}
