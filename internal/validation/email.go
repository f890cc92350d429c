package validation

import (
	"errors"
	"net/mail"
	"strings"
)

// MaxEmailLength is the RFC 5321 limit on a forward path
const MaxEmailLength = 254

// NormalizeEmail trims and lowercases a bare address and checks its format.
// Display-name forms such as "Ada <ada@example.com>" are rejected.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	if len(email) > MaxEmailLength {
		return "", errors.New("email is too long")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.New("email is not a valid address")
	}
	return email, nil
}
