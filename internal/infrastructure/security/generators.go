// Package security provides identifier generation, access tokens and customer hash
// verification for the widget backend and controllers.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenerateULID generates a new ULID string for backend records.
func GenerateULID() string {
	return ulid.Make().String()
}

// NewSessionID generates an anonymous widget session id in UUID v4 format.
func NewSessionID() string {
	return uuid.NewString()
}

// IsSessionID reports whether s is a well-formed UUID v4.
func IsSessionID(s string) bool {
	id, err := uuid.Parse(s)
	return err == nil && id.Version() == 4 && len(s) == 36
}

// GenerateSecureKey creates a cryptographically secure random key and returns it as a hex string.
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
