package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HashVerifier checks host-asserted customer hashes. Each widget gets its own HMAC key
// derived from the master secret, so integrators never see the master.
type HashVerifier struct {
	master []byte
}

func NewHashVerifier(masterSecret string) *HashVerifier {
	return &HashVerifier{master: []byte(masterSecret)}
}

// WidgetSecret derives the per-widget signing key handed to the integrator.
func (v *HashVerifier) WidgetSecret(widgetID string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, v.master, []byte(widgetID), []byte("customer-hash"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive widget secret: %w", err)
	}
	return key, nil
}

// Compute returns the hex HMAC-SHA256 of identifier under the widget's key.
func (v *HashVerifier) Compute(widgetID, identifier string) (string, error) {
	key, err := v.WidgetSecret(widgetID)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(identifier))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether hash matches identifier for widgetID, in constant time.
func (v *HashVerifier) Verify(widgetID, identifier, hash string) bool {
	if identifier == "" || hash == "" {
		return false
	}
	want, err := v.Compute(widgetID, identifier)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(hash))
}
