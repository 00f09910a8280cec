// Package customer provides domain entities for the customer identity carried through the
// widget handshake: the integrator-supplied descriptor, its wire payload, the init exchange
// request and the server-issued authenticated customer.
package customer

import (
	"maps"
	"strings"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
)

// Customer is the identity descriptor supplied by the host integrator.
// Empty strings are treated as absent.
type Customer struct {
	ExternalID   string            `json:"externalId,omitempty"`
	Email        string            `json:"email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	CustomerHash string            `json:"customerHash,omitempty"`
	IsVerified   bool              `json:"isVerified"`
	FirstName    string            `json:"firstName,omitempty"`
	LastName     string            `json:"lastName,omitempty"`
	Name         string            `json:"name,omitempty"`
	Traits       map[string]string `json:"traits,omitempty"`
}

// HasIdentifier reports whether any strong identifier is present.
func (c Customer) HasIdentifier() bool {
	return c.ExternalID != "" || c.Email != "" || c.Phone != ""
}

// HasHash reports whether the integrator asserted the identity with a customer hash.
func (c Customer) HasHash() bool {
	return c.CustomerHash != ""
}

// Validate enforces that customerHash is present exactly when an identifier is present.
func (c Customer) Validate() error {
	switch {
	case c.HasIdentifier() && !c.HasHash():
		return widgeterr.Configuration("`customerHash` is required when `customerExternalId`, `customerEmail`, `customerPhone` are provided")
	case !c.HasIdentifier() && c.HasHash():
		return widgeterr.Configuration("`customerHash` is required when `customerExternalId`, `customerEmail`, `customerPhone` are not provided")
	}
	return nil
}

// HashSubject returns the string the customer hash is computed over. Every identifier
// is bound, so a hash issued for one set of identifiers cannot vouch for another;
// absent identifiers are empty fields.
func (c Customer) HashSubject() string {
	return c.ExternalID + "|" + c.Email + "|" + c.Phone
}

// MakeTraits returns the traits sent with the init exchange. Name parts from the
// descriptor take precedence; name is only kept when neither part is known.
func (c Customer) MakeTraits() map[string]string {
	traits := make(map[string]string, len(c.Traits)+2)
	maps.Copy(traits, c.Traits)

	first := firstNonEmpty(c.FirstName, traits["firstName"])
	last := firstNonEmpty(c.LastName, traits["lastName"])
	name := firstNonEmpty(c.Name, traits["name"])

	delete(traits, "firstName")
	delete(traits, "lastName")
	delete(traits, "name")

	if first != "" {
		traits["firstName"] = first
	}
	if last != "" {
		traits["lastName"] = last
	}
	if first == "" && last == "" && name != "" {
		traits["name"] = name
	}

	if len(traits) == 0 {
		return nil
	}
	return traits
}

// DisplayName composes a display name from traits, falling back to fallback.
func DisplayName(traits map[string]string, fallback string) string {
	first := strings.TrimSpace(traits["firstName"])
	last := strings.TrimSpace(traits["lastName"])
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case traits["name"] != "":
		return traits["name"]
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
