package customer

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Profile is the server-side view of a customer
type Profile struct {
	CustomerID        string   `json:"customerId"`
	ExternalID        *string  `json:"externalId"`
	Email             *string  `json:"email"`
	Phone             *string  `json:"phone"`
	Name              string   `json:"name"`
	AvatarURL         string   `json:"avatarUrl"`
	IsEmailVerified   bool     `json:"isEmailVerified"`
	IsEmailPrimary    bool     `json:"isEmailPrimary"`
	IsVerified        bool     `json:"isVerified"`
	RequireIdentities []string `json:"requireIdentities"`
	Role              string   `json:"role"`
	CreatedAt         string   `json:"createdAt"`
	UpdatedAt         string   `json:"updatedAt"`
}

// InitResponse is the result of the init exchange
type InitResponse struct {
	JWT    string `json:"jwt"`
	Create bool   `json:"create"`
	Profile
}

// Authenticated is the identity held by the iframe for its lifetime. It is never persisted.
type Authenticated struct {
	WidgetID  string `json:"widgetId"`
	SessionID string `json:"sessionId,omitempty"`
	InitResponse
}

// WithProfile merges a refreshed profile into the authenticated customer, keeping the token.
func (a Authenticated) WithProfile(p Profile) Authenticated {
	out := a
	out.Profile = p
	return out
}

// profileWire mirrors Profile with presence tracking. Pointer fields tagged required must be
// present in the payload; nullable fields may be absent or null.
type profileWire struct {
	CustomerID        *string  `json:"customerId" validate:"required"`
	ExternalID        *string  `json:"externalId"`
	Email             *string  `json:"email"`
	Phone             *string  `json:"phone"`
	Name              *string  `json:"name" validate:"required"`
	AvatarURL         *string  `json:"avatarUrl" validate:"required"`
	IsEmailVerified   *bool    `json:"isEmailVerified"`
	IsEmailPrimary    *bool    `json:"isEmailPrimary"`
	IsVerified        *bool    `json:"isVerified"`
	RequireIdentities []string `json:"requireIdentities"`
	Role              *string  `json:"role" validate:"required"`
	CreatedAt         *string  `json:"createdAt" validate:"required"`
	UpdatedAt         *string  `json:"updatedAt" validate:"required"`
}

type authWire struct {
	JWT    *string `json:"jwt" validate:"required"`
	Create *bool   `json:"create" validate:"required"`
}

// DecodeInitResponse parses and validates an init exchange response body.
func DecodeInitResponse(body []byte) (InitResponse, error) {
	var auth authWire
	if err := json.Unmarshal(body, &auth); err != nil {
		return InitResponse{}, fmt.Errorf("decode init response: %w", err)
	}
	if err := validate.Struct(auth); err != nil {
		return InitResponse{}, err
	}
	profile, err := DecodeProfile(body)
	if err != nil {
		return InitResponse{}, err
	}
	return InitResponse{
		JWT:     *auth.JWT,
		Create:  *auth.Create,
		Profile: profile,
	}, nil
}

// DecodeProfile parses and validates a /me/ response body.
func DecodeProfile(body []byte) (Profile, error) {
	var wire profileWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := validate.Struct(wire); err != nil {
		return Profile{}, err
	}
	return wire.profile(), nil
}

func (w profileWire) profile() Profile {
	p := Profile{
		CustomerID:        *w.CustomerID,
		ExternalID:        w.ExternalID,
		Email:             w.Email,
		Phone:             w.Phone,
		Name:              *w.Name,
		AvatarURL:         *w.AvatarURL,
		RequireIdentities: w.RequireIdentities,
		Role:              *w.Role,
		CreatedAt:         *w.CreatedAt,
		UpdatedAt:         *w.UpdatedAt,
	}
	if w.IsEmailPrimary != nil {
		p.IsEmailPrimary = *w.IsEmailPrimary
	}
	switch {
	case w.IsEmailVerified != nil:
		p.IsEmailVerified = *w.IsEmailVerified
	case w.IsVerified != nil:
		p.IsEmailVerified = *w.IsVerified
	}
	if w.IsVerified != nil {
		p.IsVerified = *w.IsVerified
	} else {
		p.IsVerified = p.IsEmailVerified
	}
	if p.RequireIdentities == nil {
		p.RequireIdentities = []string{}
	}
	return p
}
