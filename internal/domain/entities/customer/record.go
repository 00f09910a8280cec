package customer

import "time"

const (
	RoleCustomer = "customer"
	RoleVisitor  = "visitor"

	IdentityEmail = "email"
)

// Record is a customer as stored by the backend.
type Record struct {
	ID              string
	WidgetID        string
	ExternalID      *string
	Email           *string
	Phone           *string
	SessionID       *string
	Name            string
	AvatarURL       string
	IsEmailVerified bool
	IsEmailPrimary  bool
	Role            string
	Traits          map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EmailIdentity is an email address a customer added from inside the widget.
type EmailIdentity struct {
	ID         string
	CustomerID string
	Email      string
	IsVerified bool
	CreatedAt  time.Time
}

// Profile renders the record the way the widget API returns it. Customers without an
// email are asked for one.
func (r *Record) Profile() Profile {
	require := []string{}
	if r.Email == nil {
		require = append(require, IdentityEmail)
	}
	return Profile{
		CustomerID:        r.ID,
		ExternalID:        r.ExternalID,
		Email:             r.Email,
		Phone:             r.Phone,
		Name:              r.Name,
		AvatarURL:         r.AvatarURL,
		IsEmailVerified:   r.IsEmailVerified,
		IsEmailPrimary:    r.IsEmailPrimary,
		IsVerified:        r.IsEmailVerified,
		RequireIdentities: require,
		Role:              r.Role,
		CreatedAt:         r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
