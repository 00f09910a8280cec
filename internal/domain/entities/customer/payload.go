package customer

// Payload is the flattened customer message the host posts to the iframe:
// widget id, optional session id and the customer descriptor fields.
type Payload struct {
	WidgetID     string            `json:"widgetId"`
	SessionID    *string           `json:"sessionId,omitempty"`
	ExternalID   *string           `json:"externalId"`
	Email        *string           `json:"email"`
	Phone        *string           `json:"phone"`
	CustomerHash *string           `json:"customerHash"`
	IsVerified   bool              `json:"isVerified"`
	FirstName    string            `json:"firstName,omitempty"`
	LastName     string            `json:"lastName,omitempty"`
	Name         string            `json:"name,omitempty"`
	Traits       map[string]string `json:"traits"`
}

// NewPayload flattens c for the wire. An empty sessionID is omitted.
func NewPayload(widgetID, sessionID string, c Customer) Payload {
	traits := c.Traits
	if traits == nil {
		traits = map[string]string{}
	}
	return Payload{
		WidgetID:     widgetID,
		SessionID:    nullable(sessionID),
		ExternalID:   nullable(c.ExternalID),
		Email:        nullable(c.Email),
		Phone:        nullable(c.Phone),
		CustomerHash: nullable(c.CustomerHash),
		IsVerified:   c.IsVerified,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Name:         c.Name,
		Traits:       traits,
	}
}

// Customer rebuilds the descriptor carried by the payload.
func (p Payload) Customer() Customer {
	return Customer{
		ExternalID:   deref(p.ExternalID),
		Email:        deref(p.Email),
		Phone:        deref(p.Phone),
		CustomerHash: deref(p.CustomerHash),
		IsVerified:   p.IsVerified,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Name:         p.Name,
		Traits:       p.Traits,
	}
}

// Session returns the anonymous session id, if any.
func (p Payload) Session() string {
	return deref(p.SessionID)
}

// InitRequest is the body of POST /widgets/{widgetId}/init/.
type InitRequest struct {
	SessionID          *string           `json:"sessionId,omitempty"`
	CustomerExternalID *string           `json:"customerExternalId,omitempty"`
	CustomerEmail      *string           `json:"customerEmail,omitempty"`
	CustomerPhone      *string           `json:"customerPhone,omitempty"`
	CustomerHash       *string           `json:"customerHash,omitempty"`
	Traits             map[string]string `json:"traits,omitempty"`
}

// NewInitRequest maps a received payload onto the init exchange body.
func NewInitRequest(p Payload) InitRequest {
	c := p.Customer()
	return InitRequest{
		SessionID:          nullable(p.Session()),
		CustomerExternalID: nullable(c.ExternalID),
		CustomerEmail:      nullable(c.Email),
		CustomerPhone:      nullable(c.Phone),
		CustomerHash:       nullable(c.CustomerHash),
		Traits:             c.MakeTraits(),
	}
}

// Customer returns the identity asserted by the request.
func (r InitRequest) Customer() Customer {
	return Customer{
		ExternalID:   deref(r.CustomerExternalID),
		Email:        deref(r.CustomerEmail),
		Phone:        deref(r.CustomerPhone),
		CustomerHash: deref(r.CustomerHash),
		Traits:       r.Traits,
	}
}

// Session returns the anonymous session id, if any.
func (r InitRequest) Session() string {
	return deref(r.SessionID)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
