package services

import (
	"fmt"
	"maps"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/repositories"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
)

// InitService runs the widget init exchange: it verifies the host-asserted identity,
// resolves or creates the customer and issues the access token.
type InitService struct {
	widgets   *WidgetService
	customers repositories.CustomerRepository
	verifier  *security.HashVerifier
	tokens    *security.TokenIssuer
	logger    *logging.ChanneledLogger
}

func NewInitService(widgets *WidgetService, customers repositories.CustomerRepository, verifier *security.HashVerifier,
	tokens *security.TokenIssuer, logger *logging.ChanneledLogger) *InitService {
	return &InitService{
		widgets:   widgets,
		customers: customers,
		verifier:  verifier,
		tokens:    tokens,
		logger:    logger,
	}
}

// InitResult is the outcome of an init exchange
type InitResult struct {
	Response customer.InitResponse
	Customer *customer.Record
}

func (s *InitService) Init(widgetID string, req customer.InitRequest) (*InitResult, error) {
	if _, err := s.widgets.Get(widgetID); err != nil {
		return nil, err
	}

	c := req.Customer()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var rec *customer.Record
	var created bool
	var err error
	if c.HasIdentifier() {
		if !s.verifier.Verify(widgetID, c.HashSubject(), c.CustomerHash) {
			s.logger.Auth().Warn("Customer hash rejected", "widgetId", widgetID)
			return nil, ErrInvalidHash
		}
		rec, created, err = s.resolveIdentified(widgetID, c)
	} else {
		rec, created, err = s.resolveAnonymous(widgetID, req.Session(), c.Traits)
	}
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueAccessToken(widgetID, rec.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Auth().Info("Customer initialized", "widgetId", widgetID, "customerId", rec.ID, "role", rec.Role, "create", created)
	return &InitResult{
		Response: customer.InitResponse{JWT: token, Create: created, Profile: rec.Profile()},
		Customer: rec,
	}, nil
}

// resolveIdentified finds the customer by external id, then email, then phone.
func (s *InitService) resolveIdentified(widgetID string, c customer.Customer) (*customer.Record, bool, error) {
	lookups := []struct {
		value string
		find  func(string, string) (*customer.Record, error)
	}{
		{c.ExternalID, s.customers.FindByExternalID},
		{c.Email, s.customers.FindByEmail},
		{c.Phone, s.customers.FindByPhone},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		rec, err := l.find(widgetID, l.value)
		if err != nil {
			return nil, false, err
		}
		if rec != nil {
			return rec, false, s.refreshIdentified(rec, c)
		}
	}

	rec := &customer.Record{
		ID:              security.GenerateULID(),
		WidgetID:        widgetID,
		ExternalID:      optional(c.ExternalID),
		Email:           optional(c.Email),
		Phone:           optional(c.Phone),
		Name:            customer.DisplayName(c.Traits, firstNonEmpty(c.Email, c.Phone, "Customer")),
		IsEmailVerified: c.Email != "",
		IsEmailPrimary:  c.Email != "",
		Role:            customer.RoleCustomer,
		Traits:          c.Traits,
	}
	if err := s.customers.Store(rec); err != nil {
		return nil, false, fmt.Errorf("failed to create customer: %w", err)
	}
	return rec, true, nil
}

// refreshIdentified fills identifiers the record did not have yet and merges traits.
// A visitor that is identified by the host is promoted to a customer.
func (s *InitService) refreshIdentified(rec *customer.Record, c customer.Customer) error {
	if rec.ExternalID == nil && c.ExternalID != "" {
		rec.ExternalID = optional(c.ExternalID)
	}
	if rec.Email == nil && c.Email != "" {
		rec.Email = optional(c.Email)
		rec.IsEmailVerified = true
		rec.IsEmailPrimary = true
	}
	if rec.Phone == nil && c.Phone != "" {
		rec.Phone = optional(c.Phone)
	}
	rec.Traits = mergeTraits(rec.Traits, c.Traits)
	rec.Name = customer.DisplayName(rec.Traits, rec.Name)
	rec.Role = customer.RoleCustomer
	return s.customers.Update(rec)
}

func (s *InitService) resolveAnonymous(widgetID, sessionID string, traits map[string]string) (*customer.Record, bool, error) {
	if sessionID == "" {
		return nil, false, ErrSessionRequired
	}
	rec, err := s.customers.FindBySessionID(widgetID, sessionID)
	if err != nil {
		return nil, false, err
	}
	if rec != nil {
		if len(traits) > 0 {
			rec.Traits = mergeTraits(rec.Traits, traits)
			rec.Name = customer.DisplayName(rec.Traits, rec.Name)
			if err := s.customers.Update(rec); err != nil {
				return nil, false, err
			}
		}
		return rec, false, nil
	}

	rec = &customer.Record{
		ID:        security.GenerateULID(),
		WidgetID:  widgetID,
		SessionID: optional(sessionID),
		Name:      customer.DisplayName(traits, "Visitor"),
		Role:      customer.RoleVisitor,
		Traits:    traits,
	}
	if err := s.customers.Store(rec); err != nil {
		// A concurrent init for the same session may have won the unique index.
		if existing, findErr := s.customers.FindBySessionID(widgetID, sessionID); findErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create visitor: %w", err)
	}
	s.logger.Session().Debug("Visitor created", "widgetId", widgetID, "sessionId", logging.SanitizeSessionID(sessionID))
	return rec, true, nil
}

func mergeTraits(base, update map[string]string) map[string]string {
	if len(update) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(update))
	maps.Copy(out, base)
	maps.Copy(out, update)
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
