package services

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/repositories"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/email/templates"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
	"github.com/go-playground/validator/v10"
)

const verificationHours = 24

var validate = validator.New()

// CustomerService serves the authenticated customer's profile and identities
type CustomerService struct {
	widgets    *WidgetService
	customers  repositories.CustomerRepository
	identities repositories.EmailIdentityRepository
	tokens     *security.TokenIssuer
	mailer     email.Service
	apiURL     string
	logger     *logging.ChanneledLogger
}

func NewCustomerService(widgets *WidgetService, customers repositories.CustomerRepository, identities repositories.EmailIdentityRepository,
	tokens *security.TokenIssuer, mailer email.Service, apiURL string, logger *logging.ChanneledLogger) *CustomerService {
	return &CustomerService{
		widgets:    widgets,
		customers:  customers,
		identities: identities,
		tokens:     tokens,
		mailer:     mailer,
		apiURL:     strings.TrimRight(apiURL, "/"),
		logger:     logger,
	}
}

// Me returns the customer behind an access token.
func (s *CustomerService) Me(widgetID, customerID string) (*customer.Record, error) {
	rec, err := s.customers.FindByID(widgetID, customerID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrCustomerNotFound
	}
	return rec, nil
}

// AddEmailIdentity records an email for the customer and sends a verification link.
// Customers without an email get it as their primary, unverified address.
func (s *CustomerService) AddEmailIdentity(widgetID, customerID, address string) (*customer.Record, error) {
	address = strings.TrimSpace(strings.ToLower(address))
	if err := validate.Var(address, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	rec, err := s.Me(widgetID, customerID)
	if err != nil {
		return nil, err
	}
	if rec.Email != nil && *rec.Email == address && rec.IsEmailVerified {
		return rec, nil
	}

	owner, err := s.customers.FindByEmail(widgetID, address)
	if err != nil {
		return nil, err
	}
	if owner != nil && owner.ID != rec.ID {
		return nil, ErrEmailInUse
	}

	if err := s.identities.Store(&customer.EmailIdentity{
		ID:         security.GenerateULID(),
		CustomerID: rec.ID,
		Email:      address,
	}); err != nil {
		return nil, err
	}

	if rec.Email == nil {
		rec.Email = &address
		rec.IsEmailVerified = false
		rec.IsEmailPrimary = true
		if err := s.customers.Update(rec); err != nil {
			return nil, err
		}
	}

	if err := s.sendVerification(widgetID, rec, address); err != nil {
		s.logger.LogError(logging.ChannelEmail, "send_verification", err, widgetID, map[string]any{"customerId": rec.ID})
	}
	return rec, nil
}

func (s *CustomerService) sendVerification(widgetID string, rec *customer.Record, address string) error {
	token, err := s.tokens.IssueVerificationToken(widgetID, rec.ID, address)
	if err != nil {
		return err
	}
	props := templates.VerificationProps{
		Name:            rec.Name,
		VerifyURL:       fmt.Sprintf("%s/widgets/%s/me/identities/verify/?token=%s", s.apiURL, url.PathEscape(widgetID), url.QueryEscape(token)),
		ExpirationHours: verificationHours,
	}
	if w, err := s.widgets.Get(widgetID); err == nil {
		props.WidgetName = w.Name
		props.AccentColor = w.Effective().HeaderColor
	}
	return s.mailer.SendVerificationEmail(address, props)
}

// VerifyEmail consumes a verification token from an email link.
func (s *CustomerService) VerifyEmail(widgetID, token string) (*customer.Record, error) {
	claims, err := s.tokens.Validate(token, security.PurposeVerification)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", security.ErrInvalidToken, err)
	}
	if claims.WidgetID != widgetID {
		return nil, security.ErrInvalidToken
	}

	found, err := s.identities.MarkVerified(claims.CustomerID, claims.Email)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("email identity not found")
	}

	rec, err := s.Me(widgetID, claims.CustomerID)
	if err != nil {
		return nil, err
	}
	if rec.Email != nil && *rec.Email == claims.Email && !rec.IsEmailVerified {
		rec.IsEmailVerified = true
		if err := s.customers.Update(rec); err != nil {
			return nil, err
		}
	}
	s.logger.Auth().Info("Email identity verified", "widgetId", widgetID, "customerId", rec.ID, "email", logging.SanitizeEmail(claims.Email))
	return rec, nil
}
