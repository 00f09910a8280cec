// Package identity decides how a widget pageview identifies its customer to the backend.
package identity

import (
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/storage"
)

// Resolver resolves the session for a widget id. Storage problems never fail resolution.
type Resolver struct {
	store        storage.SessionStore
	newSessionID func() string
	logger       *logging.ChanneledLogger
}

// NewResolver wraps store so that its failures always surface as storage errors.
// A nil newSessionID uses random UUID v4 ids.
func NewResolver(store storage.SessionStore, newSessionID func() string, logger *logging.ChanneledLogger) *Resolver {
	if newSessionID == nil {
		newSessionID = security.NewSessionID
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Resolver{
		store:        storage.Guarded(store),
		newSessionID: newSessionID,
		logger:       logger,
	}
}

// Validate runs the synchronous checks that must pass before any network call.
func Validate(widgetID string, c customer.Customer) error {
	if widgetID == "" {
		return &widgeterr.ConfigurationError{Reason: "widgetId is required", Err: widgeterr.ErrMissingWidgetID}
	}
	return c.Validate()
}

// Resolve returns the session for this pageview. The only possible error is a
// configuration error.
func (r *Resolver) Resolve(widgetID string, c customer.Customer) (session.Resolution, error) {
	if err := Validate(widgetID, c); err != nil {
		return session.Resolution{}, err
	}
	if c.HasHash() {
		r.logger.Session().Debug("Using hashed customer identity", "widgetId", widgetID)
		return session.Resolution{Mode: session.ModeHashed}, nil
	}

	stored, found, err := r.store.Get(widgetID)
	if err != nil {
		r.logger.LogError(logging.ChannelStorage, "session_get", err, widgetID, nil)
	} else if found && stored != "" {
		r.logger.Session().Debug("Reusing stored session", "widgetId", widgetID,
			"sessionId", logging.SanitizeSessionID(stored))
		return session.Resolution{
			Mode:      session.ModeAnonymous,
			SessionID: stored,
			Reused:    true,
			Persisted: true,
		}, nil
	}

	id := r.newSessionID()
	res := session.Resolution{Mode: session.ModeAnonymous, SessionID: id}

	if _, err := r.store.Set(widgetID, id); err != nil {
		r.logger.LogError(logging.ChannelStorage, "session_set", err, widgetID, nil)
		r.logger.Storage().Warn("Session not persisted, using in-memory session", "widgetId", widgetID)
		return res, nil
	}
	res.Persisted = true
	r.logger.Session().Info("Created anonymous session", "widgetId", widgetID,
		"sessionId", logging.SanitizeSessionID(id))
	return res, nil
}
