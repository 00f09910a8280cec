// Package repositories defines the persistence interfaces of the widget backend.
// Finders return nil, nil when nothing matches.
package repositories

import (
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/threads"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
)

type WidgetRepository interface {
	FindByID(widgetID string) (*widgets.Widget, error)
	Store(widget *widgets.Widget) error
	UpdateConfig(widgetID string, config widgets.Overrides) error
}

type CustomerRepository interface {
	FindByID(widgetID, customerID string) (*customer.Record, error)
	FindByExternalID(widgetID, externalID string) (*customer.Record, error)
	FindByEmail(widgetID, email string) (*customer.Record, error)
	FindByPhone(widgetID, phone string) (*customer.Record, error)
	FindBySessionID(widgetID, sessionID string) (*customer.Record, error)
	Store(c *customer.Record) error
	Update(c *customer.Record) error
}

type EmailIdentityRepository interface {
	FindByCustomer(customerID string) ([]*customer.EmailIdentity, error)
	Store(identity *customer.EmailIdentity) error
	MarkVerified(customerID, email string) (bool, error)
}

type ThreadRepository interface {
	FindByCustomer(widgetID, customerID string) ([]*threads.Thread, error)
	FindByID(widgetID, customerID, threadID string) (*threads.Thread, error)
	Create(widgetID string, thread *threads.Thread, head *threads.Chat) error
	FindChats(threadID string) ([]*threads.Chat, error)
	AppendChat(widgetID string, thread *threads.Thread, chat *threads.Chat) error
}
