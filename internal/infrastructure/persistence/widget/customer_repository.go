package widget

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/pkg/config"
)

const customerColumns = `id, widget_id, external_id, email, phone, session_id, name, avatar_url,
	is_email_verified, is_email_primary, role, traits_payload, created_at, updated_at`

type CustomerRepository struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

func NewCustomerRepository(db *sql.DB, logger *logging.ChanneledLogger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger}
}

func (r *CustomerRepository) FindByID(widgetID, customerID string) (*customer.Record, error) {
	return r.findOne("id", widgetID, customerID)
}

func (r *CustomerRepository) FindByExternalID(widgetID, externalID string) (*customer.Record, error) {
	return r.findOne("external_id", widgetID, externalID)
}

func (r *CustomerRepository) FindByEmail(widgetID, email string) (*customer.Record, error) {
	return r.findOne("email", widgetID, email)
}

func (r *CustomerRepository) FindByPhone(widgetID, phone string) (*customer.Record, error) {
	return r.findOne("phone", widgetID, phone)
}

func (r *CustomerRepository) FindBySessionID(widgetID, sessionID string) (*customer.Record, error) {
	return r.findOne("session_id", widgetID, sessionID)
}

// findOne looks a customer up by one of the indexed columns. column is never user input.
func (r *CustomerRepository) findOne(column, widgetID, value string) (*customer.Record, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE widget_id = ? AND ` + column + ` = ?`

	start := time.Now()
	rec, err := scanCustomer(r.db.QueryRow(query, widgetID, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Database().Error("Customer lookup failed", "error", err.Error(), "widgetId", widgetID, "by", column)
		return nil, fmt.Errorf("failed to load customer by %s: %w", column, err)
	}
	if d := time.Since(start); d > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, d, widgetID)
	}
	return rec, nil
}

func (r *CustomerRepository) Store(c *customer.Record) error {
	traits, err := encodeTraits(c.Traits)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	query := `INSERT INTO customers (` + customerColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	start := time.Now()
	_, err = r.db.Exec(query, c.ID, c.WidgetID, nullString(c.ExternalID), nullString(c.Email), nullString(c.Phone),
		nullString(c.SessionID), c.Name, c.AvatarURL, c.IsEmailVerified, c.IsEmailPrimary, c.Role, traits,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		r.logger.Database().Error("Customer insert failed", "error", err.Error(), "widgetId", c.WidgetID)
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	r.logger.Database().Info("Customer insert completed", "customerId", c.ID, "widgetId", c.WidgetID, "duration", time.Since(start))
	return nil
}

func (r *CustomerRepository) Update(c *customer.Record) error {
	traits, err := encodeTraits(c.Traits)
	if err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()

	query := `UPDATE customers SET external_id = ?, email = ?, phone = ?, session_id = ?, name = ?, avatar_url = ?,
		is_email_verified = ?, is_email_primary = ?, role = ?, traits_payload = ?, updated_at = ?
		WHERE id = ? AND widget_id = ?`
	start := time.Now()
	_, err = r.db.Exec(query, nullString(c.ExternalID), nullString(c.Email), nullString(c.Phone), nullString(c.SessionID),
		c.Name, c.AvatarURL, c.IsEmailVerified, c.IsEmailPrimary, c.Role, traits, formatTime(c.UpdatedAt), c.ID, c.WidgetID)
	if err != nil {
		r.logger.Database().Error("Customer update failed", "error", err.Error(), "customerId", c.ID)
		return fmt.Errorf("failed to update customer: %w", err)
	}
	r.logger.Database().Debug("Customer update completed", "customerId", c.ID, "duration", time.Since(start))
	return nil
}

func scanCustomer(row *sql.Row) (*customer.Record, error) {
	var c customer.Record
	var externalID, email, phone, sessionID sql.NullString
	var traits, createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.WidgetID, &externalID, &email, &phone, &sessionID, &c.Name, &c.AvatarURL,
		&c.IsEmailVerified, &c.IsEmailPrimary, &c.Role, &traits, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.ExternalID = stringPtr(externalID)
	c.Email = stringPtr(email)
	c.Phone = stringPtr(phone)
	c.SessionID = stringPtr(sessionID)
	if err := json.Unmarshal([]byte(traits), &c.Traits); err != nil {
		return nil, fmt.Errorf("failed to parse customer traits: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func encodeTraits(traits map[string]string) (string, error) {
	if traits == nil {
		return "{}", nil
	}
	b, err := json.Marshal(traits)
	if err != nil {
		return "", fmt.Errorf("failed to encode customer traits: %w", err)
	}
	return string(b), nil
}
