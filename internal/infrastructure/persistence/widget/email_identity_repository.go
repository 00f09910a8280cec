package widget

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
)

type EmailIdentityRepository struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

func NewEmailIdentityRepository(db *sql.DB, logger *logging.ChanneledLogger) *EmailIdentityRepository {
	return &EmailIdentityRepository{db: db, logger: logger}
}

func (r *EmailIdentityRepository) FindByCustomer(customerID string) ([]*customer.EmailIdentity, error) {
	rows, err := r.db.Query(`SELECT id, customer_id, email, is_verified, created_at FROM email_identities
		WHERE customer_id = ? ORDER BY created_at`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query email identities: %w", err)
	}
	defer rows.Close()

	var out []*customer.EmailIdentity
	for rows.Next() {
		var id customer.EmailIdentity
		var createdAt string
		if err := rows.Scan(&id.ID, &id.CustomerID, &id.Email, &id.IsVerified, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan email identity: %w", err)
		}
		id.CreatedAt = parseTime(createdAt)
		out = append(out, &id)
	}
	return out, rows.Err()
}

func (r *EmailIdentityRepository) Store(identity *customer.EmailIdentity) error {
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`INSERT INTO email_identities (id, customer_id, email, is_verified, created_at) VALUES (?, ?, ?, ?, ?)`,
		identity.ID, identity.CustomerID, identity.Email, identity.IsVerified, formatTime(identity.CreatedAt))
	if err != nil {
		r.logger.Database().Error("Email identity insert failed", "error", err.Error(), "customerId", identity.CustomerID)
		return fmt.Errorf("failed to insert email identity: %w", err)
	}
	return nil
}

// MarkVerified flags every pending identity of the customer with that address.
func (r *EmailIdentityRepository) MarkVerified(customerID, email string) (bool, error) {
	res, err := r.db.Exec(`UPDATE email_identities SET is_verified = 1 WHERE customer_id = ? AND email = ?`, customerID, email)
	if err != nil {
		return false, fmt.Errorf("failed to verify email identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to verify email identity: %w", err)
	}
	return n > 0, nil
}
