package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/persistence/database"
)

// SQLStore keeps widget sessions in the widget_sessions table. It serves headless hosts that
// need the anonymous session to outlive the process.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore expects the schema to have been created with database.TableCreator.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Set(key, value string) (bool, error) {
	if s.db == nil {
		return false, &widgeterr.StorageError{Op: "set", Key: key, Err: widgeterr.ErrStorageUnavailable}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO widget_sessions (widget_id, session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(widget_id) DO UPDATE SET session_id = excluded.session_id, updated_at = excluded.updated_at`,
		key, value, now, now)
	if err != nil {
		return false, &widgeterr.StorageError{Op: "set", Key: key, Err: err}
	}
	return true, nil
}

func (s *SQLStore) Get(key string) (string, bool, error) {
	if s.db == nil {
		return "", false, &widgeterr.StorageError{Op: "get", Key: key, Err: widgeterr.ErrStorageUnavailable}
	}
	var value string
	err := s.db.QueryRow(`SELECT session_id FROM widget_sessions WHERE widget_id = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &widgeterr.StorageError{Op: "get", Key: key, Err: err}
	}
	return value, true, nil
}

// Delete removes the stored session for key.
func (s *SQLStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM widget_sessions WHERE widget_id = ?`, key); err != nil {
		return &widgeterr.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}
