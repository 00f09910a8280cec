// Package widget provides the sql repositories of the reference widget backend.
package widget

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/pkg/config"
)

type WidgetRepository struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

func NewWidgetRepository(db *sql.DB, logger *logging.ChanneledLogger) *WidgetRepository {
	return &WidgetRepository{db: db, logger: logger}
}

func (r *WidgetRepository) FindByID(widgetID string) (*widgets.Widget, error) {
	query := `SELECT id, name, config_payload, created_at, updated_at FROM widgets WHERE id = ?`

	start := time.Now()
	var w widgets.Widget
	var payload, createdAt, updatedAt string
	err := r.db.QueryRow(query, widgetID).Scan(&w.ID, &w.Name, &payload, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Database().Error("Widget lookup failed", "error", err.Error(), "widgetId", widgetID)
		return nil, fmt.Errorf("failed to load widget %s: %w", widgetID, err)
	}
	r.checkSlow(query, start, widgetID)

	if err := json.Unmarshal([]byte(payload), &w.Config); err != nil {
		return nil, fmt.Errorf("failed to parse widget %s config: %w", widgetID, err)
	}
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return &w, nil
}

func (r *WidgetRepository) Store(w *widgets.Widget) error {
	payload, err := json.Marshal(w.Config)
	if err != nil {
		return fmt.Errorf("failed to encode widget config: %w", err)
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	query := `INSERT INTO widgets (id, name, config_payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	start := time.Now()
	if _, err := r.db.Exec(query, w.ID, w.Name, string(payload), formatTime(w.CreatedAt), formatTime(w.UpdatedAt)); err != nil {
		r.logger.Database().Error("Widget insert failed", "error", err.Error(), "widgetId", w.ID)
		return fmt.Errorf("failed to insert widget: %w", err)
	}
	r.logger.Database().Info("Widget insert completed", "widgetId", w.ID, "duration", time.Since(start))
	r.checkSlow(query, start, w.ID)
	return nil
}

func (r *WidgetRepository) UpdateConfig(widgetID string, cfg widgets.Overrides) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode widget config: %w", err)
	}
	query := `UPDATE widgets SET config_payload = ?, updated_at = ? WHERE id = ?`
	start := time.Now()
	if _, err := r.db.Exec(query, string(payload), formatTime(time.Now()), widgetID); err != nil {
		r.logger.Database().Error("Widget update failed", "error", err.Error(), "widgetId", widgetID)
		return fmt.Errorf("failed to update widget config: %w", err)
	}
	r.checkSlow(query, start, widgetID)
	return nil
}

func (r *WidgetRepository) checkSlow(query string, start time.Time, widgetID string) {
	if d := time.Since(start); d > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, d, widgetID)
	}
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
