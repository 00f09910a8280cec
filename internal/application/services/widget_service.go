// Package services provides the application services of the reference widget backend.
// They coordinate repositories, token issuing and email delivery.
package services

import (
	"fmt"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/repositories"
)

// WidgetService serves widget display configuration
type WidgetService struct {
	widgetRepo repositories.WidgetRepository
}

func NewWidgetService(widgetRepo repositories.WidgetRepository) *WidgetService {
	return &WidgetService{widgetRepo: widgetRepo}
}

// Get returns the stored widget.
func (s *WidgetService) Get(widgetID string) (*widgets.Widget, error) {
	if widgetID == "" {
		return nil, ErrWidgetNotFound
	}
	w, err := s.widgetRepo.FindByID(widgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get widget %s: %w", widgetID, err)
	}
	if w == nil {
		return nil, ErrWidgetNotFound
	}
	return w, nil
}

// GetConfig returns the effective display configuration served to the embed.
func (s *WidgetService) GetConfig(widgetID string) (widgets.Config, error) {
	w, err := s.Get(widgetID)
	if err != nil {
		return widgets.Config{}, err
	}
	return w.Effective(), nil
}

// UpdateConfig replaces the remote configuration of a widget.
func (s *WidgetService) UpdateConfig(widgetID string, cfg widgets.Overrides) (widgets.Config, error) {
	if _, err := s.Get(widgetID); err != nil {
		return widgets.Config{}, err
	}
	if err := s.widgetRepo.UpdateConfig(widgetID, cfg); err != nil {
		return widgets.Config{}, err
	}
	return s.GetConfig(widgetID)
}
