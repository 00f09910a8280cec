// Package adapters puts caches in front of repositories.
package adapters

import (
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/repositories"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/caching/stores"
)

// CachedWidgetRepository serves FindByID from the store and invalidates on writes.
type CachedWidgetRepository struct {
	inner repositories.WidgetRepository
	cache *stores.WidgetStore
}

var _ repositories.WidgetRepository = (*CachedWidgetRepository)(nil)

func NewCachedWidgetRepository(inner repositories.WidgetRepository, cache *stores.WidgetStore) *CachedWidgetRepository {
	return &CachedWidgetRepository{inner: inner, cache: cache}
}

func (r *CachedWidgetRepository) FindByID(widgetID string) (*widgets.Widget, error) {
	if w, ok := r.cache.Get(widgetID); ok {
		return w, nil
	}
	w, err := r.inner.FindByID(widgetID)
	if err != nil || w == nil {
		return w, err
	}
	r.cache.Set(w)
	return w, nil
}

func (r *CachedWidgetRepository) Store(w *widgets.Widget) error {
	if err := r.inner.Store(w); err != nil {
		return err
	}
	r.cache.Invalidate(w.ID)
	return nil
}

func (r *CachedWidgetRepository) UpdateConfig(widgetID string, cfg widgets.Overrides) error {
	if err := r.inner.UpdateConfig(widgetID, cfg); err != nil {
		return err
	}
	r.cache.Invalidate(widgetID)
	return nil
}
