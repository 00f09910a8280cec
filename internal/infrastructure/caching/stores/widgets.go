// Package stores provides concrete cache store implementations
package stores

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
)

type widgetEntry struct {
	widget      *widgets.Widget
	lastUpdated time.Time
}

// WidgetStore caches widget records by id. Entries older than the TTL read as misses
// and are removed by Sweep.
type WidgetStore struct {
	mu      sync.RWMutex
	entries map[string]widgetEntry
	ttl     time.Duration
	now     func() time.Time
	logger  *logging.ChanneledLogger
}

// NewWidgetStore creates a store whose entries live for ttl.
func NewWidgetStore(ttl time.Duration, logger *logging.ChanneledLogger) *WidgetStore {
	if logger != nil {
		logger.Cache().Info("Initializing widget cache store", "ttl", ttl)
	}
	return &WidgetStore{
		entries: make(map[string]widgetEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Get returns a copy of the cached widget.
func (s *WidgetStore) Get(widgetID string) (*widgets.Widget, bool) {
	s.mu.RLock()
	e, ok := s.entries[widgetID]
	s.mu.RUnlock()

	if !ok || s.expired(e) {
		if s.logger != nil {
			s.logger.Cache().Debug("Cache operation", "operation", "get", "type", "widget", "widgetId", widgetID, "hit", false)
		}
		return nil, false
	}
	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "get", "type", "widget", "widgetId", widgetID, "hit", true)
	}
	w := *e.widget
	return &w, true
}

func (s *WidgetStore) Set(w *widgets.Widget) {
	if w == nil {
		return
	}
	copied := *w
	s.mu.Lock()
	s.entries[w.ID] = widgetEntry{widget: &copied, lastUpdated: s.now()}
	s.mu.Unlock()
}

func (s *WidgetStore) Invalidate(widgetID string) {
	s.mu.Lock()
	delete(s.entries, widgetID)
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "invalidate", "type", "widget", "widgetId", widgetID)
	}
}

// Sweep drops expired entries and returns how many were removed.
func (s *WidgetStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries, expired or not.
func (s *WidgetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *WidgetStore) expired(e widgetEntry) bool {
	return s.ttl > 0 && s.now().Sub(e.lastUpdated) > s.ttl
}
