// Package performance provides lightweight operation timing for backend handlers and the
// widget bootstrap stages.
package performance

import (
	"sync"
	"time"
)

// Marker represents a single performance measurement for an operation
type Marker struct {
	Operation string         `json:"operation"` // e.g. "post_init_request", "embed:fetch_config"
	WidgetID  string         `json:"widgetId"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Duration  time.Duration  `json:"duration"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Completed bool           `json:"completed"`

	tracker *Tracker
}

// Complete marks the operation as finished and records it with its tracker
func (m *Marker) Complete() {
	if m.Completed {
		return
	}
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Completed = true
	if m.tracker != nil {
		m.tracker.record(*m)
	}
}

// SetSuccess marks the operation as successful or failed
func (m *Marker) SetSuccess(success bool) {
	m.Success = success
}

// SetError sets an error message and marks the operation as failed
func (m *Marker) SetError(err error) {
	if err != nil {
		m.Error = err.Error()
		m.Success = false
	}
}

// AddMetadata adds key-value metadata to the marker
func (m *Marker) AddMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Stats aggregates completed markers for one operation
type Stats struct {
	Count    int           `json:"count"`
	Failures int           `json:"failures"`
	Total    time.Duration `json:"total"`
	Max      time.Duration `json:"max"`
}

// Average returns the mean duration.
func (s Stats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Tracker keeps a bounded history of completed markers and per-operation totals
type Tracker struct {
	mu         sync.RWMutex
	maxMarkers int
	recent     []Marker
	stats      map[string]*Stats
}

// NewTracker creates a tracker retaining up to maxMarkers recent markers
func NewTracker(maxMarkers int) *Tracker {
	if maxMarkers <= 0 {
		maxMarkers = 1000
	}
	return &Tracker{
		maxMarkers: maxMarkers,
		stats:      make(map[string]*Stats),
	}
}

// StartOperation begins timing an operation for a widget
func (t *Tracker) StartOperation(operation, widgetID string) *Marker {
	return &Marker{
		Operation: operation,
		WidgetID:  widgetID,
		StartTime: time.Now(),
		tracker:   t,
	}
}

func (t *Tracker) record(m Marker) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m.tracker = nil
	t.recent = append(t.recent, m)
	if len(t.recent) > t.maxMarkers {
		t.recent = t.recent[len(t.recent)-t.maxMarkers:]
	}

	s, ok := t.stats[m.Operation]
	if !ok {
		s = &Stats{}
		t.stats[m.Operation] = s
	}
	s.Count++
	s.Total += m.Duration
	if m.Duration > s.Max {
		s.Max = m.Duration
	}
	if !m.Success {
		s.Failures++
	}
}

// GetStats returns a copy of the aggregate for an operation.
func (t *Tracker) GetStats(operation string) Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.stats[operation]; ok {
		return *s
	}
	return Stats{}
}

// AllStats returns a copy of every operation's aggregate.
func (t *Tracker) AllStats() map[string]Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Stats, len(t.stats))
	for op, s := range t.stats {
		out[op] = *s
	}
	return out
}

// GetRecent returns completed markers for a widget, newest last.
func (t *Tracker) GetRecent(widgetID string) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Marker
	for _, m := range t.recent {
		if widgetID == "" || m.WidgetID == widgetID {
			out = append(out, m)
		}
	}
	return out
}
