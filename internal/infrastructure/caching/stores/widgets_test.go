package stores

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
)

func TestWidgetStoreExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewWidgetStore(time.Minute, nil)
	s.now = func() time.Time { return now }

	s.Set(&widgets.Widget{ID: "wd-1", Name: "Acme"})
	if w, ok := s.Get("wd-1"); !ok || w.Name != "Acme" {
		t.Fatalf("Get = %+v, %v", w, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := s.Get("wd-1"); ok {
		t.Fatal("expired entry must miss")
	}
	if removed := s.Sweep(); removed != 1 || s.Len() != 0 {
		t.Fatalf("Sweep removed %d, len %d", removed, s.Len())
	}
}

func TestWidgetStoreReturnsCopies(t *testing.T) {
	s := NewWidgetStore(0, nil)
	s.Set(&widgets.Widget{ID: "wd-1", Name: "Acme"})

	w, _ := s.Get("wd-1")
	w.Name = "changed"
	if again, _ := s.Get("wd-1"); again.Name != "Acme" {
		t.Fatal("callers must not mutate cached widgets")
	}

	s.Invalidate("wd-1")
	if _, ok := s.Get("wd-1"); ok {
		t.Fatal("invalidated entry still present")
	}
}
