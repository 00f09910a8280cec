package identity

import (
	"errors"
	"testing"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/storage"
)

type countingStore struct {
	inner      storage.SessionStore
	gets, sets int
}

func (s *countingStore) Set(k, v string) (bool, error) {
	s.sets++
	return s.inner.Set(k, v)
}

func (s *countingStore) Get(k string) (string, bool, error) {
	s.gets++
	return s.inner.Get(k)
}

func TestAnonymousCreatesAndPersists(t *testing.T) {
	store := &countingStore{inner: storage.NewMemoryStore(0)}
	r := NewResolver(store, nil, nil)

	res, err := r.Resolve("wd-1", customer.Customer{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != session.ModeAnonymous || res.Reused || !res.Persisted {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if !security.IsSessionID(res.SessionID) {
		t.Fatalf("session id %q is not a UUID v4", res.SessionID)
	}
	if v, found, _ := store.Get("wd-1"); !found || v != res.SessionID {
		t.Fatalf("stored %q, want %q", v, res.SessionID)
	}
}

func TestAnonymousReusesStoredSession(t *testing.T) {
	mem := storage.NewMemoryStore(0)
	mem.Set("wd-1", "existing")
	r := NewResolver(mem, func() string { t.Fatal("must not generate"); return "" }, nil)

	for i := 0; i < 2; i++ {
		res, err := r.Resolve("wd-1", customer.Customer{})
		if err != nil {
			t.Fatal(err)
		}
		if res.SessionID != "existing" || !res.Reused {
			t.Fatalf("resolution %d = %+v", i, res)
		}
	}
}

func TestSessionsAreKeyedPerWidget(t *testing.T) {
	n := 0
	r := NewResolver(storage.NewMemoryStore(0), func() string { n++; return []string{"a", "b"}[n-1] }, nil)

	one, _ := r.Resolve("wd-1", customer.Customer{})
	two, _ := r.Resolve("wd-2", customer.Customer{})
	again, _ := r.Resolve("wd-1", customer.Customer{})
	if one.SessionID != "a" || two.SessionID != "b" || again.SessionID != "a" {
		t.Fatalf("got %q %q %q", one.SessionID, two.SessionID, again.SessionID)
	}
}

func TestHashedModeNeverTouchesStore(t *testing.T) {
	store := &countingStore{inner: storage.NewMemoryStore(0)}
	r := NewResolver(store, nil, nil)

	res, err := r.Resolve("wd-1", customer.Customer{Email: "a@b.com", CustomerHash: "h"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != session.ModeHashed || res.SessionID != "" {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if store.gets != 0 || store.sets != 0 {
		t.Fatalf("store touched: %d gets, %d sets", store.gets, store.sets)
	}
}

func TestStorageFailureFallsBackToMemory(t *testing.T) {
	r := NewResolver(storage.DisabledStore{}, func() string { return "fresh" }, nil)

	res, err := r.Resolve("wd-1", customer.Customer{})
	if err != nil {
		t.Fatalf("storage failure must not fail resolution: %v", err)
	}
	if res.SessionID != "fresh" || res.Persisted || res.Reused {
		t.Fatalf("unexpected resolution %+v", res)
	}
}

func TestQuotaExceededFallsBackToMemory(t *testing.T) {
	mem := storage.NewMemoryStore(1)
	mem.Set("other", "x")
	r := NewResolver(mem, func() string { return "fresh" }, nil)

	res, err := r.Resolve("wd-1", customer.Customer{})
	if err != nil || res.SessionID != "fresh" || res.Persisted {
		t.Fatalf("Resolve = %+v, %v", res, err)
	}
}

func TestConfigurationErrors(t *testing.T) {
	r := NewResolver(storage.NewMemoryStore(0), nil, nil)

	cases := []struct {
		name     string
		widgetID string
		customer customer.Customer
	}{
		{"missing widget id", "", customer.Customer{}},
		{"identifier without hash", "wd-1", customer.Customer{Email: "a@b.com"}},
		{"hash without identifier", "wd-1", customer.Customer{CustomerHash: "h"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(tc.widgetID, tc.customer)
			if !widgeterr.IsConfiguration(err) {
				t.Fatalf("err = %v, want configuration error", err)
			}
		})
	}

	if _, err := r.Resolve("", customer.Customer{}); !errors.Is(err, widgeterr.ErrMissingWidgetID) {
		t.Fatalf("missing widget id err = %v", err)
	}
}
