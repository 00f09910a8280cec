// Package storage provides the local session store: a small key-value store keyed by
// widget id whose failures are returned as typed StorageErrors instead of panics.
package storage

import (
	"fmt"
	"sync"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
)

// SessionStore persists one opaque value per key. Implementations never panic; every
// failure is reported as a *widgeterr.StorageError.
type SessionStore interface {
	Set(key, value string) (bool, error)
	Get(key string) (value string, found bool, err error)
}

// MemoryStore is a map-backed store mirroring browser localStorage semantics,
// including an optional entry quota.
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string]string
	maxEntries int
}

// NewMemoryStore creates a store holding at most maxEntries keys; zero means unlimited.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]string),
		maxEntries: maxEntries,
	}
}

func (s *MemoryStore) Set(key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists && s.maxEntries > 0 && len(s.data) >= s.maxEntries {
		return false, &widgeterr.StorageError{Op: "set", Key: key, Err: widgeterr.ErrQuotaExceeded}
	}
	s.data[key] = value
	return true, nil
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

// Delete removes a key, as when the user clears site data.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// DisabledStore models storage blocked by the host page or the browser.
type DisabledStore struct{}

func (DisabledStore) Set(key, _ string) (bool, error) {
	return false, &widgeterr.StorageError{Op: "set", Key: key, Err: widgeterr.ErrStorageUnavailable}
}

func (DisabledStore) Get(key string) (string, bool, error) {
	return "", false, &widgeterr.StorageError{Op: "get", Key: key, Err: widgeterr.ErrStorageUnavailable}
}

// Guarded wraps a store so that a panicking implementation surfaces as a StorageError.
func Guarded(inner SessionStore) SessionStore {
	if inner == nil {
		return DisabledStore{}
	}
	return guarded{inner: inner}
}

type guarded struct {
	inner SessionStore
}

func (g guarded) Set(key, value string) (ok bool, err error) {
	defer recoverInto("set", key, &err)
	ok, err = g.inner.Set(key, value)
	if err != nil {
		ok = false
		err = asStorageError("set", key, err)
	}
	return ok, err
}

func (g guarded) Get(key string) (value string, found bool, err error) {
	defer recoverInto("get", key, &err)
	value, found, err = g.inner.Get(key)
	if err != nil {
		return "", false, asStorageError("get", key, err)
	}
	return value, found, nil
}

func recoverInto(op, key string, err *error) {
	if r := recover(); r != nil {
		*err = &widgeterr.StorageError{Op: op, Key: key, Err: fmt.Errorf("panic: %v", r)}
	}
}

func asStorageError(op, key string, err error) error {
	if widgeterr.IsStorage(err) {
		return err
	}
	return &widgeterr.StorageError{Op: op, Key: key, Err: err}
}
