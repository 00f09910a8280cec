// Package events provides the typed subscription registry the embed controller exposes to
// host-page consumers.
package events

import (
	"sort"
	"sync"
)

// Name identifies an event published by the widget
type Name string

const (
	Ready Name = "ready"
	Error Name = "error"
)

// Handler receives the event payload. Ready carries nil; Error carries the error value.
type Handler func(payload any)

// Subscription identifies a registered handler so it can be removed with Off.
type Subscription struct {
	name Name
	id   uint64
}

// Emitter is a callback registry keyed by event name. It is safe for concurrent use.
type Emitter struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Name]map[uint64]Handler
	latched  map[Name]bool
	fired    map[Name]any
}

// NewEmitter creates an emitter. Events named in latched are remembered once
// triggered: a handler registered afterwards is called with the last payload.
func NewEmitter(latched ...Name) *Emitter {
	e := &Emitter{
		handlers: make(map[Name]map[uint64]Handler),
		latched:  make(map[Name]bool, len(latched)),
		fired:    make(map[Name]any),
	}
	for _, name := range latched {
		e.latched[name] = true
	}
	return e
}

// On registers fn for name. Multiple handlers per name are allowed.
// If name is latched and has already fired, fn runs immediately with its payload.
func (e *Emitter) On(name Name, fn Handler) Subscription {
	e.mu.Lock()
	e.nextID++
	if e.handlers[name] == nil {
		e.handlers[name] = make(map[uint64]Handler)
	}
	e.handlers[name][e.nextID] = fn
	sub := Subscription{name: name, id: e.nextID}
	payload, replay := e.fired[name]
	e.mu.Unlock()

	if replay {
		fn(payload)
	}
	return sub
}

// Off removes a handler. Removing twice is a no-op.
func (e *Emitter) Off(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.handlers[sub.name], sub.id)
}

// Trigger calls every handler registered for name in subscription order.
// Handlers run outside the lock, so they may subscribe or unsubscribe.
func (e *Emitter) Trigger(name Name, payload any) {
	// recording the payload and taking the snapshot under one lock means a concurrent
	// On either lands in the snapshot or gets the replay, never both
	e.mu.Lock()
	if e.latched[name] {
		e.fired[name] = payload
	}
	ids := make([]uint64, 0, len(e.handlers[name]))
	for id := range e.handlers[name] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]Handler, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, e.handlers[name][id])
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// Count returns the number of handlers registered for name.
func (e *Emitter) Count(name Name) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[name])
}
