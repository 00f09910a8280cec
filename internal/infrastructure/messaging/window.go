package messaging

import (
	"errors"
	"sync"
)

var ErrWindowClosed = errors.New("window closed")

// MessageEvent is one delivered message with the sender's origin as seen by the receiver.
type MessageEvent struct {
	Data   string
	Origin string
}

type Listener func(MessageEvent)

// Port posts a message toward a peer window. A targetOrigin that does not match the
// peer is dropped silently, and "*" matches any peer.
type Port interface {
	PostMessage(data, targetOrigin string) error
}

// Window is one side of the channel. All listeners and enqueued tasks run on a single
// goroutine in arrival order, so controller state touched only from the loop never
// races with message handling.
type Window struct {
	origin string

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    uint64
	pending   []func()
	closed    bool

	wake chan struct{}
	done chan struct{}
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// NewWindow starts the event loop for a document served from origin.
func NewWindow(origin string) *Window {
	if o, err := OriginOf(origin); err == nil {
		origin = o
	}
	w := &Window{
		origin: origin,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Window) Origin() string { return w.origin }

// AddMessageListener registers fn and returns its removal func.
func (w *Window) AddMessageListener(fn Listener) func() {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.listeners = append(w.listeners, listenerEntry{id: id, fn: fn})
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, l := range w.listeners {
			if l.id == id {
				w.listeners = append(w.listeners[:i:i], w.listeners[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (w *Window) ListenerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// Deliver queues ev for dispatch to every listener registered at dispatch time.
func (w *Window) Deliver(ev MessageEvent) bool {
	return w.Enqueue(func() {
		w.mu.Lock()
		snapshot := make([]listenerEntry, len(w.listeners))
		copy(snapshot, w.listeners)
		w.mu.Unlock()

		for _, l := range snapshot {
			l.fn(ev)
		}
	})
}

// Enqueue schedules task on the loop. It never blocks, and reports false once closed.
func (w *Window) Enqueue(task func()) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = append(w.pending, task)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync blocks until every task queued before the call has run.
func (w *Window) Sync() {
	done := make(chan struct{})
	if !w.Enqueue(func() { close(done) }) {
		return
	}
	select {
	case <-done:
	case <-w.done:
	}
}

// Close stops the loop. Queued tasks that have not started are discarded.
func (w *Window) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.pending = nil
	w.mu.Unlock()
	close(w.done)
}

func (w *Window) loop() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}

		for {
			w.mu.Lock()
			if w.closed || len(w.pending) == 0 {
				w.mu.Unlock()
				break
			}
			task := w.pending[0]
			w.pending = w.pending[1:]
			w.mu.Unlock()

			task()
		}
	}
}

// Link is an in-process port delivering straight into the target window's loop.
type Link struct {
	target       *Window
	sourceOrigin string
}

// NewLink creates a port from a document at sourceOrigin toward target.
func NewLink(target *Window, sourceOrigin string) *Link {
	if o, err := OriginOf(sourceOrigin); err == nil {
		sourceOrigin = o
	}
	return &Link{target: target, sourceOrigin: sourceOrigin}
}

func (l *Link) PostMessage(data, targetOrigin string) error {
	if !TargetMatches(targetOrigin, l.target.Origin()) {
		return nil
	}
	if !l.target.Deliver(MessageEvent{Data: data, Origin: l.sourceOrigin}) {
		return ErrWindowClosed
	}
	return nil
}

// TargetMatches applies postMessage targetOrigin rules against the receiver's origin.
func TargetMatches(targetOrigin, receiverOrigin string) bool {
	if targetOrigin == "*" {
		return true
	}
	return SameOrigin(targetOrigin, receiverOrigin)
}
