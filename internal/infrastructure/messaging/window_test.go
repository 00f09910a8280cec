package messaging

import (
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	events []MessageEvent
}

func (r *recorder) listen(ev MessageEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []MessageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MessageEvent(nil), r.events...)
}

func TestWindowDeliversInOrder(t *testing.T) {
	w := NewWindow("http://localhost:5173")
	defer w.Close()

	rec := &recorder{}
	w.AddMessageListener(rec.listen)

	for _, d := range []string{"a", "b", "c"} {
		w.Deliver(MessageEvent{Data: d, Origin: "http://host"})
	}
	w.Sync()

	got := rec.all()
	if len(got) != 3 || got[0].Data != "a" || got[1].Data != "b" || got[2].Data != "c" {
		t.Fatalf("events out of order: %+v", got)
	}
}

func TestWindowRemoveListener(t *testing.T) {
	w := NewWindow("http://localhost:5173")
	defer w.Close()

	rec := &recorder{}
	remove := w.AddMessageListener(rec.listen)
	if w.ListenerCount() != 1 {
		t.Fatal("listener not registered")
	}
	remove()
	remove()
	if w.ListenerCount() != 0 {
		t.Fatal("listener not removed")
	}

	w.Deliver(MessageEvent{Data: "x"})
	w.Sync()
	if len(rec.all()) != 0 {
		t.Fatal("removed listener still invoked")
	}
}

func TestWindowTasksMayEnqueueFromLoop(t *testing.T) {
	w := NewWindow("http://localhost:3000")
	defer w.Close()

	var order []int
	w.Enqueue(func() {
		order = append(order, 1)
		w.Enqueue(func() { order = append(order, 3) })
		order = append(order, 2)
	})
	w.Sync()
	w.Sync()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v", order)
	}
}

func TestClosedWindowRejectsWork(t *testing.T) {
	w := NewWindow("http://localhost:3000")
	w.Close()
	w.Close()
	if w.Enqueue(func() {}) {
		t.Fatal("closed window accepted a task")
	}
	w.Sync()
}

func TestLinkTargetOrigin(t *testing.T) {
	frame := NewWindow("http://localhost:5173")
	defer frame.Close()
	rec := &recorder{}
	frame.AddMessageListener(rec.listen)

	link := NewLink(frame, "http://localhost:3000/")
	if err := link.PostMessage("to-frame", "http://localhost:5173/"); err != nil {
		t.Fatal(err)
	}
	if err := link.PostMessage("wildcard", "*"); err != nil {
		t.Fatal(err)
	}
	if err := link.PostMessage("dropped", "https://evil.example"); err != nil {
		t.Fatal(err)
	}
	frame.Sync()

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %+v", got)
	}
	if got[0].Origin != "http://localhost:3000" {
		t.Fatalf("sender origin = %q", got[0].Origin)
	}

	frame.Close()
	if err := link.PostMessage("late", "*"); err != ErrWindowClosed {
		t.Fatalf("post to closed window err = %v", err)
	}
}
