package performance

import (
	"errors"
	"testing"
)

func TestTrackerAggregates(t *testing.T) {
	tr := NewTracker(10)

	ok := tr.StartOperation("post_init_request", "wd-1")
	ok.SetSuccess(true)
	ok.Complete()
	ok.Complete()

	failed := tr.StartOperation("post_init_request", "wd-2")
	failed.SetError(errors.New("bad hash"))
	failed.Complete()

	s := tr.GetStats("post_init_request")
	if s.Count != 2 || s.Failures != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if got := tr.GetRecent("wd-1"); len(got) != 1 || got[0].WidgetID != "wd-1" {
		t.Fatalf("unexpected recent markers %+v", got)
	}
}

func TestTrackerBoundsHistory(t *testing.T) {
	tr := NewTracker(2)
	for i := 0; i < 5; i++ {
		m := tr.StartOperation("op", "wd-1")
		m.SetSuccess(true)
		m.Complete()
	}
	if got := len(tr.GetRecent("")); got != 2 {
		t.Fatalf("history length %d", got)
	}
	if tr.GetStats("op").Count != 5 {
		t.Fatalf("aggregate should count every marker")
	}
}

func TestAllStatsCopies(t *testing.T) {
	tr := NewTracker(10)
	for _, op := range []string{"a", "b", "a"} {
		m := tr.StartOperation(op, "wd-1")
		m.SetSuccess(true)
		m.Complete()
	}
	all := tr.AllStats()
	if len(all) != 2 || all["a"].Count != 2 || all["b"].Count != 1 {
		t.Fatalf("unexpected stats %+v", all)
	}
	s := all["a"]
	s.Count = 99
	if tr.GetStats("a").Count != 2 {
		t.Fatal("AllStats must return copies")
	}
}
