package blocking

import (
	"testing"
	"time"

	"github.com/heliosdb/heliosdb/internal/model"
)

func newTestList(values ...string) func() (string, bool) {
	return func() (string, bool) {
		if len(values) == 0 {
			return "", false
		}
		v := values[0]
		values = values[1:]
		return v, true
	}
}

func TestDrainListDeliversFIFO(t *testing.T) {
	c := NewCoordinator(10 * time.Millisecond)

	var got []string
	c.BlockList("k", 0, false, func(el string) { got = append(got, "first:"+el) }, nil)
	c.BlockList("k", 0, false, func(el string) { got = append(got, "second:"+el) }, nil)

	c.DrainList("k", newTestList("a", "b"))

	if len(got) != 2 || got[0] != "first:a" || got[1] != "second:b" {
		t.Fatalf("got %v, want [first:a second:b]", got)
	}
}

func TestDrainListStopsWhenListExhausted(t *testing.T) {
	c := NewCoordinator(10 * time.Millisecond)

	fired := 0
	c.BlockList("k", 0, false, func(string) { fired++ }, nil)
	c.BlockList("k", 0, false, func(string) { fired++ }, nil)

	c.DrainList("k", newTestList("only"))

	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if len(c.listWaiters["k"]) != 1 {
		t.Fatalf("remaining waiters = %d, want 1", len(c.listWaiters["k"]))
	}
}

func TestListTimeoutFiresOnce(t *testing.T) {
	c := NewCoordinator(10 * time.Millisecond)

	timeouts := 0
	c.BlockList("k", 20*time.Millisecond, true, nil, func() { timeouts++ })

	c.Tick()
	c.Tick()
	if timeouts != 0 {
		t.Fatalf("timeouts = %d after 2 ticks, want 0", timeouts)
	}

	c.Tick()
	if timeouts != 1 {
		t.Fatalf("timeouts = %d after 3 ticks, want 1", timeouts)
	}

	// A late RPUSH must not also deliver to an already-timed-out waiter.
	c.DrainList("k", newTestList("late"))
	if timeouts != 1 {
		t.Fatalf("timeouts = %d after late push, want still 1", timeouts)
	}
}

func TestCancelRemovesGhostWaiter(t *testing.T) {
	c := NewCoordinator(10 * time.Millisecond)

	fired := false
	tok := c.BlockList("k", 0, false, func(string) { fired = true }, nil)
	c.Cancel(tok)

	c.DrainList("k", newTestList("x"))
	if fired {
		t.Fatalf("cancelled waiter must not fire")
	}
	if _, ok := c.byToken[tok]; ok {
		t.Fatalf("cancelled token must be removed from byToken")
	}
}

func TestNotifyStreamFulfillsOnlyGreaterID(t *testing.T) {
	c := NewCoordinator(10 * time.Millisecond)

	resolved := map[string]model.StreamID{"s": {Ms: 5, Seq: 0}}
	var got model.StreamEntry
	fired := 0
	c.BlockStreams([]string{"s"}, resolved, 0, false, func(key string, e model.StreamEntry) {
		fired++
		got = e
	}, nil)

	// Not greater than resolved -> must not fire.
	c.NotifyStream("s", model.StreamEntry{ID: model.StreamID{Ms: 5, Seq: 0}})
	if fired != 0 {
		t.Fatalf("fired = %d, want 0 for non-greater ID", fired)
	}

	c.NotifyStream("s", model.StreamEntry{ID: model.StreamID{Ms: 6, Seq: 0}})
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if got.ID.Ms != 6 {
		t.Fatalf("delivered entry ID = %v, want ms=6", got.ID)
	}
}

func TestNotifyStreamRemovesWaiterFromOtherKeys(t *testing.T) {
	c := NewCoordinator(10 * time.Millisecond)

	resolved := map[string]model.StreamID{"a": {}, "b": {}}
	fired := 0
	c.BlockStreams([]string{"a", "b"}, resolved, 0, false, func(string, model.StreamEntry) { fired++ }, nil)

	c.NotifyStream("a", model.StreamEntry{ID: model.StreamID{Ms: 1, Seq: 0}})
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	if len(c.streamWaiters["b"]) != 0 {
		t.Fatalf("waiter must have been removed from key b too")
	}
}
