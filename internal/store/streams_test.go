package store

import (
	"testing"
	"time"

	"github.com/heliosdb/heliosdb/internal/domain"
	"github.com/heliosdb/heliosdb/internal/model"
)

func TestXAddLiteralIDMonotonicity(t *testing.T) {
	e := NewEngine(10*time.Millisecond)

	id, err := e.XAdd("s", "1-1", model.Fields{{Name: "f", Value: "v"}})
	if err != nil || id.String() != "1-1" {
		t.Fatalf("XAdd(1-1) = (%v, %v), want (1-1, nil)", id, err)
	}

	_, err = e.XAdd("s", "1-1", model.Fields{{Name: "f", Value: "v"}})
	if err == nil || err.Error() != "ERR The ID specified in XADD is equal or smaller than the target stream top item" {
		t.Fatalf("repeated XAdd err = %v, want the spec 'equal or smaller' error", err)
	}
}

func TestXAddRejectsZeroZero(t *testing.T) {
	e := NewEngine(10*time.Millisecond)

	_, err := e.XAdd("s", "0-0", model.Fields{{Name: "f", Value: "v"}})
	if err == nil || err.Error() != "ERR The ID specified in XADD must be greater than 0-0" {
		t.Fatalf("XAdd(0-0) err = %v, want the spec 0-0 error", err)
	}
}

func TestXAddInvalidFormat(t *testing.T) {
	e := NewEngine(10*time.Millisecond)

	_, err := e.XAdd("s", "not-an-id-at-all-nope", model.Fields{})
	if err == nil {
		t.Fatalf("expected invalid format error")
	}
}

func TestXAddSeqWildcardFillsFromTail(t *testing.T) {
	e := NewEngine(10*time.Millisecond)

	id, err := e.XAdd("s", "5-*", model.Fields{})
	if err != nil || id.String() != "5-0" {
		t.Fatalf("first 5-* = (%v, %v), want (5-0, nil)", id, err)
	}

	id, err = e.XAdd("s", "5-*", model.Fields{})
	if err != nil || id.String() != "5-1" {
		t.Fatalf("second 5-* = (%v, %v), want (5-1, nil)", id, err)
	}
}

func TestXAddZeroMsSeqWildcardStartsAtOne(t *testing.T) {
	e := NewEngine(10*time.Millisecond)

	id, err := e.XAdd("s", "0-*", model.Fields{})
	if err != nil || id.String() != "0-1" {
		t.Fatalf("0-* on empty stream = (%v, %v), want (0-1, nil) per S2", id, err)
	}
}

func TestXRangeBounds(t *testing.T) {
	e := NewEngine(10*time.Millisecond)
	e.XAdd("s", "1-1", model.Fields{{Name: "f", Value: "1"}})
	e.XAdd("s", "2-1", model.Fields{{Name: "f", Value: "2"}})
	e.XAdd("s", "3-1", model.Fields{{Name: "f", Value: "3"}})

	start, _ := ParseRangeBound("-")
	end, _ := ParseRangeBound("+")
	all := e.XRange("s", start, end)
	if len(all) != 3 {
		t.Fatalf("XRange(- +) returned %d entries, want 3", len(all))
	}

	start, _ = ParseRangeBound("2")
	end, _ = ParseRangeBound("+")
	partial := e.XRange("s", start, end)
	if len(partial) != 2 || partial[0].ID.String() != "2-1" {
		t.Fatalf("XRange(2 +) = %v, want entries starting at 2-1", partial)
	}
}

func TestXRangeUnknownKeyIsEmpty(t *testing.T) {
	e := NewEngine(10*time.Millisecond)
	start, _ := ParseRangeBound("-")
	end, _ := ParseRangeBound("+")
	if got := e.XRange("missing", start, end); len(got) != 0 {
		t.Fatalf("XRange on unknown key = %v, want empty", got)
	}
}

func TestXReadReturnsOnlyStrictlyGreater(t *testing.T) {
	e := NewEngine(10*time.Millisecond)
	e.XAdd("s", "1-1", model.Fields{})
	e.XAdd("s", "2-1", model.Fields{})

	results := e.XRead([]domain.StreamReadRequest{{Key: "s", After: model.StreamID{Ms: 1, Seq: 1}}})
	entries := results["s"]
	if len(entries) != 1 || entries[0].ID.String() != "2-1" {
		t.Fatalf("XRead after 1-1 = %v, want only 2-1", entries)
	}
}

func TestXAddWakesBlockedStreamReader(t *testing.T) {
	e := NewEngine(10*time.Millisecond)

	var got model.StreamEntry
	fired := 0
	e.BlockOnStreams(
		[]domain.StreamReadRequest{{Key: "s", After: model.StreamID{}}},
		0, false,
		func(key string, entry model.StreamEntry) { fired++; got = entry },
		nil,
	)

	id, err := e.XAdd("s", "1-1", model.Fields{{Name: "f", Value: "v"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if got.ID != id {
		t.Fatalf("delivered entry ID = %v, want %v", got.ID, id)
	}
}
