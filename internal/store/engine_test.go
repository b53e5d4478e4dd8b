package store

import (
	"sort"
	"testing"
	"time"

	"github.com/heliosdb/heliosdb/internal/model"
)

func TestTypeAcrossDatasets(t *testing.T) {
	e := NewEngine(10*time.Millisecond)
	e.Set("str", "v", nil)
	e.RPush("list", []string{"a"})
	e.XAdd("stream", "1-1", model.Fields{})

	cases := []struct {
		key  string
		want model.Kind
	}{
		{"str", model.KindString},
		{"list", model.KindList},
		{"stream", model.KindStream},
		{"missing", model.KindNone},
	}

	for _, tc := range cases {
		if got := e.Type(tc.key); got != tc.want {
			t.Errorf("Type(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestKeysGlobMatchesAcrossDatasets(t *testing.T) {
	e := NewEngine(10*time.Millisecond)
	e.Set("user:1", "v", nil)
	e.RPush("user:2", []string{"a"})
	e.XAdd("other", "1-1", model.Fields{})

	keys := e.Keys("user:*")
	sort.Strings(keys)

	want := []string{"user:1", "user:2"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Fatalf("Keys(user:*) = %v, want %v", keys, want)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e := NewEngine(10*time.Millisecond)

	future := time.Now().Add(time.Hour)
	e.Set("str", "v", &future)
	e.RPush("list", []string{"a", "b"})
	e.XAdd("stream", "1-1", model.Fields{{Name: "f", Value: "v"}})

	snap := e.Snapshot()

	restored := NewEngine(10*time.Millisecond)
	restored.Restore(snap)

	if v, ok := restored.Get("str"); !ok || v != "v" {
		t.Fatalf("restored string = (%q, %v), want (v, true)", v, ok)
	}
	if got := restored.LRange("list", 0, -1); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("restored list = %v, want [a b]", got)
	}
	if tail := restored.StreamTail("stream"); tail.String() != "1-1" {
		t.Fatalf("restored stream tail = %v, want 1-1", tail)
	}
}

func TestSnapshotExcludesExpiredStrings(t *testing.T) {
	e := NewEngine(10*time.Millisecond)
	past := time.Now().Add(-time.Hour)
	e.Set("gone", "v", &past)

	snap := e.Snapshot()
	if len(snap.Strings) != 0 {
		t.Fatalf("Snapshot should exclude expired strings, got %v", snap.Strings)
	}
}
