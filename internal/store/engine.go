// Package store implements the data engine: the string, list and
// stream datasets, their background reapers, and the single owning
// point for the block coordinator. Every exported method is only ever
// safe to call from the single executor goroutine that also drives
// internal/blocking — see internal/server's executor loop.
package store

import (
	"path"
	"time"

	"github.com/heliosdb/heliosdb/internal/blocking"
	"github.com/heliosdb/heliosdb/internal/domain"
	"github.com/heliosdb/heliosdb/internal/model"
)

type stringEntry struct {
	value     string
	expiresAt *time.Time
}

func (e stringEntry) expired(now time.Time) bool {
	return e.expiresAt != nil && e.expiresAt.Before(now)
}

type streamData struct {
	entries []model.StreamEntry
}

func (s *streamData) tail() model.StreamID {
	if len(s.entries) == 0 {
		return model.StreamID{}
	}
	return s.entries[len(s.entries)-1].ID
}

// Engine is the in-memory data engine described in spec §3/§4.B-D. It
// implements domain.State.
type Engine struct {
	strings map[string]stringEntry
	lists   map[string][]string
	streams map[string]*streamData

	coordinator *blocking.Coordinator
}

// NewEngine creates an empty data engine. blockResolution is the
// cadence at which the caller will invoke AdvanceBlocking (spec §5's
// BLPOP/XREAD-timeout reaper, recommended 10ms).
func NewEngine(blockResolution time.Duration) *Engine {
	return &Engine{
		strings:     map[string]stringEntry{},
		lists:       map[string][]string{},
		streams:     map[string]*streamData{},
		coordinator: blocking.NewCoordinator(blockResolution),
	}
}

// Keys returns every key across all three datasets matching pattern,
// using shell glob semantics (path.Match), as the teacher does for its
// single value map.
func (e *Engine) Keys(pattern string) []string {
	now := time.Now()
	var keys []string

	for k, v := range e.strings {
		if v.expired(now) {
			continue
		}
		if matched, _ := path.Match(pattern, k); matched {
			keys = append(keys, k)
		}
	}
	for k := range e.lists {
		if matched, _ := path.Match(pattern, k); matched {
			keys = append(keys, k)
		}
	}
	for k := range e.streams {
		if matched, _ := path.Match(pattern, k); matched {
			keys = append(keys, k)
		}
	}

	return keys
}

// Type reports which dataset key belongs to, or model.KindNone if it
// is absent (or has lazily expired).
func (e *Engine) Type(key string) model.Kind {
	if v, ok := e.strings[key]; ok && !v.expired(time.Now()) {
		return model.KindString
	}
	if _, ok := e.lists[key]; ok {
		return model.KindList
	}
	if _, ok := e.streams[key]; ok {
		return model.KindStream
	}
	return model.KindNone
}

// ReapExpiredStrings walks the string map and drops expired entries.
// Intended to be called every ~1s per spec §4.B/§5.
func (e *Engine) ReapExpiredStrings() {
	now := time.Now()
	for k, v := range e.strings {
		if v.expired(now) {
			delete(e.strings, k)
		}
	}
}

// AdvanceBlocking advances the block coordinator's timeout sweep by
// one resolution tick. Intended to be called every ~10ms per spec §5.
func (e *Engine) AdvanceBlocking() {
	e.coordinator.Tick()
}

// BlockOnList registers a BLPOP wait. See internal/blocking.Coordinator.BlockList.
func (e *Engine) BlockOnList(key string, timeout time.Duration, hasDeadline bool, onElement func(string), onTimeout func()) domain.BlockToken {
	return e.coordinator.BlockList(key, timeout, hasDeadline, onElement, onTimeout)
}

// BlockOnStreams registers an XREAD BLOCK wait across one or more
// streams, each already resolved to a concrete last-seen ID.
func (e *Engine) BlockOnStreams(reqs []domain.StreamReadRequest, timeout time.Duration, hasDeadline bool, onEntry func(string, model.StreamEntry), onTimeout func()) domain.BlockToken {
	keys := make([]string, len(reqs))
	resolved := make(map[string]model.StreamID, len(reqs))
	for i, r := range reqs {
		keys[i] = r.Key
		resolved[r.Key] = r.After
	}
	return e.coordinator.BlockStreams(keys, resolved, timeout, hasDeadline, onEntry, onTimeout)
}

func (e *Engine) CancelBlocking(token domain.BlockToken) {
	e.coordinator.Cancel(token)
}

// Snapshot captures every live key across all three datasets for
// internal/rdb to serialize. Expired strings are excluded.
func (e *Engine) Snapshot() model.Snapshot {
	now := time.Now()
	snap := model.Snapshot{}

	for k, v := range e.strings {
		if v.expired(now) {
			continue
		}
		var expiresAt int64
		if v.expiresAt != nil {
			expiresAt = v.expiresAt.UnixMilli()
		}
		snap.Strings = append(snap.Strings, model.SnapshotString{
			Key:             k,
			Value:           v.value,
			ExpiresAtUnixMs: expiresAt,
		})
	}
	for k, v := range e.lists {
		values := make([]string, len(v))
		copy(values, v)
		snap.Lists = append(snap.Lists, model.SnapshotList{Key: k, Values: values})
	}
	for k, v := range e.streams {
		entries := make([]model.StreamEntry, len(v.entries))
		copy(entries, v.entries)
		snap.Streams = append(snap.Streams, model.SnapshotStream{Key: k, Entries: entries})
	}

	return snap
}

// Restore replaces the engine's contents with snap, used at startup
// when loading a dump.rdb file. Blocked waiters, if any, are left
// untouched (Restore is only ever called before the server starts
// accepting connections).
func (e *Engine) Restore(snap model.Snapshot) {
	e.strings = map[string]stringEntry{}
	e.lists = map[string][]string{}
	e.streams = map[string]*streamData{}

	now := time.Now()
	for _, s := range snap.Strings {
		entry := stringEntry{value: s.Value}
		if s.ExpiresAtUnixMs != 0 {
			t := time.UnixMilli(s.ExpiresAtUnixMs)
			if t.Before(now) {
				continue
			}
			entry.expiresAt = &t
		}
		e.strings[s.Key] = entry
	}
	for _, l := range snap.Lists {
		values := make([]string, len(l.Values))
		copy(values, l.Values)
		e.lists[l.Key] = values
	}
	for _, s := range snap.Streams {
		entries := make([]model.StreamEntry, len(s.Entries))
		copy(entries, s.Entries)
		e.streams[s.Key] = &streamData{entries: entries}
	}
}
