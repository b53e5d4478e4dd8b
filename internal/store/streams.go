package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/heliosdb/heliosdb/internal/domain"
	"github.com/heliosdb/heliosdb/internal/model"
)

var errInvalidEntryIDFormat = errors.New("ERR Invalid entry ID format")

// ParseRangeBound parses one XRANGE start/end argument: "-" (minimum),
// "+" (maximum), a bare "<ms>" (shorthand for "<ms>-0"), or a literal
// "<ms>-<seq>" (spec §4.D).
func ParseRangeBound(raw string) (model.StreamID, error) {
	switch raw {
	case "-":
		return model.StreamID{}, nil
	case "+":
		return model.MaxStreamID, nil
	}
	return parseBareOrFull(raw)
}

func parseBareOrFull(raw string) (model.StreamID, error) {
	if !strings.Contains(raw, "-") {
		ms, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return model.StreamID{}, errInvalidEntryIDFormat
		}
		return model.StreamID{Ms: ms}, nil
	}
	return parseStrictMsSeq(raw)
}

func parseStrictMsSeq(raw string) (model.StreamID, error) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return model.StreamID{}, errInvalidEntryIDFormat
	}
	ms, err1 := strconv.ParseUint(parts[0], 10, 64)
	seq, err2 := strconv.ParseUint(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return model.StreamID{}, errInvalidEntryIDFormat
	}
	return model.StreamID{Ms: ms, Seq: seq}, nil
}

// resolveXAddID implements the three ID shapes of spec §4.D, using the
// stream's current tail to fill in sequence-wildcard values. It does
// not itself reject "0-0" or non-monotonic IDs; XAdd does that once
// the ID is fully resolved, so both checks share one code path
// regardless of which shape produced the candidate ID.
func resolveXAddID(raw string, tail model.StreamID) (model.StreamID, error) {
	if raw == "*" {
		ms := uint64(time.Now().UnixMilli())
		var seq uint64
		if tail.Ms == ms {
			seq = tail.Seq + 1
		}
		return model.StreamID{Ms: ms, Seq: seq}, nil
	}

	if msPart, ok := strings.CutSuffix(raw, "-*"); ok {
		ms, err := strconv.ParseUint(msPart, 10, 64)
		if err != nil {
			return model.StreamID{}, errInvalidEntryIDFormat
		}

		var seq uint64
		switch {
		case tail.Ms == ms:
			seq = tail.Seq + 1
		case ms == 0:
			seq = 1
		}
		return model.StreamID{Ms: ms, Seq: seq}, nil
	}

	return parseStrictMsSeq(raw)
}

// XAdd resolves rawID against key's current tail, rejects 0-0 and
// non-monotonic IDs, appends the entry, and wakes any XREAD BLOCK
// waiters on key (spec §4.D/§4.E).
func (e *Engine) XAdd(key, rawID string, fields model.Fields) (model.StreamID, error) {
	s, ok := e.streams[key]
	if !ok {
		s = &streamData{}
		e.streams[key] = s
	}

	tail := s.tail()

	id, err := resolveXAddID(rawID, tail)
	if err != nil {
		return model.StreamID{}, err
	}
	if id.IsZero() {
		return model.StreamID{}, errors.New("ERR The ID specified in XADD must be greater than 0-0")
	}
	if !id.Greater(tail) {
		return model.StreamID{}, errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")
	}

	entry := model.StreamEntry{ID: id, Fields: fields}
	s.entries = append(s.entries, entry)

	e.coordinator.NotifyStream(key, entry)

	return id, nil
}

// XRange returns every entry of key's stream with start <= id <= end,
// in stream order. An unknown key yields an empty slice.
func (e *Engine) XRange(key string, start, end model.StreamID) []model.StreamEntry {
	s, ok := e.streams[key]
	if !ok {
		return nil
	}

	var out []model.StreamEntry
	for _, entry := range s.entries {
		if entry.ID.Compare(start) < 0 {
			continue
		}
		if entry.ID.Compare(end) > 0 {
			break
		}
		out = append(out, entry)
	}
	return out
}

// XRead collects, per requested stream, every entry with an ID
// strictly greater than the request's After ID.
func (e *Engine) XRead(reqs []domain.StreamReadRequest) map[string][]model.StreamEntry {
	results := map[string][]model.StreamEntry{}

	for _, req := range reqs {
		s, ok := e.streams[req.Key]
		if !ok {
			continue
		}

		var matched []model.StreamEntry
		for _, entry := range s.entries {
			if entry.ID.Greater(req.After) {
				matched = append(matched, entry)
			}
		}
		if len(matched) > 0 {
			results[req.Key] = matched
		}
	}

	return results
}

// StreamTail returns key's current tail ID, or the zero ID if the
// stream does not exist. Used to resolve XREAD's "$" shorthand.
func (e *Engine) StreamTail(key string) model.StreamID {
	s, ok := e.streams[key]
	if !ok {
		return model.StreamID{}
	}
	return s.tail()
}
