package commands

import (
	"errors"
	"strings"
	"time"

	"github.com/heliosdb/heliosdb/internal/domain"
	"github.com/heliosdb/heliosdb/internal/model"
	"github.com/heliosdb/heliosdb/internal/protocol"
	"github.com/heliosdb/heliosdb/internal/store"
)

func encodeStreamEntry(entry model.StreamEntry) string {
	fields := make([]string, 0, len(entry.Fields)*2)
	for _, f := range entry.Fields {
		fields = append(fields, f.Name, f.Value)
	}

	return protocol.EncodeEncodedArray([]string{
		protocol.EncodeString(entry.ID.String()),
		protocol.EncodeArray(fields),
	})
}

// XADD key id field value [field value ...]

type XAddHandler struct {
	BaseHandler
	key    string
	rawID  string
	fields model.Fields
}

func NewXAddHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) < 4 {
		return nil, errors.New("ERR wrong number of arguments for 'XADD' command")
	}

	key := cmd.Arguments[0]
	rawID := cmd.Arguments[1]

	rest := cmd.Arguments[2:]
	if len(rest)%2 != 0 {
		return nil, errors.New("ERR wrong number of arguments for 'XADD' command")
	}

	fields := make(model.Fields, 0, len(rest)/2)
	for i := 0; i+1 < len(rest); i += 2 {
		fields = append(fields, model.Field{Name: rest[i], Value: rest[i+1]})
	}

	return &XAddHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         key,
		rawID:       rawID,
		fields:      fields,
	}, nil
}

func (h *XAddHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	id, err := state.XAdd(h.key, h.rawID, h.fields)
	if err != nil {
		return Replied, err
	}

	reply(protocol.EncodeBulkString(id.String()))
	return Replied, nil
}

func (h *XAddHandler) Mutability() CommandMutability {
	return CmdRead | CmdWrite
}

// XRANGE key start end

type XRangeHandler struct {
	BaseHandler
	key              string
	rawStart, rawEnd string
}

func NewXRangeHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 3 {
		return nil, errors.New("ERR wrong number of arguments for 'XRANGE' command")
	}
	return &XRangeHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
		rawStart:    cmd.Arguments[1],
		rawEnd:      cmd.Arguments[2],
	}, nil
}

func (h *XRangeHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	start, err := store.ParseRangeBound(h.rawStart)
	if err != nil {
		return Replied, err
	}
	end, err := store.ParseRangeBound(h.rawEnd)
	if err != nil {
		return Replied, err
	}

	entries := state.XRange(h.key, start, end)
	encoded := make([]string, len(entries))
	for i, e := range entries {
		encoded[i] = encodeStreamEntry(e)
	}

	reply(protocol.EncodeEncodedArray(encoded))
	return Replied, nil
}

func (h *XRangeHandler) Mutability() CommandMutability {
	return CmdRead
}

// XREAD [BLOCK ms] STREAMS key [key ...] id [id ...]

type XReadHandler struct {
	BaseHandler

	hasBlock  bool
	blockMs   int64
	keys      []string
	rawIDs    []string
	tokenHold domain.BlockToken
}

func NewXReadHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) < 3 {
		return nil, errors.New("ERR wrong number of arguments for 'XREAD' command")
	}

	offset := 0
	hasBlock := false
	var blockMs int64

	if strings.ToUpper(cmd.Arguments[0]) == "BLOCK" {
		ms, err := parseIntegerArgument("XREAD", cmd.Arguments)
		if err != nil {
			return nil, err
		}
		if ms < 0 {
			return nil, errors.New("ERR timeout is negative")
		}
		hasBlock = true
		blockMs = ms
		offset += 2
	}

	if offset >= len(cmd.Arguments) || strings.ToUpper(cmd.Arguments[offset]) != "STREAMS" {
		return nil, errors.New("ERR wrong number of arguments for 'XREAD' command")
	}
	offset++

	remaining := cmd.Arguments[offset:]
	if len(remaining) == 0 || len(remaining)%2 != 0 {
		return nil, errors.New("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}

	pairs := len(remaining) / 2
	keys := make([]string, pairs)
	rawIDs := make([]string, pairs)
	for i := 0; i < pairs; i++ {
		keys[i] = remaining[i]
		rawIDs[i] = remaining[pairs+i]
	}

	return &XReadHandler{
		BaseHandler: BaseHandler{command: cmd},
		hasBlock:    hasBlock,
		blockMs:     blockMs,
		keys:        keys,
		rawIDs:      rawIDs,
	}, nil
}

// resolveReadRequests turns each (key, raw id) pair into a
// domain.StreamReadRequest, resolving "$" against the key's current
// tail at call time so no sentinel value ever reaches a comparison
// (spec §9's open question on the $-sentinel).
func resolveReadRequests(state domain.State, keys, rawIDs []string) ([]domain.StreamReadRequest, error) {
	reqs := make([]domain.StreamReadRequest, len(keys))
	for i, key := range keys {
		if rawIDs[i] == "$" {
			reqs[i] = domain.StreamReadRequest{Key: key, After: state.StreamTail(key)}
			continue
		}

		id, err := store.ParseRangeBound(rawIDs[i])
		if err != nil {
			return nil, err
		}
		reqs[i] = domain.StreamReadRequest{Key: key, After: id}
	}
	return reqs, nil
}

func encodeXReadReply(order []string, results map[string][]model.StreamEntry) string {
	var perStream []string
	for _, key := range order {
		entries, ok := results[key]
		if !ok || len(entries) == 0 {
			continue
		}

		encoded := make([]string, len(entries))
		for i, e := range entries {
			encoded[i] = encodeStreamEntry(e)
		}

		perStream = append(perStream, protocol.EncodeEncodedArray([]string{
			protocol.EncodeString(key),
			protocol.EncodeEncodedArray(encoded),
		}))
	}
	return protocol.EncodeEncodedArray(perStream)
}

func (h *XReadHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	reqs, err := resolveReadRequests(state, h.keys, h.rawIDs)
	if err != nil {
		return Replied, err
	}

	results := state.XRead(reqs)
	if len(results) > 0 {
		reply(encodeXReadReply(h.keys, results))
		return Replied, nil
	}

	if !h.hasBlock {
		reply(protocol.EncodeNullArray())
		return Replied, nil
	}

	hasDeadline := h.blockMs > 0
	timeout := time.Duration(h.blockMs) * time.Millisecond

	h.tokenHold = state.BlockOnStreams(reqs, timeout, hasDeadline,
		func(key string, entry model.StreamEntry) {
			reply(encodeXReadReply([]string{key}, map[string][]model.StreamEntry{key: {entry}}))
		},
		func() {
			reply(protocol.EncodeNullArray())
		},
	)

	return Deferred, nil
}

func (h *XReadHandler) Mutability() CommandMutability {
	return CmdRead
}

func (h *XReadHandler) Token() domain.BlockToken {
	return h.tokenHold
}
