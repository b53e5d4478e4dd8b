package commands

import (
	"errors"
	"strconv"
	"time"

	"github.com/heliosdb/heliosdb/internal/domain"
	"github.com/heliosdb/heliosdb/internal/protocol"
)

// Not present in the teacher, which never models lists at all; built
// fresh in its idiom and grounded on the slice-backed list stores in
// other_examples/Vperiodt-GoRedis__store.go and
// other_examples/lhiradi-Redis-go__store.go (see DESIGN.md).

// RPUSH key value [value ...]

type RPushHandler struct {
	BaseHandler
	key    string
	values []string
}

func NewRPushHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) < 2 {
		return nil, errors.New("ERR wrong number of arguments for 'RPUSH' command")
	}
	return &RPushHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
		values:      cmd.Arguments[1:],
	}, nil
}

func (h *RPushHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	n := state.RPush(h.key, h.values)
	reply(protocol.EncodeInteger(n))
	return Replied, nil
}

func (h *RPushHandler) Mutability() CommandMutability {
	return CmdRead | CmdWrite
}

// LPUSH key value [value ...]

type LPushHandler struct {
	BaseHandler
	key    string
	values []string
}

func NewLPushHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) < 2 {
		return nil, errors.New("ERR wrong number of arguments for 'LPUSH' command")
	}
	return &LPushHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
		values:      cmd.Arguments[1:],
	}, nil
}

func (h *LPushHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	n := state.LPush(h.key, h.values)
	reply(protocol.EncodeInteger(n))
	return Replied, nil
}

func (h *LPushHandler) Mutability() CommandMutability {
	return CmdRead | CmdWrite
}

// LPOP key [count]

type LPopHandler struct {
	BaseHandler
	key      string
	hasCount bool
	count    int
}

func NewLPopHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) < 1 || len(cmd.Arguments) > 2 {
		return nil, errors.New("ERR wrong number of arguments for 'LPOP' command")
	}

	handler := LPopHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
	}

	if len(cmd.Arguments) == 2 {
		count, err := strconv.Atoi(cmd.Arguments[1])
		if err != nil {
			return nil, errors.New("ERR value is not an integer or out of range")
		}
		handler.hasCount = true
		handler.count = count
	}

	return &handler, nil
}

func (h *LPopHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	if !h.hasCount {
		v, ok := state.LPop(h.key)
		if !ok {
			reply(protocol.EncodeNullBulkString())
		} else {
			reply(protocol.EncodeBulkString(v))
		}
		return Replied, nil
	}

	popped, err := state.LPopCount(h.key, h.count)
	if err != nil {
		return Replied, err
	}
	reply(protocol.EncodeArray(popped))
	return Replied, nil
}

func (h *LPopHandler) Mutability() CommandMutability {
	return CmdRead | CmdWrite
}

// LRANGE key start end

type LRangeHandler struct {
	BaseHandler
	key        string
	start, end int
}

func NewLRangeHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 3 {
		return nil, errors.New("ERR wrong number of arguments for 'LRANGE' command")
	}

	start, err := strconv.Atoi(cmd.Arguments[1])
	if err != nil {
		return nil, errors.New("ERR value is not an integer or out of range")
	}
	end, err := strconv.Atoi(cmd.Arguments[2])
	if err != nil {
		return nil, errors.New("ERR value is not an integer or out of range")
	}

	return &LRangeHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
		start:       start,
		end:         end,
	}, nil
}

func (h *LRangeHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	reply(protocol.EncodeArray(state.LRange(h.key, h.start, h.end)))
	return Replied, nil
}

func (h *LRangeHandler) Mutability() CommandMutability {
	return CmdRead
}

// LLEN key

type LLenHandler struct {
	BaseHandler
	key string
}

func NewLLenHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 1 {
		return nil, errors.New("ERR wrong number of arguments for 'LLEN' command")
	}
	return &LLenHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
	}, nil
}

func (h *LLenHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	reply(protocol.EncodeInteger(state.LLen(h.key)))
	return Replied, nil
}

func (h *LLenHandler) Mutability() CommandMutability {
	return CmdRead
}

// BLPOP key timeout_seconds
//
// On an immediate hit, pops synchronously. Otherwise registers a wait
// with the block coordinator (spec §4.E) and defers the reply.

type BlpopHandler struct {
	BaseHandler
	key            string
	timeoutSeconds float64
	token          domain.BlockToken
}

func NewBlpopHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 2 {
		return nil, errors.New("ERR wrong number of arguments for 'BLPOP' command")
	}

	timeout, err := strconv.ParseFloat(cmd.Arguments[1], 64)
	if err != nil || timeout < 0 {
		return nil, errors.New("ERR timeout is not a float or out of range")
	}

	return &BlpopHandler{
		BaseHandler:    BaseHandler{command: cmd},
		key:            cmd.Arguments[0],
		timeoutSeconds: timeout,
	}, nil
}

func encodeKeyValuePair(key, value string) string {
	return protocol.EncodeEncodedArray([]string{
		protocol.EncodeBulkString(key),
		protocol.EncodeBulkString(value),
	})
}

func (h *BlpopHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	if v, ok := state.LPop(h.key); ok {
		reply(encodeKeyValuePair(h.key, v))
		return Replied, nil
	}

	hasDeadline := h.timeoutSeconds > 0
	timeout := time.Duration(h.timeoutSeconds * float64(time.Second))

	h.token = state.BlockOnList(h.key, timeout, hasDeadline,
		func(element string) {
			reply(encodeKeyValuePair(h.key, element))
		},
		func() {
			reply(protocol.EncodeNullBulkString())
		},
	)

	return Deferred, nil
}

func (h *BlpopHandler) Mutability() CommandMutability {
	return CmdRead | CmdWrite
}

func (h *BlpopHandler) Token() domain.BlockToken {
	return h.token
}
