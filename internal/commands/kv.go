package commands

import (
	"errors"
	"strings"
	"time"

	"github.com/heliosdb/heliosdb/internal/domain"
	"github.com/heliosdb/heliosdb/internal/protocol"
)

// GET key

type GetHandler struct {
	BaseHandler
	key string
}

func NewGetHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 1 {
		return nil, errors.New("ERR wrong number of arguments for 'GET' command")
	}
	return &GetHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
	}, nil
}

func (h *GetHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	value, exists := state.Get(h.key)

	if exists {
		reply(protocol.EncodeBulkString(value))
	} else {
		reply(protocol.EncodeNullBulkString())
	}

	return Replied, nil
}

func (h *GetHandler) Mutability() CommandMutability {
	return CmdRead
}

// SET key value [PX milliseconds]
//
// Narrower than real Redis SET: this design only recognizes PX. Any
// other third keyword is a syntax error (spec §4.B).

type SetHandler struct {
	BaseHandler

	key      string
	value    string
	duration *time.Duration
}

func NewSetHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) < 2 {
		return nil, errors.New("ERR wrong number of arguments for 'SET' command")
	}

	handler := SetHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
		value:       cmd.Arguments[1],
	}

	if len(cmd.Arguments) > 2 {
		if strings.ToUpper(cmd.Arguments[2]) != "PX" {
			return nil, errors.New("ERR syntax error")
		}

		ms, err := parseIntegerArgument("SET", cmd.Arguments[2:])
		if err != nil {
			return nil, err
		}
		duration := time.Duration(ms) * time.Millisecond
		handler.duration = &duration

		if len(cmd.Arguments) > 4 {
			return nil, errors.New("ERR syntax error")
		}
	}

	return &handler, nil
}

func (h *SetHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	var expiresAt *time.Time
	if h.duration != nil {
		t := time.Now().Add(*h.duration)
		expiresAt = &t
	}

	state.Set(h.key, h.value, expiresAt)

	reply(protocol.EncodeString("OK"))
	return Replied, nil
}

func (h *SetHandler) Mutability() CommandMutability {
	return CmdRead | CmdWrite
}

// KEYS pattern
//
// Not part of spec §4.G's recognized command list, but recovered from
// original_source/src/commands.cpp (see SPEC_FULL.md).

type KeysHandler struct {
	BaseHandler
	pattern string
}

func NewKeysHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 1 {
		return nil, errors.New("ERR wrong number of arguments for 'KEYS' command")
	}
	return &KeysHandler{
		BaseHandler: BaseHandler{command: cmd},
		pattern:     cmd.Arguments[0],
	}, nil
}

func (h *KeysHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	reply(protocol.EncodeArray(state.Keys(h.pattern)))
	return Replied, nil
}

func (h *KeysHandler) Mutability() CommandMutability {
	return CmdRead
}

// INCR key

type IncrHandler struct {
	BaseHandler
	key string
}

func NewIncrHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 1 {
		return nil, errors.New("ERR wrong number of arguments for 'INCR' command")
	}
	return &IncrHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
	}, nil
}

func (h *IncrHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	x, err := state.Incr(h.key)
	if err != nil {
		return Replied, err
	}

	reply(protocol.EncodeInteger(int(x)))
	return Replied, nil
}

func (h *IncrHandler) Mutability() CommandMutability {
	return CmdRead | CmdWrite
}
