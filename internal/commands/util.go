package commands

import (
	"errors"

	"github.com/heliosdb/heliosdb/internal/domain"
	"github.com/heliosdb/heliosdb/internal/model"
	"github.com/heliosdb/heliosdb/internal/protocol"
)

// PING [message]

type PingHandler struct {
	BaseHandler
	message string
	hasArg  bool
}

func NewPingHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) > 1 {
		return nil, errors.New("ERR wrong number of arguments for 'PING' command")
	}
	h := PingHandler{BaseHandler: BaseHandler{command: cmd}}
	if len(cmd.Arguments) == 1 {
		h.hasArg = true
		h.message = cmd.Arguments[0]
	}
	return &h, nil
}

func (h *PingHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	if h.hasArg {
		reply(protocol.EncodeBulkString(h.message))
	} else {
		reply(protocol.EncodeString("PONG"))
	}
	return Replied, nil
}

func (h *PingHandler) Mutability() CommandMutability {
	return CmdRead
}

// ECHO message

type EchoHandler struct {
	BaseHandler
	message string
}

func NewEchoHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 1 {
		return nil, errors.New("ERR wrong number of arguments for 'ECHO' command")
	}
	return &EchoHandler{
		BaseHandler: BaseHandler{command: cmd},
		message:     cmd.Arguments[0],
	}, nil
}

func (h *EchoHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	reply(protocol.EncodeBulkString(h.message))
	return Replied, nil
}

func (h *EchoHandler) Mutability() CommandMutability {
	return CmdRead
}

// TYPE key

type TypeHandler struct {
	BaseHandler
	key string
}

func NewTypeHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 1 {
		return nil, errors.New("ERR wrong number of arguments for 'TYPE' command")
	}
	return &TypeHandler{
		BaseHandler: BaseHandler{command: cmd},
		key:         cmd.Arguments[0],
	}, nil
}

func (h *TypeHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	reply(protocol.EncodeString(state.Type(h.key).String()))
	return Replied, nil
}

func (h *TypeHandler) Mutability() CommandMutability {
	return CmdRead
}

// snapshotWriter is wired in once at startup by the server, the only
// layer that knows the configured RDB path. Keeps SAVE/BGSAVE
// decoupled from internal/store and internal/rdb the same way
// domain.State keeps the rest of the handlers decoupled from
// internal/store's concrete types.
var snapshotWriter func(model.Snapshot) error

// SetSnapshotWriter wires the function SAVE/BGSAVE call to persist a
// snapshot to disk.
func SetSnapshotWriter(fn func(model.Snapshot) error) {
	snapshotWriter = fn
}

// SAVE

type SaveHandler struct {
	BaseHandler
}

func NewSaveHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 0 {
		return nil, errors.New("ERR wrong number of arguments for 'SAVE' command")
	}
	return &SaveHandler{BaseHandler: BaseHandler{command: cmd}}, nil
}

func (h *SaveHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	if snapshotWriter != nil {
		if err := snapshotWriter(state.Snapshot()); err != nil {
			return Replied, err
		}
	}
	reply(protocol.EncodeString("OK"))
	return Replied, nil
}

func (h *SaveHandler) Mutability() CommandMutability {
	return CmdRead
}

// BGSAVE
//
// The snapshot itself is taken synchronously here, on the executor
// goroutine, since it must read engine state consistently; only the
// disk write happens on a background goroutine.

type BgsaveHandler struct {
	BaseHandler
}

func NewBgsaveHandler(cmd *Command) (Handler, error) {
	if len(cmd.Arguments) != 0 {
		return nil, errors.New("ERR wrong number of arguments for 'BGSAVE' command")
	}
	return &BgsaveHandler{BaseHandler: BaseHandler{command: cmd}}, nil
}

func (h *BgsaveHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	if snapshotWriter != nil {
		snap := state.Snapshot()
		go snapshotWriter(snap)
	}
	reply(protocol.EncodeString("Background saving started"))
	return Replied, nil
}

func (h *BgsaveHandler) Mutability() CommandMutability {
	return CmdRead
}

// EXEC
//
// Wraps the handlers queued during a MULTI block. Runs each in order
// against the same state, capturing its encoded reply, and sends back
// a single array of results. A handler that errors contributes an
// encoded error in its slot rather than aborting the rest of the
// queue, matching real Redis EXEC semantics. Never looked up through
// the handler table: the connection layer constructs it directly once
// a MULTI block is closed by EXEC.

type ExecHandler struct {
	BaseHandler
	queued []Handler
}

func NewExecHandler(queued []Handler) *ExecHandler {
	return &ExecHandler{
		BaseHandler: BaseHandler{command: &Command{Name: "EXEC"}},
		queued:      queued,
	}
}

func (h *ExecHandler) Execute(state domain.State, reply func(string)) (Outcome, error) {
	replies := make([]string, len(h.queued))

	for i, sub := range h.queued {
		// BLPOP/XREAD BLOCK enroll the connection as a block-coordinator
		// waiter and report back through the per-connection activeToken
		// the reactor tracks outside of EXEC's own reply path; EXEC
		// itself always replies synchronously, so a blocking command
		// can never be allowed to actually defer here. Reject it before
		// calling Execute, so no waiter is ever registered. XREAD
		// without BLOCK never defers and runs like any other command.
		_, blocks := sub.(Blocker)
		if xread, ok := sub.(*XReadHandler); ok && !xread.hasBlock {
			blocks = false
		}
		if blocks {
			replies[i] = protocol.EncodeError("ERR " + sub.Command().Name + " is not allowed in transactions")
			continue
		}

		var captured string
		_, err := sub.Execute(state, func(s string) { captured = s })
		if err != nil {
			captured = protocol.EncodeError(err.Error())
		}
		replies[i] = captured
	}

	reply(protocol.EncodeEncodedArray(replies))
	return Replied, nil
}

func (h *ExecHandler) Mutability() CommandMutability {
	return CmdRead | CmdWrite
}
