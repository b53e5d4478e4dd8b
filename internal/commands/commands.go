package commands

import (
	"errors"

	"github.com/heliosdb/heliosdb/internal/domain"
)

type CommandMutability uint8

const (
	CmdRead CommandMutability = 1 << iota
	CmdWrite
)

func (cm CommandMutability) IsRead() bool {
	return cm&CmdRead != 0
}
func (cm CommandMutability) IsWrite() bool {
	return cm&CmdWrite != 0
}

// Outcome tells the caller whether a handler already produced its
// reply synchronously, or has enrolled the client as a block-
// coordinator waiter and will reply later (BLPOP, XREAD BLOCK).
// Replaces the empty-string "no reply" sentinel the design notes flag
// as fragile.
type Outcome int

const (
	Replied Outcome = iota
	Deferred
)

// Command represents a parsed command.
//
// Name is already normalized to uppercase, and Arguments is the list
// of arguments passed to the command, without any other processing.
type Command struct {
	Name      string
	Arguments []string
}

// Handler is the interface every command handler implements.
type Handler interface {
	// Command returns the original command this handler is implementing.
	Command() *Command

	// Execute runs the command against state and reports how the
	// reply was, or will be, delivered. If it returns Deferred, no
	// reply has been written yet; the handler has registered a block
	// wait and reply will be invoked later from that wait's callback.
	Execute(state domain.State, reply func(string)) (Outcome, error)

	// Mutability reports whether the command reads and/or writes data.
	Mutability() CommandMutability
}

// Blocker is implemented by handlers that can return Deferred, so the
// connection layer can remember and later cancel their wait token on
// disconnect.
type Blocker interface {
	Token() domain.BlockToken
}

// BaseHandler carries the parsed command so embedding handlers get
// Command() for free.
type BaseHandler struct {
	command *Command
}

func (h *BaseHandler) Command() *Command {
	return h.command
}

// Map from command name to handler factory functions.
var handlers = map[string]func(*Command) (Handler, error){
	// Utility commands
	"PING": NewPingHandler,
	"ECHO": NewEchoHandler,

	// Key-value commands
	"GET":  NewGetHandler,
	"SET":  NewSetHandler,
	"INCR": NewIncrHandler,

	// Key utility commands
	"KEYS": NewKeysHandler,
	"TYPE": NewTypeHandler,

	// List commands
	"RPUSH":  NewRPushHandler,
	"LPUSH":  NewLPushHandler,
	"LPOP":   NewLPopHandler,
	"LRANGE": NewLRangeHandler,
	"LLEN":   NewLLenHandler,
	"BLPOP":  NewBlpopHandler,

	// Stream commands
	"XADD":   NewXAddHandler,
	"XREAD":  NewXReadHandler,
	"XRANGE": NewXRangeHandler,

	// Persistence commands
	"SAVE":   NewSaveHandler,
	"BGSAVE": NewBgsaveHandler,
}

func (c *Command) Handler() (Handler, error) {
	handlerFunc, exists := handlers[c.Name]

	if exists {
		return handlerFunc(c)
	}
	return nil, errors.New("ERR Invalid Unknown Command")
}
