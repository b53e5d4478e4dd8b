// Package server wires the data engine (internal/store) and the
// command dispatcher (internal/commands) to the network: a TCP
// listener, one reader/writer pair of goroutines per connection, and a
// single executor goroutine that is the sole mutator of the engine and
// block coordinator, per spec's single-writer invariant.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/heliosdb/heliosdb/internal/commands"
	"github.com/heliosdb/heliosdb/internal/domain"
	"github.com/heliosdb/heliosdb/internal/model"
	"github.com/heliosdb/heliosdb/internal/protocol"
	"github.com/heliosdb/heliosdb/internal/rdb"
	"github.com/heliosdb/heliosdb/internal/store"
)

// expiryReapInterval and blockResolution match spec §5's recommended
// background cadences: strings are lazily expired on access already,
// this just sweeps the rest; blocking waiters are swept far more often
// since BLPOP/XREAD BLOCK timeouts are felt directly by clients.
const (
	expiryReapInterval = time.Second
	blockResolution    = 10 * time.Millisecond
)

// Server owns the listener and the single executor goroutine. The
// engine itself is never touched outside that goroutine.
type Server struct {
	engine *store.Engine
	cfg    Config

	commandCh    chan CommandRequest
	disconnectCh chan *Connection

	done chan struct{}
}

// NewServer creates a Server around engine, ready to Start.
func NewServer(cfg Config, engine *store.Engine) *Server {
	return &Server{
		engine:       engine,
		cfg:          cfg,
		commandCh:    make(chan CommandRequest),
		disconnectCh: make(chan *Connection),
		done:         make(chan struct{}),
	}
}

// CommandRequest is a request to execute a handler, passed from a
// connection's reader goroutine to the executor goroutine.
type CommandRequest struct {
	handler commands.Handler
	conn    *Connection
}

// startExecutor runs until Stop is called. It is the only goroutine
// that ever calls into s.engine.
func (s *Server) startExecutor() {
	expiryTicker := time.NewTicker(expiryReapInterval)
	defer expiryTicker.Stop()
	blockTicker := time.NewTicker(blockResolution)
	defer blockTicker.Stop()

	for {
		select {
		case <-s.done:
			log.Printf("Shutting down command executor")
			return

		case <-expiryTicker.C:
			s.engine.ReapExpiredStrings()

		case <-blockTicker.C:
			s.engine.AdvanceBlocking()

		case conn := <-s.disconnectCh:
			if conn.activeToken != nil {
				s.engine.CancelBlocking(*conn.activeToken)
				conn.activeToken = nil
			}
			// Besides the executor (directly here, and from block-wake
			// callbacks it invokes synchronously), only the reader
			// goroutine sends on conn.writeCh, and it has stopped
			// sending before it reports the disconnect. Closing it here
			// rather than from the reader goroutine guarantees no send
			// can race the close.
			close(conn.writeCh)

		case req := <-s.commandCh:
			outcome, err := req.handler.Execute(s.engine, req.conn.send)
			if err != nil {
				req.conn.send(protocol.EncodeError(err.Error()))
				continue
			}

			if outcome == commands.Deferred {
				if blocker, ok := req.handler.(commands.Blocker); ok {
					tok := blocker.Token()
					req.conn.activeToken = &tok
				}
			} else {
				req.conn.activeToken = nil
			}
		}
	}
}

// Stop signals the executor and accept loop to shut down.
func (s *Server) Stop() {
	close(s.done)
}

// SnapshotWriter returns the function SAVE/BGSAVE should call to
// persist a snapshot, wired in by app/main.go at startup via
// commands.SetSnapshotWriter. The snapshot itself is taken by the
// handler on the executor goroutine (via domain.State.Snapshot); this
// just knows where to write the bytes.
func (s *Server) SnapshotWriter() func(model.Snapshot) error {
	return func(snap model.Snapshot) error {
		return rdb.SaveDatabase(s.cfg.Path(), snap)
	}
}

// Start binds the listener and runs the accept loop until Stop is
// called. Blocks the calling goroutine.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%s", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %s: %w", s.cfg.Port, err)
	}
	defer l.Close()

	go s.startExecutor()

	connCounter := 1
	for {
		select {
		case <-s.done:
			log.Println("Refusing new connections")
			return nil
		default:
		}

		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			log.Println("Error accepting connection: ", err.Error())
			os.Exit(1)
		}

		connectionID := connCounter
		connCounter++
		go s.handleConnection(conn, connectionID)
	}
}

// Connection is a client socket's reactor-side bookkeeping: the
// outbound write queue (and its dedicated writer goroutine, so a slow
// client can never block the executor goroutine), and the per-
// connection MULTI/EXEC transaction buffer.
type Connection struct {
	id   int
	conn net.Conn
	addr string

	writeCh chan string

	isBuffering bool
	buffer      []commands.Handler

	// activeToken is set by the executor right after a handler returns
	// Deferred, and cleared when a later command on this connection
	// replies synchronously or when the connection disconnects. It is
	// not cleared when the wait itself fires; cancelling a token whose
	// wait has already fired is a no-op. At most one blocking wait is ever
	// outstanding per connection, since a compliant client waits for a
	// reply before issuing its next command.
	activeToken *domain.BlockToken
}

// send queues result for delivery on this connection's socket. Safe to
// call from the executor goroutine, including from inside a BLPOP/
// XREAD BLOCK callback fired well after Execute returned.
func (c *Connection) send(result string) {
	if c.writeCh == nil {
		return
	}
	c.writeCh <- result
}

func (c *Connection) writeLoop() {
	for result := range c.writeCh {
		if _, err := c.conn.Write([]byte(result)); err != nil {
			return
		}
	}
}

// errUnknownInlineCommand is returned by receiveCommand when an inline
// (non-array) line isn't the legacy PING fast path. Unlike a read/parse
// error, this is recoverable: the connection stays open.
var errUnknownInlineCommand = errors.New("ERR unknown command")

// receiveCommand parses one command off reader. Arrays are the normal
// wire format; anything else falls back to the inline PING fast path
// real Redis offers for health checks from plain netcat-style clients
// — any other inline text is an unknown command, not a dead connection.
func receiveCommand(reader *bufio.Reader) (*commands.Command, error) {
	c, err := reader.Peek(1)
	if err != nil {
		return nil, err
	}

	if string(c) == "*" {
		rawCommand, _, err := protocol.ReadArray(reader)
		if err != nil {
			return nil, err
		}
		if len(rawCommand) == 0 {
			return nil, fmt.Errorf("ERR Protocol error: expected array of bulk strings")
		}
		return &commands.Command{
			Name:      strings.ToUpper(rawCommand[0]),
			Arguments: rawCommand[1:],
		}, nil
	}

	line, _, err := protocol.ReadLine(reader)
	if err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToUpper(line), "PING") {
		return &commands.Command{Name: "PING"}, nil
	}
	return nil, errUnknownInlineCommand
}

func (s *Server) handleConnection(conn net.Conn, connID int) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	connState := &Connection{
		id:      connID,
		conn:    conn,
		addr:    conn.RemoteAddr().String(),
		writeCh: make(chan string, 64),
	}
	go connState.writeLoop()

	// writeCh is closed by the executor goroutine once it has processed
	// this disconnect (see startExecutor's disconnectCh case), not here
	// — it is the only goroutine that ever sends on writeCh, so it must
	// also be the one to close it, or a concurrent block-wake send
	// could race a close happening on this goroutine instead.
	defer func() {
		select {
		case s.disconnectCh <- connState:
		case <-s.done:
		}
	}()

	for {
		command, err := receiveCommand(reader)
		if err != nil {
			if errors.Is(err, errUnknownInlineCommand) {
				connState.send(protocol.EncodeError(err.Error()))
				continue
			}
			log.Printf("[%s] Disconnected: %v", connState.addr, err)
			return
		}

		switch command.Name {
		case "MULTI":
			if connState.isBuffering {
				connState.send(protocol.EncodeError("ERR MULTI nested"))
				continue
			}
			connState.isBuffering = true
			connState.buffer = nil
			connState.send(protocol.EncodeString("OK"))

		case "DISCARD":
			if !connState.isBuffering {
				connState.send(protocol.EncodeError("ERR DISCARD without MULTI"))
				continue
			}
			connState.isBuffering = false
			connState.buffer = nil
			connState.send(protocol.EncodeString("OK"))

		case "EXEC":
			if !connState.isBuffering {
				connState.send(protocol.EncodeError("ERR EXEC without MULTI"))
				continue
			}

			queued := connState.buffer
			connState.isBuffering = false
			connState.buffer = nil

			if len(queued) == 0 {
				connState.send(protocol.EncodeEncodedArray(nil))
				continue
			}

			s.commandCh <- CommandRequest{
				handler: commands.NewExecHandler(queued),
				conn:    connState,
			}

		default:
			handler, err := command.Handler()
			if err != nil {
				connState.send(protocol.EncodeError(err.Error()))
				continue
			}

			if connState.isBuffering {
				connState.buffer = append(connState.buffer, handler)
				connState.send(protocol.EncodeString("QUEUED"))
				continue
			}

			s.commandCh <- CommandRequest{handler: handler, conn: connState}
		}
	}
}
