package server

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/heliosdb/heliosdb/internal/store"
)

func TestInlineNonPingKeepsConnectionOpen(t *testing.T) {
	engine := store.NewEngine(time.Millisecond)
	srv := NewServer(Config{Dir: ".", DBFilename: "dump.rdb", Port: "0"}, engine)

	go srv.startExecutor()
	defer srv.Stop()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	go srv.handleConnection(serverConn, 1)

	if _, err := clientConn.Write([]byte("GARBAGE\r\n")); err != nil {
		t.Fatalf("writing inline garbage: %v", err)
	}

	reader := bufio.NewReader(clientConn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading reply to garbage inline input: %v", err)
	}
	if want := "-ERR unknown command\r\n"; line != want {
		t.Fatalf("reply to unrecognized inline input = %q, want %q", line, want)
	}

	// The connection must still be open and usable.
	if _, err := clientConn.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
		t.Fatalf("writing PING after garbage: %v", err)
	}
	line, err = reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading PING reply: %v", err)
	}
	if want := "+PONG\r\n"; line != want {
		t.Fatalf("PING reply = %q, want %q", line, want)
	}
}

func TestReceiveCommandInlinePing(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("ping\r\n"))
	cmd, err := receiveCommand(reader)
	if err != nil {
		t.Fatalf("receiveCommand: %v", err)
	}
	if cmd.Name != "PING" {
		t.Errorf("Name = %q, want PING", cmd.Name)
	}
}

func TestReceiveCommandInlineUnknownIsRecoverable(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("NOPE\r\n"))
	_, err := receiveCommand(reader)
	if err == nil {
		t.Fatal("expected an error for a non-PING inline line")
	}
	if err != errUnknownInlineCommand {
		t.Errorf("err = %v, want errUnknownInlineCommand", err)
	}
}
