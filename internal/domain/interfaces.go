// Package domain defines the interface command handlers execute
// against, keeping internal/commands decoupled from the concrete
// storage and networking implementations in internal/store and
// internal/server.
package domain

import (
	"time"

	"github.com/heliosdb/heliosdb/internal/blocking"
	"github.com/heliosdb/heliosdb/internal/model"
)

// BlockToken identifies a registered BLPOP/XREAD-BLOCK wait so the
// reactor can cancel it on client disconnect.
type BlockToken = blocking.Token

// StreamReadRequest is one (key, after-ID) pair of an XREAD call.
type StreamReadRequest struct {
	Key   string
	After model.StreamID
}

// State is the full data engine surface available to command handlers:
// the string, list and stream stores, the block coordinator
// registration entry points, and the snapshot import/export used by
// SAVE/BGSAVE.
type State interface {
	// Strings

	Get(key string) (string, bool)
	Set(key, value string, expiresAt *time.Time)
	Incr(key string) (int64, error)
	Delete(key string)
	Keys(pattern string) []string
	Type(key string) model.Kind

	// Lists

	LPush(key string, values []string) int
	RPush(key string, values []string) int
	LPop(key string) (string, bool)
	LPopCount(key string, count int) ([]string, error)
	LRange(key string, start, end int) []string
	LLen(key string) int

	// Streams

	XAdd(key, rawID string, fields model.Fields) (model.StreamID, error)
	XRange(key string, start, end model.StreamID) []model.StreamEntry
	XRead(reqs []StreamReadRequest) map[string][]model.StreamEntry
	StreamTail(key string) model.StreamID

	// Blocking

	BlockOnList(key string, timeout time.Duration, hasDeadline bool, onElement func(element string), onTimeout func()) BlockToken
	BlockOnStreams(reqs []StreamReadRequest, timeout time.Duration, hasDeadline bool, onEntry func(key string, entry model.StreamEntry), onTimeout func()) BlockToken
	CancelBlocking(token BlockToken)

	// Snapshot I/O

	Snapshot() model.Snapshot
	Restore(snap model.Snapshot)
}
