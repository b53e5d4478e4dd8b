// Package model holds the plain data types shared between the store,
// blocking coordinator, command handlers and snapshot codec, so that
// none of those packages need to import each other just to talk about
// a stream entry or a value's kind.
package model

import "strconv"

// Kind identifies which of the three datasets a key belongs to.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindList
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindStream:
		return "stream"
	default:
		return "none"
	}
}

// StreamID is a stream entry identifier, lexicographically ordered by
// (Ms, Seq).
type StreamID struct {
	Ms  uint64
	Seq uint64
}

// Compare returns -1, 0 or 1 as id is less than, equal to, or greater
// than other.
func (id StreamID) Compare(other StreamID) int {
	switch {
	case id.Ms < other.Ms:
		return -1
	case id.Ms > other.Ms:
		return 1
	case id.Seq < other.Seq:
		return -1
	case id.Seq > other.Seq:
		return 1
	default:
		return 0
	}
}

func (id StreamID) Less(other StreamID) bool    { return id.Compare(other) < 0 }
func (id StreamID) Greater(other StreamID) bool { return id.Compare(other) > 0 }
func (id StreamID) IsZero() bool                { return id.Ms == 0 && id.Seq == 0 }

func (id StreamID) String() string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// MaxStreamID is the largest representable stream ID, used as the
// resolved upper bound for the XRANGE "+" shorthand.
var MaxStreamID = StreamID{Ms: ^uint64(0), Seq: ^uint64(0)}

// Field is one name/value pair of a stream entry. Order matters: it is
// observable on the wire via XRANGE/XREAD.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered sequence of Field, preserving insertion order.
type Fields []Field

// StreamEntry is one append-only stream record.
type StreamEntry struct {
	ID     StreamID
	Fields Fields
}

// Snapshot is the in-memory representation of everything a save/load
// round trip must preserve.
type Snapshot struct {
	Strings []SnapshotString
	Lists   []SnapshotList
	Streams []SnapshotStream
}

// SnapshotString is one string entry. ExpiresAtUnixMs is 0 when the key
// has no expiry.
type SnapshotString struct {
	Key             string
	Value           string
	ExpiresAtUnixMs int64
}

// SnapshotList is one list entry, head-to-tail order.
type SnapshotList struct {
	Key    string
	Values []string
}

// SnapshotStream is one stream entry, in append order.
type SnapshotStream struct {
	Key     string
	Entries []StreamEntry
}
