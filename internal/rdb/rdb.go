// Package rdb implements the binary snapshot format used by SAVE and
// BGSAVE: a small RDB-flavored container (magic header, optional aux
// metadata, one SELECTDB section, typed entries, EOF marker, trailing
// checksum) sized to the three datasets the engine actually holds —
// strings, lists and streams — rather than the full set of types real
// Redis persists.
package rdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/heliosdb/heliosdb/internal/model"
)

const (
	magicPrefix    = "REDIS"
	formatVersion  = "0011"
	opcodeMetadata = 0xFA
	opcodeExpireMs = 0xFC
	opcodeExpireS  = 0xFD
	opcodeSelectDB = 0xFE
	opcodeResizeDB = 0xFB
	opcodeEOF      = 0xFF

	typeString = 0x00
	typeList   = 0x01
	typeStream = 0x02
)

// EmptyHexDatabase is the hex encoding of a valid, empty database: a
// header, no aux fields, an empty db 0, and the EOF marker plus an
// all-zero checksum. Used as a fuzzing seed and as a decoding test
// fixture.
const EmptyHexDatabase = "524544495330303131FE00FB0000FF0000000000000000"

func readHeader(reader *bufio.Reader) (int, error) {
	buffer := make([]byte, 9)
	if _, err := io.ReadFull(reader, buffer); err != nil {
		return 0, fmt.Errorf("rdb: reading header: %w", err)
	}

	headerString := string(buffer)
	if !strings.HasPrefix(headerString, magicPrefix) {
		return 0, fmt.Errorf("rdb: header does not start with %q", magicPrefix)
	}

	version, err := strconv.Atoi(headerString[5:])
	if err != nil {
		return 0, fmt.Errorf("rdb: decoding version number: %w", err)
	}
	return version, nil
}

// readSize reads a variable-length size. The boolean result reports
// whether the value is a small literal integer encoded in place of a
// string (the 0xC0/0xC1/0xC2 forms), as opposed to a real length
// prefix.
func readSize(reader *bufio.Reader) (int, bool, error) {
	headerByte, err := reader.ReadByte()
	if err != nil {
		return 0, false, err
	}

	switch (headerByte & 0b11000000) >> 6 {
	case 0:
		return int(headerByte), false, nil
	case 1:
		nextByte, err := reader.ReadByte()
		if err != nil {
			return 0, false, err
		}
		return int(headerByte&0b00111111)<<8 | int(nextByte), false, nil
	case 2:
		var intval uint32
		if err := binary.Read(reader, binary.BigEndian, &intval); err != nil {
			return 0, false, err
		}
		return int(intval), false, nil
	default:
		switch headerByte {
		case 0xC0:
			var v uint8
			if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
				return 0, false, err
			}
			return int(v), true, nil
		case 0xC1:
			var v uint16
			if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
				return 0, false, err
			}
			return int(v), true, nil
		case 0xC2:
			var v uint32
			if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
				return 0, false, err
			}
			return int(v), true, nil
		default:
			return 0, false, fmt.Errorf("rdb: unknown size encoding byte 0x%02X", headerByte)
		}
	}
}

func readString(reader *bufio.Reader) (string, error) {
	length, isLiteral, err := readSize(reader)
	if err != nil {
		return "", err
	}
	if isLiteral {
		return strconv.Itoa(length), nil
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", fmt.Errorf("rdb: reading string body: %w", err)
	}
	return string(buf), nil
}

// readMetadata consumes zero or more 0xFA-prefixed aux key/value
// pairs, stopping as soon as the next byte isn't 0xFA. The caller is
// left positioned at the first byte of the following section.
func readMetadata(reader *bufio.Reader) (map[string]string, error) {
	metadata := map[string]string{}

	for {
		peeked, err := reader.Peek(1)
		if err != nil {
			return nil, fmt.Errorf("rdb: peeking metadata section: %w", err)
		}
		if peeked[0] != opcodeMetadata {
			return metadata, nil
		}
		reader.Discard(1)

		name, err := readString(reader)
		if err != nil {
			return nil, fmt.Errorf("rdb: reading aux name: %w", err)
		}
		value, err := readString(reader)
		if err != nil {
			return nil, fmt.Errorf("rdb: reading aux value: %w", err)
		}
		metadata[name] = value
	}
}

func readStringEntry(reader *bufio.Reader, snap *model.Snapshot, expiresAtUnixMs int64) error {
	key, err := readString(reader)
	if err != nil {
		return fmt.Errorf("rdb: reading string key: %w", err)
	}
	value, err := readString(reader)
	if err != nil {
		return fmt.Errorf("rdb: reading string value: %w", err)
	}

	if expiresAtUnixMs != 0 && time.UnixMilli(expiresAtUnixMs).Before(time.Now()) {
		return nil
	}

	snap.Strings = append(snap.Strings, model.SnapshotString{
		Key:             key,
		Value:           value,
		ExpiresAtUnixMs: expiresAtUnixMs,
	})
	return nil
}

func readListEntry(reader *bufio.Reader, snap *model.Snapshot) error {
	key, err := readString(reader)
	if err != nil {
		return fmt.Errorf("rdb: reading list key: %w", err)
	}
	count, _, err := readSize(reader)
	if err != nil {
		return fmt.Errorf("rdb: reading list length: %w", err)
	}

	values := make([]string, count)
	for i := 0; i < count; i++ {
		v, err := readString(reader)
		if err != nil {
			return fmt.Errorf("rdb: reading list element %d: %w", i, err)
		}
		values[i] = v
	}

	snap.Lists = append(snap.Lists, model.SnapshotList{Key: key, Values: values})
	return nil
}

func readStreamEntry(reader *bufio.Reader, snap *model.Snapshot) error {
	key, err := readString(reader)
	if err != nil {
		return fmt.Errorf("rdb: reading stream key: %w", err)
	}
	count, _, err := readSize(reader)
	if err != nil {
		return fmt.Errorf("rdb: reading stream entry count: %w", err)
	}

	entries := make([]model.StreamEntry, count)
	for i := 0; i < count; i++ {
		var ms, seq uint64
		if err := binary.Read(reader, binary.BigEndian, &ms); err != nil {
			return fmt.Errorf("rdb: reading stream entry %d id.ms: %w", i, err)
		}
		if err := binary.Read(reader, binary.BigEndian, &seq); err != nil {
			return fmt.Errorf("rdb: reading stream entry %d id.seq: %w", i, err)
		}

		fieldCount, _, err := readSize(reader)
		if err != nil {
			return fmt.Errorf("rdb: reading stream entry %d field count: %w", i, err)
		}

		fields := make(model.Fields, fieldCount)
		for j := 0; j < fieldCount; j++ {
			name, err := readString(reader)
			if err != nil {
				return fmt.Errorf("rdb: reading stream entry %d field %d name: %w", i, j, err)
			}
			value, err := readString(reader)
			if err != nil {
				return fmt.Errorf("rdb: reading stream entry %d field %d value: %w", i, j, err)
			}
			fields[j] = model.Field{Name: name, Value: value}
		}

		entries[i] = model.StreamEntry{ID: model.StreamID{Ms: ms, Seq: seq}, Fields: fields}
	}

	snap.Streams = append(snap.Streams, model.SnapshotStream{Key: key, Entries: entries})
	return nil
}

func readDatabase(reader *bufio.Reader) (model.Snapshot, error) {
	snap := model.Snapshot{}

	b, err := reader.ReadByte()
	if err != nil || b != opcodeSelectDB {
		return snap, fmt.Errorf("rdb: expected SELECTDB marker, got 0x%02X (err=%v)", b, err)
	}
	if _, _, err := readSize(reader); err != nil {
		return snap, fmt.Errorf("rdb: reading db index: %w", err)
	}

	b, err = reader.ReadByte()
	if err != nil || b != opcodeResizeDB {
		return snap, fmt.Errorf("rdb: expected RESIZEDB marker, got 0x%02X (err=%v)", b, err)
	}
	if _, _, err := readSize(reader); err != nil {
		return snap, fmt.Errorf("rdb: reading hashtable size: %w", err)
	}
	if _, _, err := readSize(reader); err != nil {
		return snap, fmt.Errorf("rdb: reading expiring key size: %w", err)
	}

	for {
		b, err = reader.ReadByte()
		if err != nil {
			return snap, fmt.Errorf("rdb: reading entry marker: %w", err)
		}

		switch b {
		case opcodeEOF:
			return snap, nil

		case opcodeExpireMs:
			var timestamp uint64
			if err := binary.Read(reader, binary.LittleEndian, &timestamp); err != nil {
				return snap, fmt.Errorf("rdb: reading ms expiry: %w", err)
			}
			if typeByte, err := reader.ReadByte(); err != nil || typeByte != typeString {
				return snap, fmt.Errorf("rdb: expiry must precede a string entry")
			}
			if err := readStringEntry(reader, &snap, int64(timestamp)); err != nil {
				return snap, err
			}

		case opcodeExpireS:
			var timestamp uint32
			if err := binary.Read(reader, binary.LittleEndian, &timestamp); err != nil {
				return snap, fmt.Errorf("rdb: reading second expiry: %w", err)
			}
			if typeByte, err := reader.ReadByte(); err != nil || typeByte != typeString {
				return snap, fmt.Errorf("rdb: expiry must precede a string entry")
			}
			if err := readStringEntry(reader, &snap, int64(timestamp)*1000); err != nil {
				return snap, err
			}

		case typeString:
			if err := readStringEntry(reader, &snap, 0); err != nil {
				return snap, err
			}

		case typeList:
			if err := readListEntry(reader, &snap); err != nil {
				return snap, err
			}

		case typeStream:
			if err := readStreamEntry(reader, &snap); err != nil {
				return snap, err
			}

		default:
			return snap, fmt.Errorf("rdb: unknown entry type byte 0x%02X", b)
		}
	}
}

// LoadedDatabase is a decoded snapshot file, plus the header
// bookkeeping that SAVE/BGSAVE don't otherwise need.
type LoadedDatabase struct {
	Version  int
	Metadata map[string]string
	Snapshot model.Snapshot
}

// LoadDatabaseFromReader decodes a snapshot from an already-open
// reader, without assuming it is backed by a file.
func LoadDatabaseFromReader(r io.Reader) (*LoadedDatabase, error) {
	reader := bufio.NewReader(r)

	version, err := readHeader(reader)
	if err != nil {
		return nil, err
	}
	metadata, err := readMetadata(reader)
	if err != nil {
		return nil, err
	}
	snap, err := readDatabase(reader)
	if err != nil {
		return nil, err
	}

	return &LoadedDatabase{Version: version, Metadata: metadata, Snapshot: snap}, nil
}

// LoadDatabase opens and decodes the snapshot file at path.
func LoadDatabase(path string) (*LoadedDatabase, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadDatabaseFromReader(file)
}

func writeSize(w io.Writer, n int) error {
	// Always use the 32-bit form; simpler than picking the tightest
	// encoding, and SAVE is not a hot path.
	_, err := w.Write([]byte{0x80})
	if err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, uint32(n))
}

func writeString(w io.Writer, s string) error {
	if err := writeSize(w, len(s)); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// SaveDatabaseTo encodes snap into w using the same layout
// LoadDatabaseFromReader understands.
func SaveDatabaseTo(w io.Writer, snap model.Snapshot) error {
	if _, err := io.WriteString(w, magicPrefix+formatVersion); err != nil {
		return err
	}

	if _, err := w.Write([]byte{opcodeSelectDB, 0x00, opcodeResizeDB, 0x00, 0x00}); err != nil {
		return err
	}

	for _, s := range snap.Strings {
		if s.ExpiresAtUnixMs != 0 {
			if _, err := w.Write([]byte{opcodeExpireMs}); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, uint64(s.ExpiresAtUnixMs)); err != nil {
				return err
			}
		}
		if _, err := w.Write([]byte{typeString}); err != nil {
			return err
		}
		if err := writeString(w, s.Key); err != nil {
			return err
		}
		if err := writeString(w, s.Value); err != nil {
			return err
		}
	}

	for _, l := range snap.Lists {
		if _, err := w.Write([]byte{typeList}); err != nil {
			return err
		}
		if err := writeString(w, l.Key); err != nil {
			return err
		}
		if err := writeSize(w, len(l.Values)); err != nil {
			return err
		}
		for _, v := range l.Values {
			if err := writeString(w, v); err != nil {
				return err
			}
		}
	}

	for _, s := range snap.Streams {
		if _, err := w.Write([]byte{typeStream}); err != nil {
			return err
		}
		if err := writeString(w, s.Key); err != nil {
			return err
		}
		if err := writeSize(w, len(s.Entries)); err != nil {
			return err
		}
		for _, e := range s.Entries {
			if err := binary.Write(w, binary.BigEndian, e.ID.Ms); err != nil {
				return err
			}
			if err := binary.Write(w, binary.BigEndian, e.ID.Seq); err != nil {
				return err
			}
			if err := writeSize(w, len(e.Fields)); err != nil {
				return err
			}
			for _, f := range e.Fields {
				if err := writeString(w, f.Name); err != nil {
					return err
				}
				if err := writeString(w, f.Value); err != nil {
					return err
				}
			}
		}
	}

	if _, err := w.Write([]byte{opcodeEOF}); err != nil {
		return err
	}

	// No CRC64 checksum support; an all-zero trailer tells a real
	// Redis reader checksumming is disabled, and our own reader never
	// reads past the EOF marker.
	_, err := w.Write(make([]byte, 8))
	return err
}

// SaveDatabase writes snap to the file at path, replacing it
// atomically via a temp file in the same directory.
func SaveDatabase(path string, snap model.Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "rdb-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := SaveDatabaseTo(tmp, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
