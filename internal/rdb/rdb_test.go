package rdb

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/heliosdb/heliosdb/internal/model"
)

func TestReadString(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "redis-ver",
			input:    []byte{0x09, 0x72, 0x65, 0x64, 0x69, 0x73, 0x2D, 0x76, 0x65, 0x72},
			expected: "redis-ver",
		},
		{
			name:     "6.0.16",
			input:    []byte{0x06, 0x36, 0x2E, 0x30, 0x2E, 0x31, 0x36},
			expected: "6.0.16",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bufio.NewReader(bytes.NewReader(tt.input))
			result, err := readString(reader)
			if err != nil {
				t.Error(err)
			} else if result != tt.expected {
				t.Errorf("readString() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestReadSize(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected int
		isString bool
	}{
		{
			name:     "6-bit integer",
			input:    []byte{0x0A}, // 10 in decimal
			expected: 10,
			isString: false,
		},
		{
			name:     "14-bit integer",
			input:    []byte{0x42, 0xBC}, // 700 in decimal
			expected: 700,
			isString: false,
		},
		{
			name:     "32-bit integer",
			input:    []byte{0x80, 0x00, 0x00, 0x42, 0x68}, // 17000 in decimal
			expected: 17000,
			isString: false,
		},
		{
			name:     "8-bit encoded integer",
			input:    []byte{0xC0, 0x7B}, // 123 in decimal
			expected: 123,
			isString: true,
		},
		{
			name:     "16-bit encoded integer",
			input:    []byte{0xC1, 0x39, 0x30}, // 12345 in decimal
			expected: 12345,
			isString: true,
		},
		{
			name:     "32-bit encoded integer",
			input:    []byte{0xC2, 0x87, 0xD6, 0x12, 0x00}, // 1234567 in decimal
			expected: 1234567,
			isString: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bufio.NewReader(bytes.NewReader(tt.input))
			result, isString, err := readSize(reader)
			if err != nil {
				t.Error(err)
			} else if result != tt.expected || isString != tt.isString {
				t.Errorf("readSize() = %v (%t), want %v (%t)", result, isString, tt.expected, tt.isString)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	snap := model.Snapshot{
		Strings: []model.SnapshotString{
			{Key: "k1", Value: "v1"},
			{Key: "k2", Value: "v2", ExpiresAtUnixMs: 99999999999999},
		},
		Lists: []model.SnapshotList{
			{Key: "mylist", Values: []string{"a", "b", "c"}},
		},
		Streams: []model.SnapshotStream{
			{Key: "mystream", Entries: []model.StreamEntry{
				{ID: model.StreamID{Ms: 1, Seq: 0}, Fields: model.Fields{{Name: "f", Value: "v"}}},
				{ID: model.StreamID{Ms: 2, Seq: 1}, Fields: model.Fields{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}},
			}},
		},
	}

	var buf bytes.Buffer
	if err := SaveDatabaseTo(&buf, snap); err != nil {
		t.Fatalf("SaveDatabaseTo: %v", err)
	}

	loaded, err := LoadDatabaseFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadDatabaseFromReader: %v", err)
	}

	if len(loaded.Snapshot.Strings) != 2 {
		t.Fatalf("got %d strings, want 2", len(loaded.Snapshot.Strings))
	}
	if len(loaded.Snapshot.Lists) != 1 || len(loaded.Snapshot.Lists[0].Values) != 3 {
		t.Fatalf("list round trip mismatch: %+v", loaded.Snapshot.Lists)
	}
	if len(loaded.Snapshot.Streams) != 1 || len(loaded.Snapshot.Streams[0].Entries) != 2 {
		t.Fatalf("stream round trip mismatch: %+v", loaded.Snapshot.Streams)
	}
	if loaded.Snapshot.Streams[0].Entries[1].ID != (model.StreamID{Ms: 2, Seq: 1}) {
		t.Fatalf("stream entry id mismatch: %+v", loaded.Snapshot.Streams[0].Entries[1].ID)
	}
}

func TestLoadEmptyHexDatabase(t *testing.T) {
	raw, err := hex.DecodeString(EmptyHexDatabase)
	if err != nil {
		t.Fatalf("decoding EmptyHexDatabase: %v", err)
	}

	loaded, err := LoadDatabaseFromReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("LoadDatabaseFromReader: %v", err)
	}
	if len(loaded.Snapshot.Strings) != 0 || len(loaded.Snapshot.Lists) != 0 || len(loaded.Snapshot.Streams) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", loaded.Snapshot)
	}
}

func FuzzLoadDatabaseFromReader(f *testing.F) {
	// Give an empty database as a seed
	emptyDb, err := hex.DecodeString(EmptyHexDatabase)
	if err != nil {
		f.Fatalf("Failed to decode empty database: %v", err)
	}
	f.Add(emptyDb)

	f.Fuzz(func(t *testing.T, data []byte) {
		reader := bufio.NewReader(bytes.NewReader(data))
		_, err := LoadDatabaseFromReader(reader)
		if err != nil {
			t.Logf("Got error: %v", err)
		}
	})
}
