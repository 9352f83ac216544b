package ndx

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkfoss/dbfx/dbferr"
	"github.com/mkfoss/dbfx/internal/codec"
)

// buildFixture writes a minimal single-node NDX: a 512-byte header
// followed by one 512-byte leaf node holding every given CHARACTER
// key -> record entry, stored in ascending key order.
func buildFixture(t *testing.T, keyLength int, entries map[string]uint32) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ndx")

	keyRecordSize := ((keyLength+3)/4)*4 + 8
	header := make([]byte, nodeSize)
	codec.PutUint32(header[0:4], 1) // startBlock
	codec.PutUint32(header[4:8], 2) // totalBlocks
	codec.PutUint16(header[8:10], uint16(keyLength))
	codec.PutUint16(header[10:12], uint16(len(entries)))
	codec.PutUint16(header[12:14], uint16(Character))
	codec.PutUint16(header[14:16], uint16(keyRecordSize))
	codec.PutUint16(header[16:18], 0)

	node := make([]byte, nodeSize)
	codec.PutUint32(node[0:4], uint32(len(entries)))

	// Deterministic order: sort keys so the B+-tree scan-in-order
	// invariant holds in this tiny fixture.
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}

	pos := 4
	for _, k := range keys {
		rec := node[pos : pos+keyRecordSize]
		codec.PutUint32(rec[0:4], 0) // leaf: nextBlock == 0
		codec.PutUint32(rec[4:8], entries[k])
		copy(rec[8:], []byte(codec.PadSpaces(k, keyLength)))
		pos += keyRecordSize
	}

	buf := append(header, node...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindExactMatch(t *testing.T) {
	path := buildFixture(t, 4, map[string]uint32{"AAAA": 1, "BBBB": 2, "CCCC": 3})
	idx, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	n, err := idx.Find("BBBB")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Find(BBBB) = %d, want 2", n)
	}
}

func TestFindNoMatchReturnsEOF(t *testing.T) {
	path := buildFixture(t, 4, map[string]uint32{"AAAA": 1, "BBBB": 2})
	idx, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	n, err := idx.Find("ZZZZ")
	if err != nil {
		t.Fatal(err)
	}
	if n != RecordNumberEOF {
		t.Fatalf("Find(ZZZZ) = %d, want EOF", n)
	}
}

func TestOpenMissingFileIsIOFailure(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.ndx"))
	if !errors.Is(err, dbferr.ErrIOFailure) {
		t.Fatalf("expected ErrIOFailure opening a missing NDX file, got %v", err)
	}
}

func TestOpenTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.ndx")
	if err := os.WriteFile(path, make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, dbferr.ErrTruncatedFile) {
		t.Fatalf("expected ErrTruncatedFile opening a short NDX header, got %v", err)
	}
}

func TestKeyRecordSizeMismatchIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ndx")
	header := make([]byte, nodeSize)
	codec.PutUint32(header[0:4], 1)
	codec.PutUint32(header[4:8], 1)
	codec.PutUint16(header[8:10], 4)
	codec.PutUint16(header[10:12], 0)
	codec.PutUint16(header[12:14], uint16(Character))
	codec.PutUint16(header[14:16], 999) // wrong asserted size
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, dbferr.ErrCorruptStructure) {
		t.Fatalf("expected ErrCorruptStructure on key record size mismatch, got %v", err)
	}
}
