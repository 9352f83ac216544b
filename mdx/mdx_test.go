package mdx

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkfoss/dbfx/internal/codec"
)

// buildFixture assembles a minimal two-tag MDX: a character tag "test1"
// whose three leaf keys are stored in ascending order (keya->3, keyb->1,
// test2->2), giving the leaf-storage record order 3,1,2 that spec.md §8's
// ordered-traversal property exercises, and a numeric tag "test2" with
// native float64 keys 10->1, 15->3, 20->2.
func buildFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.mdx")

	const (
		tagLength       = 32
		charKeyLength   = 10
		charRecordSize  = 8 + 12 // ceil(10/4)*4 = 12
		numKeyLength    = 8
		numRecordSize   = 8 + 8
		charHeaderBlock = 2
		numHeaderBlock  = 3
		charRootBlock   = 4
		numRootBlock    = 5
		totalBlocks     = 6
	)

	buf := make([]byte, totalBlocks*blockUnit)

	// File header.
	buf[0] = 2 // version
	codec.PutFixedASCII(buf[4:20], "TESTDBF")
	codec.PutUint16(buf[20:22], 1)   // blockSizeMultiplier
	codec.PutUint16(buf[22:24], 512) // nodeSize
	buf[24] = 0                      // production
	buf[25] = 1                      // keysInTag
	buf[26] = tagLength
	codec.PutUint16(buf[28:30], 2) // tagsInUse
	codec.PutUint32(buf[32:36], totalBlocks)

	writeTagDescriptor(buf, 0, charHeaderBlock, "test1", 0, 'C')
	writeTagDescriptor(buf, 1, numHeaderBlock, "test2", 0, 'N')

	writeTagHeaderBlock(buf, charHeaderBlock, charRootBlock, 0, 'C', charKeyLength, false)
	writeTagHeaderBlock(buf, numHeaderBlock, numRootBlock, 0, 'N', numKeyLength, false)

	// Character leaf node: keya->3, keyb->1, test2->2 (ascending key order).
	charNode := buf[charRootBlock*blockUnit : charRootBlock*blockUnit+blockUnit]
	codec.PutUint32(charNode[0:4], 3) // keysInNode
	codec.PutUint32(charNode[4:8], 0) // previousBlock: leaf
	writeCharKeyRecord(charNode, 0, charRecordSize, 3, "keya", charKeyLength)
	writeCharKeyRecord(charNode, 1, charRecordSize, 1, "keyb", charKeyLength)
	writeCharKeyRecord(charNode, 2, charRecordSize, 2, "test2", charKeyLength)

	// Numeric leaf node: 10->1, 15->3, 20->2 (ascending key order).
	numNode := buf[numRootBlock*blockUnit : numRootBlock*blockUnit+blockUnit]
	codec.PutUint32(numNode[0:4], 3)
	codec.PutUint32(numNode[4:8], 0)
	writeFloatKeyRecord(numNode, 0, numRecordSize, 1, 10)
	writeFloatKeyRecord(numNode, 1, numRecordSize, 3, 15)
	writeFloatKeyRecord(numNode, 2, numRecordSize, 2, 20)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeTagDescriptor(buf []byte, index int, headerBlock uint32, name string, keyFormat byte, keyType byte) {
	const tagLength = 32
	base := headerSize + index*tagLength
	rec := buf[base : base+tagLength]
	codec.PutUint32(rec[0:4], headerBlock)
	codec.PutFixedASCII(rec[4:14], name)
	rec[14] = keyFormat
	rec[19] = keyType
}

func writeTagHeaderBlock(buf []byte, headerBlock uint32, rootBlock uint32, keyFormat byte, keyType byte, keyLength int, unique bool) {
	base := int(headerBlock) * blockUnit
	rec := buf[base : base+blockUnit]
	codec.PutUint32(rec[0:4], rootBlock)
	codec.PutUint32(rec[4:8], 1) // sizeInBlocks
	rec[8] = keyFormat
	rec[9] = keyType
	codec.PutUint16(rec[10:12], uint16(keyLength))
	codec.PutUint16(rec[12:14], 100) // keysPerBlock
	codec.PutUint16(rec[14:16], 0)   // secondaryKeyType
	codec.PutUint16(rec[16:18], 0)   // keyItemLength
	if unique {
		codec.PutUint16(rec[18:20], 1)
	}
}

func writeCharKeyRecord(node []byte, index, recordSize int, recNo uint32, key string, keyLength int) {
	base := 8 + index*recordSize
	rec := node[base : base+recordSize]
	codec.PutUint32(rec[4:8], recNo)
	copy(rec[8:8+keyLength], []byte(codec.PadSpaces(key, keyLength)))
}

func writeFloatKeyRecord(node []byte, index, recordSize int, recNo uint32, value float64) {
	base := 8 + index*recordSize
	rec := node[base : base+recordSize]
	codec.PutUint32(rec[4:8], recNo)
	bits := math.Float64bits(value)
	codec.PutUint32(rec[8:12], uint32(bits))
	codec.PutUint32(rec[12:16], uint32(bits>>32))
}

func TestMDXOrderedTraversal(t *testing.T) {
	path := buildFixture(t)
	mf, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()

	c := mf.NewCursor()
	if !c.SetTag("test1") {
		t.Fatal("expected SetTag(test1) to find the tag")
	}

	if n, err := c.GotoTop(); err != nil || n != 3 {
		t.Fatalf("GotoTop() = %d, %v; want 3, nil", n, err)
	}
	if n, err := c.Next(); err != nil || n != 1 {
		t.Fatalf("Next() = %d, %v; want 1, nil", n, err)
	}
	if n, err := c.Next(); err != nil || n != 2 {
		t.Fatalf("Next() = %d, %v; want 2, nil", n, err)
	}
	if n, err := c.Next(); err != nil || n != RecordNumberEOF {
		t.Fatalf("Next() = %d, %v; want EOF", n, err)
	}

	if n, err := c.GotoBottom(); err != nil || n != 2 {
		t.Fatalf("GotoBottom() = %d, %v; want 2, nil", n, err)
	}
	if n, err := c.Prev(); err != nil || n != 1 {
		t.Fatalf("Prev() = %d, %v; want 1, nil", n, err)
	}
	if n, err := c.Prev(); err != nil || n != 3 {
		t.Fatalf("Prev() = %d, %v; want 3, nil", n, err)
	}
	if n, err := c.Prev(); err != nil || n != RecordNumberBOF {
		t.Fatalf("Prev() = %d, %v; want BOF", n, err)
	}
}

func TestMDXCharacterLookup(t *testing.T) {
	path := buildFixture(t)
	mf, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()

	c := mf.NewCursor()
	c.SetTag("test1")

	if n, err := c.Find("test2"); err != nil || n != 2 {
		t.Fatalf(`Find("test2") = %d, %v; want 2, nil`, n, err)
	}
	if n, err := c.Find("nonexistent"); err != nil || n != RecordNumberEOF {
		t.Fatalf(`Find("nonexistent") = %d, %v; want EOF, nil`, n, err)
	}
}

func TestMDXNumericLookup(t *testing.T) {
	path := buildFixture(t)
	mf, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()

	c := mf.NewCursor()
	c.SetTag("test2")

	cases := []struct {
		value float64
		want  int
	}{
		{10, 1},
		{30, RecordNumberEOF},
		{15, 3},
		{20, 2},
	}
	for _, tc := range cases {
		n, err := c.Find(tc.value)
		if err != nil {
			t.Fatalf("Find(%v) error: %v", tc.value, err)
		}
		if n != tc.want {
			t.Fatalf("Find(%v) = %d, want %d", tc.value, n, tc.want)
		}
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mdx"), nil); err == nil {
		t.Fatal("expected an error opening a missing MDX file")
	}
}

func TestOpenTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.mdx")
	if err := os.WriteFile(path, make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, nil); err == nil {
		t.Fatal("expected a truncation error opening a short MDX header")
	}
}
