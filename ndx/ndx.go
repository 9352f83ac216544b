// Package ndx implements the single-key NDX B+-tree index reader of
// spec.md §4.7 (C7): fixed 512-byte nodes, a 512-byte structural header,
// and key lookup via find(value).
//
// Grounded on go-dbase's io_unix.go header-read idiom (bufferedRead into a
// fixed-size buffer, then field-by-field little-endian decode) and on
// mkfoss-foxi's index4.go for the general shape of "header then repeated
// fixed-size key records per node" — index4.go itself targets CDX, a
// different on-disk layout, so the node/key-record byte offsets below come
// straight from spec.md §4.7 rather than from that file.
package ndx

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mkfoss/dbfx/dbferr"
	"github.com/mkfoss/dbfx/internal/codec"
)

const nodeSize = 512

// DataType is the key comparison domain of an NDX index.
type DataType uint16

const (
	Character DataType = 0
	Numeric   DataType = 1
)

// Sentinels shared with the DBF cursor (spec.md §3/§6).
const (
	RecordNumberBOF = 0
	RecordNumberEOF = -1
)

// Index is an open NDX file handle: its structural header only. Every
// Find call reads into its own freshly-allocated node buffer (mirroring
// mdx.File.loadNode) rather than a shared field, so concurrent callers on
// the same *Index per spec.md §3/§5 item 2 never race on a mutable buffer.
type Index struct {
	file *os.File

	startBlock   uint32
	totalBlocks  uint32
	keyLength    int
	keysPerBlock int
	dataType     DataType
	unique       bool
	keyExpr      string

	keyRecordSize int
}

// Open reads an NDX's 512-byte header and validates the asserted key
// record size against the computed one (mismatch is ErrCorruptStructure).
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening NDX %s: %v", dbferr.ErrIOFailure, path, err)
	}

	header := make([]byte, nodeSize)
	if err := codec.BufferedRead(f, header, 0, nodeSize); err != nil {
		f.Close()
		return nil, err
	}

	idx := &Index{
		file:         f,
		startBlock:   codec.Uint32(header[0:4]),
		totalBlocks:  codec.Uint32(header[4:8]),
		keyLength:    int(codec.Uint16(header[8:10])),
		keysPerBlock: int(codec.Uint16(header[10:12])),
		dataType:     DataType(codec.Uint16(header[12:14])),
		unique:       codec.Uint16(header[16:18]) != 0,
	}
	assertedSize := int(codec.Uint16(header[14:16]))
	idx.keyRecordSize = ((idx.keyLength + 3) / 4) * 4 + 8
	if assertedSize != idx.keyRecordSize {
		f.Close()
		return nil, fmt.Errorf("%w: NDX key record size %d disagrees with computed %d", dbferr.ErrCorruptStructure, assertedSize, idx.keyRecordSize)
	}
	idx.keyExpr = codec.FixedASCII(header[18:])

	return idx, nil
}

// Close releases the NDX file handle.
func (idx *Index) Close() error {
	if err := idx.file.Close(); err != nil {
		return fmt.Errorf("%w: closing NDX: %v", dbferr.ErrIOFailure, err)
	}
	return nil
}

// KeyExpression returns the source expression string the index was built
// on.
func (idx *Index) KeyExpression() string { return idx.keyExpr }

// Unique reports whether the index enforces key uniqueness.
func (idx *Index) Unique() bool { return idx.unique }

// readBlock reads node blockNumber into a freshly-allocated buffer, owned
// solely by the caller's stack frame.
func (idx *Index) readBlock(blockNumber uint32) ([]byte, error) {
	buf := make([]byte, nodeSize)
	if err := codec.BufferedRead(idx.file, buf, int64(blockNumber)*nodeSize, nodeSize); err != nil {
		return nil, err
	}
	return buf, nil
}

// keyRecord returns the i-th key record's next-block pointer, record
// number, and raw key bytes from the given node buffer.
func (idx *Index) keyRecord(buf []byte, i int) (nextBlock uint32, recNo uint32, key []byte) {
	base := 4 + i*idx.keyRecordSize
	rec := buf[base : base+idx.keyRecordSize]
	nextBlock = codec.Uint32(rec[0:4])
	recNo = codec.Uint32(rec[4:8])
	key = rec[8:idx.keyRecordSize]
	return
}

// Find descends from startBlock per spec.md §4.7: in each node, scan keys
// in order; on cmp >= 0, return the record number if the key is a leaf
// entry (its own nextBlock == 0), else recurse into nextBlock. A node with
// no satisfying key returns RecordNumberEOF.
func (idx *Index) Find(value string) (int, error) {
	searchKey, err := idx.encodeSearchKey(value)
	if err != nil {
		return RecordNumberEOF, err
	}

	block := idx.startBlock
	for {
		buf, err := idx.readBlock(block)
		if err != nil {
			return RecordNumberEOF, err
		}
		keysInBlock := int(codec.Uint32(buf[0:4]))

		found := false
		for i := 0; i < keysInBlock; i++ {
			nextBlock, recNo, key := idx.keyRecord(buf, i)
			cmp := idx.compare(key, searchKey)
			if cmp >= 0 {
				found = true
				if nextBlock == 0 {
					return int(recNo), nil
				}
				block = nextBlock
				break
			}
		}
		if !found {
			return RecordNumberEOF, nil
		}
	}
}

func (idx *Index) encodeSearchKey(value string) ([]byte, error) {
	switch idx.dataType {
	case Character:
		return []byte(codec.PadSpaces(value, idx.keyLength)), nil
	case Numeric:
		// §9: no source specifies NUMERIC comparison for NDX — the method
		// visibly falls through without setting compareResult. This takes
		// the spec's suggested conservative fallback: compare the padded
		// decimal string, same as CHARACTER.
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return nil, fmt.Errorf("%w: parsing NDX numeric search value %q: %v", dbferr.ErrInvalidArgument, value, err)
		}
		return []byte(codec.PadSpaces(value, idx.keyLength)), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized NDX data type %d", dbferr.ErrUnsupportedVariant, idx.dataType)
	}
}

func (idx *Index) compare(stored, search []byte) int {
	s := strings.TrimRight(string(stored), "\x00")
	return strings.Compare(codec.PadSpaces(s, idx.keyLength), string(search))
}
