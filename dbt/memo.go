// Package dbt implements the DBT memo store of spec.md §4.5: a
// content-addressable blob area keyed by starting block number, with a
// free-list pointer and block-aligned allocation whose reuse/append policy
// depends on size.
//
// Grounded on go-dbase's readMemo/writeMemo/writeMemoHeader
// (dbase/io_unix.go), adapted from its FoxPro FPT layout (big-endian
// length, text/binary signature word) to the dBase III/IV DBT layout
// spec.md §4.5 specifies: little-endian nextAvailableBlock, an 8-byte
// owner base name, a 16-bit block length, and a fixed `FF FF 08 00`
// sentinel prefixing every memo record instead of go-dbase's BigEndian
// sign/length words. Every call opens and closes its own handle, per
// spec.md §4.5's "avoids a long-lived cycle between DBF and DBT" design
// note — mirrored from go-dbase's readMemo, which likewise takes the
// already-open *os.File it's given and never caches one across calls.
package dbt

import (
	"fmt"
	"os"

	"github.com/mkfoss/dbfx/dbferr"
	"github.com/mkfoss/dbfx/internal/codec"
	"github.com/mkfoss/dbfx/internal/lockfile"
	"go.uber.org/zap"
)

// Header sentinel bytes that prefix every memo record.
var sentinel = [4]byte{0xFF, 0xFF, 0x08, 0x00}

const (
	sentinelLen   = 4
	lengthFieldSz = 4
	memoHeaderLen = 8 // sentinel + length field
	blockZeroSize = 512
)

// Store is an open handle to a DBT file's static parameters: block length
// and owner base name. It does not hold a live *os.File between calls —
// Open validates the file exists and reads block 0, Create writes block 0;
// ReadMemo and WriteMemo each open their own handle.
type Store struct {
	path            string
	blockLength     int
	ownerBaseName   string
	fileLocking     bool
	synchronousMode bool
	sugared         *zap.SugaredLogger
}

// logger returns s.sugared, substituting a no-op logger when none was
// configured — mirrors config.Config.Sugared's nil-safety.
func (s *Store) logger() *zap.SugaredLogger {
	if s.sugared == nil {
		return zap.NewNop().Sugar()
	}
	return s.sugared
}

// Open validates that path exists and reads its block-0 header (block
// length, owner base name), without keeping the file open. sugared may be
// nil.
func Open(path string, fileLocking, synchronous bool, sugared *zap.SugaredLogger) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening DBT %s: %v", dbferr.ErrIOFailure, path, err)
	}
	defer f.Close()

	block0 := make([]byte, blockZeroSize)
	if err := codec.BufferedRead(f, block0, 0, blockZeroSize); err != nil {
		return nil, err
	}
	blockLength := int(codec.Uint16(block0[20:22]))
	if blockLength < 64 {
		return nil, fmt.Errorf("%w: DBT block length %d < 64", dbferr.ErrCorruptStructure, blockLength)
	}
	return &Store{
		path:            path,
		blockLength:     blockLength,
		ownerBaseName:   codec.FixedASCII(block0[8:16]),
		fileLocking:     fileLocking,
		synchronousMode: synchronous,
		sugared:         sugared,
	}, nil
}

// Create initializes a fresh DBT: block 0 with nextAvailableBlock = 1, the
// given block length, and the DBF's base name, padded to 512 bytes. sugared
// may be nil.
func Create(path string, ownerBaseName string, blockLength int, synchronous bool, sugared *zap.SugaredLogger) (*Store, error) {
	if blockLength < 64 || blockLength%64 != 0 {
		return nil, fmt.Errorf("%w: DBT block length %d must be a multiple of 64 and >= 64", dbferr.ErrInvalidArgument, blockLength)
	}
	flags := os.O_RDWR | os.O_CREATE | os.O_TRUNC
	if synchronous {
		flags |= os.O_SYNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: creating DBT %s: %v", dbferr.ErrIOFailure, path, err)
	}
	defer f.Close()

	block0 := make([]byte, blockZeroSize)
	codec.PutUint32(block0[0:4], 1)
	codec.PutUint32(block0[4:8], 1) // "an initial 1 written at create"
	codec.PutFixedASCII(block0[8:16], ownerBaseName)
	codec.PutUint16(block0[20:22], uint16(blockLength))
	if _, err := f.WriteAt(block0, 0); err != nil {
		return nil, fmt.Errorf("%w: writing DBT header: %v", dbferr.ErrIOFailure, err)
	}
	return &Store{path: path, blockLength: blockLength, ownerBaseName: ownerBaseName, synchronousMode: synchronous, sugared: sugared}, nil
}

// BlockLength returns the store's block size in bytes.
func (s *Store) BlockLength() int { return s.blockLength }

// OwnerBaseName returns the first 8 characters of the paired DBF's base
// name, as recorded in block 0.
func (s *Store) OwnerBaseName() string { return s.ownerBaseName }

// blocksFor returns the number of blocks a value of the given byte length
// occupies: ceil((valueLength + 8) / blockLength).
func (s *Store) blocksFor(valueLength int) int {
	return ceilDiv(valueLength+memoHeaderLen, s.blockLength)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// ReadMemo reads the value stored at blockNumber: validates the 4-byte
// sentinel, reads the 32-bit total length (header + value), and returns
// the value bytes. A sentinel mismatch is ErrCorruptStructure.
func (s *Store) ReadMemo(blockNumber uint32) ([]byte, error) {
	if blockNumber == 0 {
		return nil, fmt.Errorf("%w: memo block number 0 is invalid", dbferr.ErrInvalidArgument)
	}
	f, err := os.OpenFile(s.path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening DBT %s: %v", dbferr.ErrIOFailure, s.path, err)
	}
	defer f.Close()

	offset := int64(blockNumber) * int64(s.blockLength)
	header := make([]byte, memoHeaderLen)
	if err := codec.BufferedRead(f, header, offset, memoHeaderLen); err != nil {
		return nil, err
	}
	if header[0] != sentinel[0] || header[1] != sentinel[1] || header[2] != sentinel[2] || header[3] != sentinel[3] {
		return nil, fmt.Errorf("%w: DBT block %d missing FF FF 08 00 sentinel", dbferr.ErrCorruptStructure, blockNumber)
	}
	total := int(codec.Uint32(header[4:8]))
	if total < memoHeaderLen {
		return nil, fmt.Errorf("%w: DBT block %d records length %d < %d", dbferr.ErrCorruptStructure, blockNumber, total, memoHeaderLen)
	}
	valueLength := total - memoHeaderLen

	if s.fileLocking {
		region := lockfile.FromFile(f, offset, int64(total))
		if err := region.LockShared(); err != nil {
			return nil, err
		}
		defer region.Unlock()
	}

	value := make([]byte, valueLength)
	if valueLength > 0 {
		if err := codec.BufferedRead(f, value, offset+memoHeaderLen, valueLength); err != nil {
			return nil, err
		}
	}
	return value, nil
}

// WriteMemo stores newValue, reusing the chain starting at oldBlockNumber
// when it still fits (newBlocks <= oldBlocks and oldBlockNumber != 0), or
// appending a fresh chain at the end of the file otherwise. It returns the
// block number the DBF's memo column should record — unchanged from
// oldBlockNumber on the reuse path, or a new block on the append path.
func (s *Store) WriteMemo(oldBlockNumber uint32, oldLength int, newValue []byte) (uint32, error) {
	newLength := len(newValue)
	newBlocks := s.blocksFor(newLength)

	flags := os.O_RDWR
	if s.synchronousMode {
		flags |= os.O_SYNC
	}
	f, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: opening DBT %s: %v", dbferr.ErrIOFailure, s.path, err)
	}
	defer f.Close()

	if oldBlockNumber != 0 {
		oldBlocks := s.blocksFor(oldLength)
		if newBlocks <= oldBlocks {
			s.logger().Debugw("reusing memo chain", "block", oldBlockNumber, "oldBlocks", oldBlocks, "newBlocks", newBlocks)
			if err := s.writeBlockBody(f, oldBlockNumber, newValue, oldBlocks); err != nil {
				return 0, err
			}
			return oldBlockNumber, nil
		}
	}

	s.logger().Debugw("appending new memo chain", "oldBlock", oldBlockNumber, "newBlocks", newBlocks)
	blockNumber, err := s.allocateBlocks(f, newBlocks)
	if err != nil {
		return 0, err
	}
	if err := s.writeBlockBody(f, blockNumber, newValue, newBlocks); err != nil {
		return 0, err
	}
	return blockNumber, nil
}

// allocateBlocks reads and advances the shared nextAvailableBlock counter
// under an exclusive lock over bytes 0..3 of block 0, spec.md §4.5(e)'s
// "exclusive-lock bytes 0..3" rule.
func (s *Store) allocateBlocks(f *os.File, count int) (uint32, error) {
	var region *lockfile.Region
	if s.fileLocking {
		region = lockfile.FromFile(f, 0, 4)
		if err := region.LockExclusive(); err != nil {
			return 0, err
		}
		defer region.Unlock()
	}

	head := make([]byte, 4)
	if err := codec.BufferedRead(f, head, 0, 4); err != nil {
		return 0, err
	}
	next := codec.Uint32(head)
	advanced := make([]byte, 4)
	codec.PutUint32(advanced, next+uint32(count))
	if _, err := f.WriteAt(advanced, 0); err != nil {
		return 0, fmt.Errorf("%w: writing DBT next-available-block: %v", dbferr.ErrIOFailure, err)
	}
	return next, nil
}

// writeBlockBody writes the sentinel, the 32-bit total length, the value,
// and null padding out to totalBlocks*blockLength at blockNumber.
func (s *Store) writeBlockBody(f *os.File, blockNumber uint32, value []byte, totalBlocks int) error {
	offset := int64(blockNumber) * int64(s.blockLength)
	span := totalBlocks * s.blockLength
	buf := make([]byte, span)
	copy(buf[0:4], sentinel[:])
	codec.PutUint32(buf[4:8], uint32(len(value)+memoHeaderLen))
	copy(buf[memoHeaderLen:], value)
	// Remaining bytes of buf are already zero (null padding).

	if _, err := f.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("%w: writing DBT block %d: %v", dbferr.ErrIOFailure, blockNumber, err)
	}
	return nil
}
