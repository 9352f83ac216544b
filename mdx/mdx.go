// Package mdx implements the multi-tag MDX B+-tree index reader of
// spec.md §4.8 (C8): a 544-byte file header, a fixed-size tag-descriptor
// table, per-tag header blocks, node lookup, and an ordered MdxCursor
// (top/bottom/next/prev) independent of any DBF cursor.
//
// Grounded on the same "header then fixed-size records" shape as
// mkfoss-foxi's index4.go and go-dbase's structural readers, adapted to
// the byte offsets spec.md §4.8 specifies (MDX's layout has no CDX or FPT
// analogue in the pack, so the field offsets below come directly from the
// spec rather than a transliterated source file).
package mdx

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/mkfoss/dbfx/dbferr"
	"github.com/mkfoss/dbfx/internal/codec"
	"go.uber.org/zap"
)

const (
	headerSize   = 544
	blockUnit    = 512
	minKeysInTag = 1
	maxKeysInTag = 48
	minTagLength = 1
	maxTagLength = 32
)

// Sentinels shared with the DBF cursor (spec.md §3/§6).
const (
	RecordNumberBOF = 0
	RecordNumberEOF = -1
)

// KeyType is a tag's key comparison domain. Date-typed tags are encoded
// as Character per spec.md §4.8.
type KeyType byte

const (
	KeyCharacter KeyType = 'C'
	KeyNumeric   KeyType = 'N'
	KeyDate      KeyType = 'D'
)

// Tag is one index within an MDX container (spec.md §3's MdxTag).
type Tag struct {
	Name        string
	KeyType     KeyType
	Unique      bool
	Descending  bool
	LeftTag     byte
	RightTag    byte
	BackwardTag byte
	HeaderBlock uint32

	RootBlock        uint32
	SizeInBlocks      uint32
	KeyLength        int
	KeysPerBlock     int
	SecondaryKeyType uint16
	KeyItemLength    int

	keyRecordSize int
}

// File is an open MDX container: its file-level header plus the parsed
// tag table, per spec.md §3's "an MDX owns its array of Tag descriptors".
type File struct {
	file *os.File

	Version              byte
	ReindexDate          [3]byte
	DBFName              string
	BlockSizeMultiplier  uint16
	NodeSize             int
	Production           bool
	KeysInTag            int
	TagLength            int
	TagsInUse            int
	NumberOfBlocks       uint32
	FirstFreeBlock       uint32
	AvailableBlock       uint32

	Tags []Tag
}

// Open reads an MDX's 544-byte header and its tag-descriptor table,
// resolving each tag's own header block and cross-checking the echoed
// keyFormat/keyType/size fields (spec.md §4.8: "any echo mismatch is
// fatal").
func Open(path string, sugared *zap.SugaredLogger) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening MDX %s: %v", dbferr.ErrIOFailure, path, err)
	}

	header := make([]byte, headerSize)
	if err := codec.BufferedRead(f, header, 0, headerSize); err != nil {
		f.Close()
		return nil, err
	}

	mf := &File{
		file:                f,
		Version:             header[0],
		DBFName:             codec.FixedASCII(header[4:20]),
		BlockSizeMultiplier: codec.Uint16(header[20:22]),
		NodeSize:            int(codec.Uint16(header[22:24])),
		Production:          header[24] != 0,
		KeysInTag:           int(header[25]),
		TagLength:           int(header[26]),
		TagsInUse:           int(codec.Uint16(header[28:30])),
		NumberOfBlocks:      codec.Uint32(header[32:36]),
		FirstFreeBlock:      codec.Uint32(header[36:40]),
		AvailableBlock:      codec.Uint32(header[40:44]),
	}
	copy(mf.ReindexDate[:], header[1:4])

	if mf.Version != 2 && sugared != nil {
		sugared.Warnw("unrecognized MDX version, expected 2", "version", mf.Version, "path", path)
	}
	if int(mf.BlockSizeMultiplier)*blockUnit != mf.NodeSize {
		f.Close()
		return nil, fmt.Errorf("%w: MDX node size %d != multiplier %d * 512", dbferr.ErrCorruptStructure, mf.NodeSize, mf.BlockSizeMultiplier)
	}
	if mf.KeysInTag < minKeysInTag || mf.KeysInTag > maxKeysInTag {
		f.Close()
		return nil, fmt.Errorf("%w: MDX keysInTag %d out of range %d..%d", dbferr.ErrCorruptStructure, mf.KeysInTag, minKeysInTag, maxKeysInTag)
	}
	if mf.TagLength < minTagLength || mf.TagLength > maxTagLength {
		f.Close()
		return nil, fmt.Errorf("%w: MDX tagLength %d out of range %d..%d", dbferr.ErrCorruptStructure, mf.TagLength, minTagLength, maxTagLength)
	}

	tags, err := readTagTable(f, mf.TagLength, mf.TagsInUse)
	if err != nil {
		f.Close()
		return nil, err
	}
	mf.Tags = tags

	return mf, nil
}

func readTagTable(f *os.File, tagLength, tagsInUse int) ([]Tag, error) {
	tags := make([]Tag, 0, tagsInUse)
	buf := make([]byte, tagLength)
	for i := 0; i < tagsInUse; i++ {
		position := int64(headerSize + i*tagLength)
		if err := codec.BufferedRead(f, buf, position, tagLength); err != nil {
			return nil, err
		}
		headerBlock := codec.Uint32(buf[0:4])
		name := codec.FixedASCII(buf[4:14])
		keyFormat := buf[14]
		keyType := KeyType(buf[19])

		tag := Tag{
			Name:        name,
			KeyType:     keyType,
			Descending:  keyFormat&0x08 != 0,
			Unique:      keyFormat&0x40 != 0,
			LeftTag:     buf[15],
			RightTag:    buf[16],
			BackwardTag: buf[17],
			HeaderBlock: headerBlock,
		}

		if err := readTagHeaderBlock(f, &tag, keyFormat, keyType); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// readTagHeaderBlock reads the tag's own header block at headerBlock*512
// and cross-checks its echoed keyFormat/keyType against the ones parsed
// from the tag-descriptor table.
func readTagHeaderBlock(f *os.File, tag *Tag, expectedFormat byte, expectedType KeyType) error {
	buf := make([]byte, blockUnit)
	if err := codec.BufferedRead(f, buf, int64(tag.HeaderBlock)*blockUnit, blockUnit); err != nil {
		return err
	}

	tag.RootBlock = codec.Uint32(buf[0:4])
	tag.SizeInBlocks = codec.Uint32(buf[4:8])
	echoedFormat := buf[8]
	echoedType := KeyType(buf[9])
	tag.KeyLength = int(codec.Uint16(buf[10:12]))
	tag.KeysPerBlock = int(codec.Uint16(buf[12:14]))
	tag.SecondaryKeyType = codec.Uint16(buf[14:16])
	tag.KeyItemLength = int(codec.Uint16(buf[16:18]))
	echoedUnique := codec.Uint16(buf[18:20]) != 0

	if echoedFormat != expectedFormat || echoedType != expectedType {
		return fmt.Errorf("%w: MDX tag %q header-block echo mismatch", dbferr.ErrCorruptStructure, tag.Name)
	}
	if echoedUnique != tag.Unique {
		return fmt.Errorf("%w: MDX tag %q unique-flag echo mismatch", dbferr.ErrCorruptStructure, tag.Name)
	}
	// The key record holds 4 reserved bytes, a 4-byte
	// nextBlockOrRecordNumber, then the key bytes padded up to a multiple
	// of 4 (spec.md §4.8's per-field byte layout: "bytes 8..keyLength+7
	// key bytes").
	tag.keyRecordSize = 8 + ((tag.KeyLength+3)/4)*4
	return nil
}

// Close releases the MDX file handle.
func (mf *File) Close() error {
	if err := mf.file.Close(); err != nil {
		return fmt.Errorf("%w: closing MDX: %v", dbferr.ErrIOFailure, err)
	}
	return nil
}

// TagByName returns the tag with the given name and whether it was found.
func (mf *File) TagByName(name string) (*Tag, bool) {
	for i := range mf.Tags {
		if mf.Tags[i].Name == name {
			return &mf.Tags[i], true
		}
	}
	return nil, false
}

func (mf *File) readNode(blockNumber uint32, dst []byte) error {
	return codec.BufferedRead(mf.file, dst, int64(blockNumber)*blockUnit, len(dst))
}

// node is a loaded MDX node (one or more 512-byte blocks) for a single tag.
type node struct {
	keysInNode   int
	previousBlock uint32
	buf          []byte
	tag          *Tag
}

func (mf *File) loadNode(tag *Tag, blockNumber uint32) (*node, error) {
	buf := make([]byte, mf.NodeSize)
	if err := mf.readNode(blockNumber, buf); err != nil {
		return nil, err
	}
	return &node{
		keysInNode:    int(codec.Uint32(buf[0:4])),
		previousBlock: codec.Uint32(buf[4:8]),
		buf:           buf,
		tag:           tag,
	}, nil
}

func (n *node) isLeaf() bool { return n.previousBlock == 0 }

// keyRecord returns the i-th key record's nextBlockOrRecordNumber and raw
// key bytes.
func (n *node) keyRecord(i int) (nextOrRec uint32, key []byte) {
	base := 8 + i*n.tag.keyRecordSize
	rec := n.buf[base : base+n.tag.keyRecordSize]
	nextOrRec = codec.Uint32(rec[4:8])
	key = rec[8:n.tag.keyRecordSize]
	return
}

// decodeKey decodes a stored key's raw bytes into a comparable Go value:
// a trimmed string for CHARACTER/DATE, a float64 for NUMERIC.
func decodeKey(tag *Tag, raw []byte) (interface{}, error) {
	switch tag.KeyType {
	case KeyCharacter, KeyDate:
		return strings.TrimRight(string(raw[:tag.KeyLength]), "\x00 "), nil
	case KeyNumeric:
		if tag.KeyLength == 12 {
			return codec.DecodeBCDNumeric(raw)
		}
		return decodeFloat64LE(raw), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized MDX key type %q", dbferr.ErrUnsupportedVariant, byte(tag.KeyType))
	}
}

func decodeFloat64LE(b []byte) float64 {
	bits := uint64(codec.Uint32(b[0:4])) | uint64(codec.Uint32(b[4:8]))<<32
	return math.Float64frombits(bits)
}

// encodeSearchValue mirrors decodeKey for a caller-supplied search value,
// so Find and the cursor comparisons operate in the same domain.
func encodeSearchValue(tag *Tag, value interface{}) (interface{}, error) {
	switch tag.KeyType {
	case KeyCharacter, KeyDate:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: tag %q expects a string search value", dbferr.ErrInvalidArgument, tag.Name)
		}
		return strings.TrimRight(codec.PadSpaces(s, tag.KeyLength), "\x00 "), nil
	case KeyNumeric:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		default:
			return nil, fmt.Errorf("%w: tag %q expects a numeric search value", dbferr.ErrInvalidArgument, tag.Name)
		}
	default:
		return nil, fmt.Errorf("%w: unrecognized MDX key type %q", dbferr.ErrUnsupportedVariant, byte(tag.KeyType))
	}
}

func compareValues(a, b interface{}) (int, error) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("%w: comparing string key against non-string search value", dbferr.ErrInvalidArgument)
		}
		return strings.Compare(av, bv), nil
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, fmt.Errorf("%w: comparing numeric key against non-numeric search value", dbferr.ErrInvalidArgument)
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("%w: unsupported key comparison domain", dbferr.ErrUnsupportedVariant)
	}
}
