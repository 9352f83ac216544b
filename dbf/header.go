package dbf

import (
	"fmt"
	"io"

	"github.com/mkfoss/dbfx/caldate"
	"github.com/mkfoss/dbfx/config"
	"github.com/mkfoss/dbfx/dbferr"
	"github.com/mkfoss/dbfx/internal/codec"
)

// Header byte layout (spec.md §4.6): 32-byte main header, then one
// 32-byte field descriptor per field, terminated by 0x0D.
const (
	headerSize          = 32
	fieldDescriptorSize = 32
	fieldDescriptorEnd  = 0x0D
	endOfFileMarker     = 0x1A
	deletedFlag         = '*'
	activeFlag          = ' '
)

const (
	versionMask    = 0x07
	memoExistsBit  = 1 << 3
	dbtPairedBit   = 1 << 7
)

// readHeaderAndFields reads the 32-byte header and the field descriptor
// list that follows it, returning a Structure with HeaderLength,
// RecordLength, RecordCount and LastUpdated populated from disk (rather
// than recomputed), mirroring go-dbase's readHeader/readColumns
// (dbase/io_unix.go) translated to the field layout spec.md §4.6 defines.
func readHeaderAndFields(r io.ReaderAt) (*Structure, byte, error) {
	buf := make([]byte, headerSize)
	if err := codec.BufferedRead(r, buf, 0, headerSize); err != nil {
		return nil, 0, err
	}

	signature := buf[0]
	s := &Structure{
		RecordCount:       int(codec.Uint32(buf[4:8])),
		HeaderLength:      int(codec.Uint16(buf[8:10])),
		RecordLength:      int(codec.Uint16(buf[10:12])),
		TransactionActive: buf[14] != 0,
		DataEncrypted:     buf[15] != 0,
		MDXPaired:         buf[28] != 0,
		MemoExists:        signature&memoExistsBit != 0,
		DBTPaired:         signature&0x80 != 0,
	}
	year := int(buf[1])
	if year < 80 {
		year += 2000
	} else {
		year += 1900
	}
	s.LastUpdated = caldate.New(int(buf[2]), int(buf[3]), year)

	fields, err := readFieldDescriptors(r, int64(headerSize), s.HeaderLength)
	if err != nil {
		return nil, 0, err
	}
	s.fields = fields

	return s, signature, nil
}

// readFieldDescriptors reads 32-byte field descriptors starting at
// position until the 0x0D terminator, per spec.md §4.6: bytes 0..10 name,
// byte 11 type, byte 16 length, byte 17 decimals (or length high byte for
// C), remaining bytes skipped.
func readFieldDescriptors(r io.ReaderAt, position int64, headerLength int) ([]Field, error) {
	var fields []Field
	buf := make([]byte, fieldDescriptorSize)
	for {
		if headerLength > 0 && position >= int64(headerLength)-1 {
			break
		}
		marker := make([]byte, 1)
		if err := codec.BufferedRead(r, marker, position, 1); err != nil {
			return nil, err
		}
		if marker[0] == fieldDescriptorEnd {
			break
		}
		if err := codec.BufferedRead(r, buf, position, fieldDescriptorSize); err != nil {
			return nil, err
		}
		name := codec.FixedASCII(buf[0:11])
		typ := parseFieldType(buf[11])
		length, decimals := decodedLength(typ, buf[16], buf[17])
		f, err := rawField(name, typ, length, decimals)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		position += fieldDescriptorSize
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: DBF has no field descriptors", dbferr.ErrCorruptStructure)
	}
	return fields, nil
}

// rawField builds a Field from already-decoded on-disk values without
// re-normalizing length/decimals (readFieldDescriptors has already
// reversed the on-disk packing), only validating the name and type.
func rawField(name string, typ FieldType, length, decimals int) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("%w: empty field name in descriptor", dbferr.ErrCorruptStructure)
	}
	return Field{name: name, typ: typ, length: length, decimals: decimals}, nil
}

// writeHeaderAndFields writes the 32-byte header followed by one 32-byte
// descriptor per field, the 0x0D terminator, and zero-filled reserved
// bytes — spec.md §6: "an implementer must write zeros in those positions
// on create".
func writeHeaderAndFields(w io.WriterAt, s *Structure, signature byte, cfg config.Config) error {
	buf := make([]byte, s.HeaderLength)
	buf[0] = signature
	year := int(s.LastUpdated.Year)
	if year >= 1900 {
		year -= 1900
	}
	buf[1] = byte(year)
	buf[2] = byte(s.LastUpdated.Month)
	buf[3] = byte(s.LastUpdated.Day)
	codec.PutUint32(buf[4:8], uint32(s.RecordCount))
	codec.PutUint16(buf[8:10], uint16(s.HeaderLength))
	codec.PutUint16(buf[10:12], uint16(s.RecordLength))
	if s.TransactionActive {
		buf[14] = 1
	}
	if s.DataEncrypted {
		buf[15] = 1
	}
	if s.MDXPaired {
		buf[28] = 1
	}

	pos := headerSize
	for _, f := range s.fields {
		desc := buf[pos : pos+fieldDescriptorSize]
		codec.PutFixedASCII(desc[0:11], f.Name())
		desc[11] = byte(f.Type())
		desc[16] = f.lengthByte()
		desc[17] = f.decimalsByte()
		pos += fieldDescriptorSize
	}
	buf[pos] = fieldDescriptorEnd
	pos++
	// Remaining bytes up to HeaderLength-1 (if any slack beyond the
	// terminator) stay zero-filled, matching spec.md §6.

	cfg.Sugared().Debugw("rewriting DBF header", "headerLength", s.HeaderLength, "fields", len(s.fields), "recordCount", s.RecordCount)
	if _, err := w.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: writing header: %v", dbferr.ErrIOFailure, err)
	}
	return nil
}
