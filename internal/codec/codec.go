// Package codec provides the little-endian fixed-width primitives shared by
// the dbf, dbt, ndx and mdx readers: integer pack/unpack, fixed-width ASCII
// fields, the MDX 12-byte BCD numeric key encoding, and a bounded buffered
// read over a random-access file that retries short reads and turns a
// premature EOF into dbferr.ErrTruncatedFile.
//
// The retry-until-full read loop mirrors go-dbase's readHeader/readRow
// (dbase/io_unix.go), which read into a fixed buffer and check the byte
// count; ReadAt here additionally loops instead of failing on the first
// short read, since os.File.ReadAt is not guaranteed to fill its buffer
// in one call on all platforms.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mkfoss/dbfx/dbferr"
)

// BufferedRead reads exactly len(dst) bytes from r starting at position,
// looping over partial reads. EOF reached before dst is filled is reported
// as dbferr.ErrTruncatedFile.
func BufferedRead(r io.ReaderAt, dst []byte, position int64, length int) error {
	if len(dst) < length {
		return fmt.Errorf("dbfx/codec: destination buffer too small: %d < %d", len(dst), length)
	}
	read := 0
	for read < length {
		n, err := r.ReadAt(dst[read:length], position+int64(read))
		read += n
		if err != nil {
			if err == io.EOF && read >= length {
				break
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return fmt.Errorf("%w: wanted %d bytes at offset %d, got %d: %v", dbferr.ErrTruncatedFile, length, position, read, err)
			}
			return fmt.Errorf("%w: %v", dbferr.ErrIOFailure, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: no progress reading %d bytes at offset %d", dbferr.ErrTruncatedFile, length, position)
		}
	}
	return nil
}

// Uint16 decodes a little-endian uint16.
func Uint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// Uint32 decodes a little-endian uint32.
func Uint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// PutUint16 encodes v little-endian into b (which must be at least 2 bytes).
func PutUint16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// PutUint32 encodes v little-endian into b (which must be at least 4 bytes).
func PutUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// Int8 reinterprets a byte as signed.
func Int8(b byte) int8 { return int8(b) }

// FixedASCII trims trailing NUL bytes from a fixed-width ASCII field.
func FixedASCII(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

// PutFixedASCII copies s into a NUL-padded fixed-width field of len(dst)
// bytes, truncating s if it is longer.
func PutFixedASCII(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
}

// PadSpaces returns s right-padded with spaces to width (or truncated if
// longer than width).
func PadSpaces(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	buf := make([]byte, width)
	copy(buf, s)
	for i := len(s); i < width; i++ {
		buf[i] = ' '
	}
	return string(buf)
}

// PadSpacesLeft returns s left-padded with spaces to width (or truncated
// from the left if longer than width).
func PadSpacesLeft(s string, width int) string {
	if len(s) >= width {
		return s[len(s)-width:]
	}
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = ' '
	}
	copy(buf[width-len(s):], s)
	return string(buf)
}

// BCDSignByte values (second byte of the MDX 12-byte numeric key encoding).
const (
	bcdPositiveWithDecimal    = 0x51
	bcdPositiveWithoutDecimal = 0x29
	bcdNegativeWithDecimal    = 0xD1
	bcdNegativeWithoutDecimal = 0xA9
	bcdZero                   = 0x10
)

// DecodeBCDNumeric decodes the MDX 12-byte decimal numeric key encoding
// (spec.md §4.8): byte 0 is a size byte (digitsLeftOfDecimal = byte0 -
// 0x34), byte 1 is a sign/shape flag, and bytes 2..10 pack up to 18 decimal
// digits two per byte (high nibble then low nibble), accumulated in base
// 100 and scaled by 10^(18 - digitsLeftOfDecimal); byte 11 is not read.
func DecodeBCDNumeric(key []byte) (float64, error) {
	if len(key) < 12 {
		return 0, fmt.Errorf("%w: BCD numeric key shorter than 12 bytes", dbferr.ErrCorruptStructure)
	}
	sizeByte := key[0]
	signByte := key[1]
	if signByte == bcdZero {
		return 0, nil
	}
	negative := false
	switch signByte {
	case bcdPositiveWithDecimal, bcdPositiveWithoutDecimal:
		negative = false
	case bcdNegativeWithDecimal, bcdNegativeWithoutDecimal:
		negative = true
	default:
		return 0, fmt.Errorf("%w: unrecognized BCD sign byte 0x%02x", dbferr.ErrUnsupportedVariant, signByte)
	}
	digitsLeftOfDecimal := int(sizeByte) - 0x34

	// Only the first 9 of the 10 digit bytes carry the 18 packed decimal
	// digits; the trailing byte (key[11]) is reserved and not accumulated.
	lv := uint64(0)
	for _, b := range key[2:11] {
		lv = lv*100 + uint64(b>>4)*10 + uint64(b&0x0F)
	}
	value := float64(lv) / pow10(18-digitsLeftOfDecimal)
	if negative {
		value = -value
	}
	return value, nil
}

func pow10(exp int) float64 {
	if exp < 0 {
		v := 1.0
		for i := 0; i < -exp; i++ {
			v *= 10
		}
		return 1 / v
	}
	v := 1.0
	for i := 0; i < exp; i++ {
		v *= 10
	}
	return v
}
