// Package dbf implements the DBF table engine: field descriptors (spec.md
// §3/§4.3), table structure (§4.4), and the record-cursor state machine
// (§4.6) with auto-growth, deletion tombstones, a paired memo store, and
// optional locking.
//
// The field-type taxonomy and per-type capability predicates below
// generalize mkfoss-foxi's FieldType* constants (pkg/gocore/types.go),
// which are bare byte constants with no behavior attached; spec.md's
// FieldType entity additionally wants a display name and five capability
// predicates (character-like, date-like, numeric-like, boolean-like,
// memo-like), so FieldType here is a small value type carrying that
// behavior instead of loose constants scattered across switch statements.
package dbf

import (
	"fmt"
	"strings"

	"github.com/mkfoss/dbfx/caldate"
	"github.com/mkfoss/dbfx/dbferr"
)

// FieldType is one of the DBF field type tags spec.md §3 enumerates.
type FieldType byte

// The field type tags in scope. Types outside this set (Integer, Currency,
// DateTime, VarChar, Picture — present in mkfoss-foxi's wider FoxPro
// support) fall through to Unknown, per spec.md §4.6's decode rule.
const (
	Character FieldType = 'C'
	Numeric   FieldType = 'N'
	Logical   FieldType = 'L'
	DateType  FieldType = 'D'
	Memo      FieldType = 'M'
	Binary    FieldType = 'B'
	General   FieldType = 'G'
	Float     FieldType = 'F'
	Unknown   FieldType = 'U'
)

// parseFieldType maps a raw type byte to a known FieldType, defaulting to
// Unknown for anything unrecognized (spec.md §7: UnsupportedVariant "falls
// through to U rather than failing").
func parseFieldType(b byte) FieldType {
	switch FieldType(b) {
	case Character, Numeric, Logical, DateType, Memo, Binary, General, Float:
		return FieldType(b)
	default:
		return Unknown
	}
}

// DisplayName returns the human-readable name of the field type.
func (t FieldType) DisplayName() string {
	switch t {
	case Character:
		return "Character"
	case Numeric:
		return "Numeric"
	case Logical:
		return "Logical"
	case DateType:
		return "Date"
	case Memo:
		return "Memo"
	case Binary:
		return "Binary"
	case General:
		return "General"
	case Float:
		return "Float"
	default:
		return "Unknown"
	}
}

// IsCharacterLike reports whether the type stores text directly in the
// fixed-width record fragment.
func (t FieldType) IsCharacterLike() bool { return t == Character }

// IsDateLike reports whether the type holds a calendar date.
func (t FieldType) IsDateLike() bool { return t == DateType }

// IsNumericLike reports whether the type holds a parsed numeric value.
func (t FieldType) IsNumericLike() bool { return t == Numeric || t == Float }

// IsBooleanLike reports whether the type holds a true/false logical flag.
func (t FieldType) IsBooleanLike() bool { return t == Logical }

// IsMemoLike reports whether values of this type are stored in the DBT
// side file and addressed by a block-number column in the record.
func (t FieldType) IsMemoLike() bool { return t == Memo || t == Binary || t == General }

// String implements fmt.Stringer.
func (t FieldType) String() string { return string(byte(t)) }

// Field is a single column descriptor: name, type, byte length, decimal
// count. Construction normalizes the triple the way spec.md §3 requires.
type Field struct {
	name     string
	typ      FieldType
	length   int
	decimals int
}

// NewField constructs a Field, normalizing length/decimals per type:
//
//   - D forces length 8, decimals 0.
//   - L forces length 1, decimals 0.
//   - C and M force decimals 0.
//   - name is uppercased and truncated to 10 ASCII bytes.
func NewField(name string, typ byte, length, decimals int) (Field, error) {
	ft := parseFieldType(typ)
	name = strings.ToUpper(strings.TrimSpace(name))
	if len(name) == 0 {
		return Field{}, fmt.Errorf("%w: field name must not be empty", dbferr.ErrInvalidArgument)
	}
	if len(name) > 10 {
		name = name[:10]
	}
	if length < 1 || length > 65535 {
		return Field{}, fmt.Errorf("%w: field %s length %d out of range 1..65535", dbferr.ErrInvalidArgument, name, length)
	}
	if decimals < 0 || decimals > length {
		return Field{}, fmt.Errorf("%w: field %s decimals %d out of range 0..%d", dbferr.ErrInvalidArgument, name, decimals, length)
	}

	switch ft {
	case DateType:
		length, decimals = 8, 0
	case Logical:
		length, decimals = 1, 0
	case Character, Memo:
		decimals = 0
	}

	return Field{name: name, typ: ft, length: length, decimals: decimals}, nil
}

// FieldSpec is a (name, type, length, decimals) tuple, the bulk-create
// counterpart to NewField — mirroring mkfoss-foxi's Field4Info ergonomics
// for D4Create's []Field4Info argument.
type FieldSpec struct {
	Name     string
	Type     byte
	Length   int
	Decimals int
}

// NewFields builds a []Field from a slice of FieldSpec tuples in one call,
// running each through NewField and stopping at the first invalid one.
func NewFields(specs []FieldSpec) ([]Field, error) {
	fields := make([]Field, 0, len(specs))
	for _, spec := range specs {
		f, err := NewField(spec.Name, spec.Type, spec.Length, spec.Decimals)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Name returns the (already uppercased, <=10 byte) field name.
func (f Field) Name() string { return f.name }

// Type returns the field's type tag.
func (f Field) Type() FieldType { return f.typ }

// Length returns the declared byte width.
func (f Field) Length() int { return f.length }

// Decimals returns the decimal-digit count (meaningful for N/F types).
func (f Field) Decimals() int { return f.decimals }

// lengthByte and decimalsByte return the two on-disk bytes for this field,
// per spec.md §3: for C, lengths > 255 are stored using the decimals byte
// as the high byte of a 16-bit length.
func (f Field) lengthByte() byte {
	if f.typ == Character && f.length > 255 {
		return byte(f.length & 0xFF)
	}
	return byte(f.length)
}

func (f Field) decimalsByte() byte {
	if f.typ == Character && f.length > 255 {
		return byte(f.length >> 8)
	}
	return byte(f.decimals)
}

// decodedLength reconstructs the declared length from the two on-disk
// bytes, reversing lengthByte/decimalsByte's high-byte packing for C.
func decodedLength(typ FieldType, lengthByte, decimalsByte byte) (length, decimals int) {
	if typ == Character {
		l := int(lengthByte) | int(decimalsByte)<<8
		if l == 0 {
			l = int(lengthByte)
		}
		return l, 0
	}
	return int(lengthByte), int(decimalsByte)
}

// DefaultValue returns the zero value for the field's type (spec.md §4.3):
// empty string for C/M, empty bytes for B/G, numeric zero for N/F, false
// for L, blank Date for D, empty string for U.
func (f Field) DefaultValue() Value {
	switch f.typ {
	case Character, Memo:
		return StringValue("")
	case Binary, General:
		return BytesValue(nil)
	case Numeric, Float:
		return NumberValue(0)
	case Logical:
		return BoolValue(false)
	case DateType:
		return DateValueOf(caldate.Blank())
	default:
		return StringValue("")
	}
}
