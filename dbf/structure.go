package dbf

import (
	"fmt"

	"github.com/mkfoss/dbfx/caldate"
	"github.com/mkfoss/dbfx/dbferr"
)

// Structure is the header-derived metadata of spec.md §3/§4.4: an ordered,
// duplicate-free field list plus the header/record geometry and the status
// flags packed into byte 0 and bytes 14/15/28 of the DBF header.
type Structure struct {
	fields []Field

	HeaderLength int
	RecordLength int
	RecordCount  int
	LastUpdated  caldate.Date

	DBTPaired         bool
	MDXPaired         bool
	MemoExists        bool
	TransactionActive bool
	DataEncrypted     bool
}

// NewStructure builds a Structure from an ordered, already-constructed
// field list, rejecting duplicate field names (spec.md §3: "duplicates by
// name are rejected on create").
func NewStructure(fields []Field) (*Structure, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return nil, fmt.Errorf("%w: duplicate field name %q", dbferr.ErrInvalidArgument, f.Name())
		}
		seen[f.Name()] = true
	}
	s := &Structure{fields: append([]Field(nil), fields...)}
	s.calculateLengths()
	for _, f := range fields {
		if f.Type().IsMemoLike() {
			s.MemoExists = true
			s.DBTPaired = true
			break
		}
	}
	return s, nil
}

// NewStructureFromFields builds a Structure straight from a slice of
// (name, type, length, decimals) tuples in one call, dbfx's equivalent of
// mkfoss-foxi's D4Create bulk []Field4Info ergonomics (pkg/gocore/create4.go):
// each tuple runs through NewField, then the resulting []Field through
// NewStructure.
func NewStructureFromFields(specs []FieldSpec) (*Structure, error) {
	fields, err := NewFields(specs)
	if err != nil {
		return nil, err
	}
	return NewStructure(fields)
}

// Fields returns the ordered field list. The slice is a copy; mutating it
// does not affect the structure.
func (s *Structure) Fields() []Field { return append([]Field(nil), s.fields...) }

// FieldCount returns the number of fields.
func (s *Structure) FieldCount() int { return len(s.fields) }

// FieldAt returns the 1-based field by position (spec.md §7:
// ErrInvalidArgument when out of 1..FieldCount()).
func (s *Structure) FieldAt(n int) (Field, error) {
	if n < 1 || n > len(s.fields) {
		return Field{}, fmt.Errorf("%w: field number %d out of range 1..%d", dbferr.ErrInvalidArgument, n, len(s.fields))
	}
	return s.fields[n-1], nil
}

// FieldIndex returns the 1-based position of the named field, or an error
// if no field has that name.
func (s *Structure) FieldIndex(name string) (int, error) {
	for i, f := range s.fields {
		if f.Name() == name {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: field %q not found", dbferr.ErrInvalidArgument, name)
}

// calculateLengths recomputes RecordLength and HeaderLength from the
// current field list (spec.md §3 invariants):
//
//	headerLength = 32 + 32*fieldCount + 1
//	recordLength = 1 + sum(field.length)
func (s *Structure) calculateLengths() {
	recordLength := 1
	for _, f := range s.fields {
		recordLength += f.Length()
	}
	s.RecordLength = recordLength
	s.HeaderLength = 32 + 32*len(s.fields) + 1
}

// fieldOffset returns the byte offset of field n (1-based) within a
// record, counting the leading deletion-flag byte.
func (s *Structure) fieldOffset(n int) int {
	offset := 1
	for i := 0; i < n-1; i++ {
		offset += s.fields[i].Length()
	}
	return offset
}
