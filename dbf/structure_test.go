package dbf

import (
	"path/filepath"
	"testing"

	"github.com/mkfoss/dbfx/config"
)

// TestStructureRoundTrip exercises spec.md §8's "DBF structure round-trip"
// property: create with N fields, close, reopen, and the field list,
// headerLength, recordLength and recordCount must match exactly.
func TestStructureRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.dbf")

	fields := []Field{
		mustField(t, "NAME", 'C', 20, 0),
		mustField(t, "AGE", 'N', 3, 0),
		mustField(t, "BALANCE", 'N', 10, 2),
		mustField(t, "ACTIVE", 'L', 1, 0),
		mustField(t, "JOINED", 'D', 8, 0),
	}

	created, err := Create(path, fields, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if err := created.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	s := reopened.Structure()
	if s.FieldCount() != len(fields) {
		t.Fatalf("FieldCount() = %d, want %d", s.FieldCount(), len(fields))
	}
	for i, want := range fields {
		got, err := s.FieldAt(i + 1)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name() != want.Name() || got.Type() != want.Type() || got.Length() != want.Length() || got.Decimals() != want.Decimals() {
			t.Fatalf("field %d = %+v, want %+v", i+1, got, want)
		}
	}
	if s.HeaderLength != 32+32*len(fields)+1 {
		t.Fatalf("HeaderLength = %d, want %d", s.HeaderLength, 32+32*len(fields)+1)
	}
	wantRecordLength := 1
	for _, f := range fields {
		wantRecordLength += f.Length()
	}
	if s.RecordLength != wantRecordLength {
		t.Fatalf("RecordLength = %d, want %d", s.RecordLength, wantRecordLength)
	}
	if s.RecordCount != 0 {
		t.Fatalf("RecordCount = %d, want 0", s.RecordCount)
	}
}

// TestNewStructureFromFields exercises the Field4Info-style bulk create
// path: a structure built from raw tuples must match one built from the
// equivalent NewField-constructed fields.
func TestNewStructureFromFields(t *testing.T) {
	specs := []FieldSpec{
		{Name: "NAME", Type: 'C', Length: 20, Decimals: 0},
		{Name: "AGE", Type: 'N', Length: 3, Decimals: 0},
		{Name: "BALANCE", Type: 'N', Length: 10, Decimals: 2},
	}
	s, err := NewStructureFromFields(specs)
	if err != nil {
		t.Fatal(err)
	}
	if s.FieldCount() != len(specs) {
		t.Fatalf("FieldCount() = %d, want %d", s.FieldCount(), len(specs))
	}
	for i, spec := range specs {
		got, err := s.FieldAt(i + 1)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name() != spec.Name || byte(got.Type()) != spec.Type || got.Length() != spec.Length || got.Decimals() != spec.Decimals {
			t.Fatalf("field %d = %+v, want %+v", i+1, got, spec)
		}
	}
}

func mustField(t *testing.T, name string, typ byte, length, decimals int) Field {
	t.Helper()
	f, err := NewField(name, typ, length, decimals)
	if err != nil {
		t.Fatal(err)
	}
	return f
}
