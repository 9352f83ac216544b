package dbf

import (
	"path/filepath"
	"testing"

	"github.com/mkfoss/dbfx/caldate"
	"github.com/mkfoss/dbfx/config"
)

func newTestTable(t *testing.T, fields []Field) (*Table, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.dbf")
	tbl, err := Create(path, fields, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	return tbl, path
}

// TestAppendAndReadEveryType exercises spec.md §8's "Append/read" property:
// appendBlank, replace every field, close, reopen, gotoRecord and read back
// the same values for every non-memo type plus a memo field compared as a
// string.
func TestAppendAndReadEveryType(t *testing.T) {
	fields := []Field{
		mustField(t, "NAME", 'C', 20, 0),
		mustField(t, "AGE", 'N', 5, 0),
		mustField(t, "BALANCE", 'N', 10, 2),
		mustField(t, "ACTIVE", 'L', 1, 0),
		mustField(t, "JOINED", 'D', 8, 0),
		mustField(t, "NOTES", 'M', 10, 0),
	}
	tbl, path := newTestTable(t, fields)

	if err := tbl.AppendBlank(); err != nil {
		t.Fatal(err)
	}

	joined := caldate.New(7, 29, 2026)
	writes := map[string]Value{
		"NAME":    StringValue("Ada Lovelace"),
		"AGE":     NumberValue(36),
		"BALANCE": NumberValue(1234.56),
		"ACTIVE":  BoolValue(true),
		"JOINED":  DateValueOf(joined),
		"NOTES":   StringValue("a memo value long enough to span blocks if needed"),
	}
	for name, v := range writes {
		if err := tbl.Replace(name, v); err != nil {
			t.Fatalf("Replace(%s): %v", name, err)
		}
	}

	if err := tbl.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if err := reopened.GotoRecord(1); err != nil {
		t.Fatal(err)
	}

	name, _ := reopened.Value("NAME")
	if s, _ := name.AsString(); s != "Ada Lovelace" {
		t.Fatalf("NAME = %q, want %q", s, "Ada Lovelace")
	}
	age, _ := reopened.Value("AGE")
	if n, _ := age.AsNumber(); n != 36 {
		t.Fatalf("AGE = %v, want 36", n)
	}
	balance, _ := reopened.Value("BALANCE")
	if n, _ := balance.AsNumber(); n != 1234.56 {
		t.Fatalf("BALANCE = %v, want 1234.56", n)
	}
	active, _ := reopened.Value("ACTIVE")
	if b, _ := active.AsBool(); !b {
		t.Fatalf("ACTIVE = %v, want true", b)
	}
	date, _ := reopened.Value("JOINED")
	if d, _ := date.AsDate(); !d.Equal(joined) {
		t.Fatalf("JOINED = %v, want %v", d, joined)
	}
	notes, _ := reopened.Value("NOTES")
	if s, _ := notes.AsString(); s != "a memo value long enough to span blocks if needed" {
		t.Fatalf("NOTES = %q, want the written memo string", s)
	}
}

// TestBOFEOFSafety exercises spec.md §8's "BOF/EOF safety" property: Replace
// at BOF or EOF fails with ErrInvalidArgument and leaves the file untouched.
func TestBOFEOFSafety(t *testing.T) {
	fields := []Field{mustField(t, "NAME", 'C', 10, 0)}
	tbl, _ := newTestTable(t, fields)

	if !tbl.BOF() {
		t.Fatal("expected a freshly created table to start at BOF")
	}
	if err := tbl.Replace("NAME", StringValue("x")); err == nil {
		t.Fatal("expected Replace at BOF to fail")
	}

	if err := tbl.AppendBlank(); err != nil {
		t.Fatal(err)
	}
	// One past the only record: GotoRecord clamps n <= 0 to BOF, so EOF is
	// reached by asking for a record beyond the count.
	if err := tbl.GotoRecord(2); err != nil {
		t.Fatal(err)
	}
	if !tbl.EOF() {
		t.Fatal("expected cursor at EOF")
	}
	if err := tbl.Replace("NAME", StringValue("x")); err == nil {
		t.Fatal("expected Replace at EOF to fail")
	}
}

func TestDeleteAndUndelete(t *testing.T) {
	fields := []Field{mustField(t, "NAME", 'C', 10, 0)}
	tbl, _ := newTestTable(t, fields)

	if err := tbl.AppendBlank(); err != nil {
		t.Fatal(err)
	}
	if tbl.Deleted() {
		t.Fatal("expected a freshly appended record to not be deleted")
	}
	if err := tbl.Delete(); err != nil {
		t.Fatal(err)
	}
	if !tbl.Deleted() {
		t.Fatal("expected Deleted() to be true after Delete()")
	}
	if err := tbl.Undelete(); err != nil {
		t.Fatal(err)
	}
	if tbl.Deleted() {
		t.Fatal("expected Deleted() to be false after Undelete()")
	}
}

func TestFindLinearScan(t *testing.T) {
	fields := []Field{mustField(t, "NAME", 'C', 10, 0)}
	tbl, _ := newTestTable(t, fields)

	names := []string{"alice", "bob", "carol"}
	for _, n := range names {
		if err := tbl.AppendBlank(); err != nil {
			t.Fatal(err)
		}
		if err := tbl.Replace("NAME", StringValue(n)); err != nil {
			t.Fatal(err)
		}
	}

	n, err := tbl.Find("NAME", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Find(bob) = %d, want 2", n)
	}

	n, err = tbl.Find("NAME", "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if n != RecordNumberEOF {
		t.Fatalf("Find(nobody) = %d, want EOF", n)
	}
}
