package dbf

import "github.com/mkfoss/dbfx/mdx"

// Skipper is the pluggable "advance by N records" operation of spec.md
// §4.9 (C9): either a Linear skipper over raw record order or an Indexed
// skipper driven by an MDX cursor's next/prev.
type Skipper interface {
	Skip(offset int) (int, error)
}

// LinearSkipper implements Skip as gotoRecord(currentRecordNumber + offset)
// directly against the table's own cursor — the no-index case.
type LinearSkipper struct {
	Table *Table
}

// Skip moves the table's cursor by offset records and returns the
// resulting record number (BOF/EOF sentinel on overrun).
func (s LinearSkipper) Skip(offset int) (int, error) {
	if offset == 0 {
		return s.Table.RecordNumber(), nil
	}
	if err := s.Table.GotoRecord(s.Table.RecordNumber() + offset); err != nil {
		return 0, err
	}
	return s.Table.RecordNumber(), nil
}

// IndexedSkipper implements Skip by walking an MDX cursor's ordered
// traversal: offset > 0 calls Next offset times, offset < 0 calls Prev
// |offset| times, per spec.md §9's corrected (non-swapped) loop bounds —
// the source's forward/backward conditions were inverted; this follows
// the intended behavior the design note specifies, not the swapped one.
type IndexedSkipper struct {
	Cursor *mdx.Cursor
}

// Skip advances the MDX cursor by offset steps, returning the terminal
// record number or the BOF/EOF sentinel if traversal runs out first.
func (s IndexedSkipper) Skip(offset int) (int, error) {
	current, err := s.Cursor.Current()
	if err != nil {
		return 0, err
	}
	if offset == 0 {
		return current, nil
	}

	var n int
	if offset > 0 {
		for i := 0; i < offset; i++ {
			n, err = s.Cursor.Next()
			if err != nil {
				return 0, err
			}
			if n == mdx.RecordNumberEOF {
				return n, nil
			}
		}
		return n, nil
	}

	for i := 0; i < -offset; i++ {
		n, err = s.Cursor.Prev()
		if err != nil {
			return 0, err
		}
		if n == mdx.RecordNumberBOF {
			return n, nil
		}
	}
	return n, nil
}
