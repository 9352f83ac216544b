package dbf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkfoss/dbfx/caldate"
	"github.com/mkfoss/dbfx/config"
	"github.com/mkfoss/dbfx/dbferr"
	"github.com/mkfoss/dbfx/dbt"
)

// Create writes a new DBF at path for the given structure (spec.md
// §4.6 "Create"): a signature byte, header, field descriptors, the 0x0D
// terminator at headerLength-1, and a trailing 0x1A EOF marker right after
// it at headerLength. If any
// field is memo-like, a paired DBT is created alongside it and the
// dbtPaired bit is set in the signature byte, modeled on mkfoss-foxi's
// D4Create (pkg/gocore/create4.go) bulk-field ergonomics.
func Create(path string, fields []Field, cfg config.Config) (*Table, error) {
	structure, err := NewStructure(fields)
	if err != nil {
		return nil, err
	}
	structure.LastUpdated = caldate.FromJulianDay(currentJulianDay())

	full := resolvePath(path, cfg.CurrentDirectory)
	f, err := os.OpenFile(full, openFlags(cfg, true), 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: creating DBF %s: %v", dbferr.ErrIOFailure, full, err)
	}

	var signature byte = 0x03 // dBase III, no memo
	if structure.MemoExists {
		signature |= dbtPairedBit
		signature |= memoExistsBit
	}

	if err := writeHeaderAndFields(f, structure, signature, cfg); err != nil {
		f.Close()
		return nil, err
	}
	// writeHeaderAndFields already places the 0x0D terminator at the last
	// byte of the header (offset HeaderLength-1); the EOF marker for a
	// brand-new, zero-record table immediately follows it at HeaderLength.
	if _, err := f.WriteAt([]byte{endOfFileMarker}, int64(structure.HeaderLength)); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: writing EOF marker: %v", dbferr.ErrIOFailure, err)
	}

	t := &Table{
		cfg:       cfg,
		file:      f,
		path:      full,
		signature: signature,
		structure: structure,
	}

	if structure.MemoExists {
		memoPath := memoPathFor(full)
		baseName := baseNameNoExt(full)
		store, err := dbt.Create(memoPath, baseName, cfg.BlockSizeBytes(), cfg.SynchronousWritesEnabled, cfg.Sugared())
		if err != nil {
			f.Close()
			return nil, err
		}
		t.memo = store
		t.memoPath = memoPath
	}

	t.gotoRecordLocked(RecordNumberBOF)
	return t, nil
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
