package dbf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mkfoss/dbfx/caldate"
	"github.com/mkfoss/dbfx/config"
	"github.com/mkfoss/dbfx/dbferr"
	"github.com/mkfoss/dbfx/dbt"
	"github.com/mkfoss/dbfx/internal/codec"
	"github.com/mkfoss/dbfx/internal/lockfile"
)

// Cursor sentinels, per spec.md §3/§6.
const (
	RecordNumberBOF = 0
	RecordNumberEOF = -1
)

// Table is a DBF table engine handle: the cursor state machine of spec.md
// §4.6, generalizing mkfoss-foxi's Data4/Data4File split
// (pkg/gocore/data4.go) into a single handle that owns its file, its paired
// memo store, and its own current-record decode cache instead of threading
// a *Code4 context and a package-level data-file list through every call.
type Table struct {
	cfg       config.Config
	file      *os.File
	path      string
	signature byte

	structure *Structure
	memo      *dbt.Store
	memoPath  string

	currentRecordNumber  int
	currentRecordDeleted bool
	currentRecordRaw     []byte
	decoded              map[string]Value

	// mu is the intrinsic lock of spec.md §5 item 2. Only exported methods
	// (and setDeleted, the shared body of Delete/Undelete) acquire it; the
	// ...Locked helpers assume it is already held by their caller, which
	// gives re-entrant call graphs without a recursive mutex.
	mu sync.Mutex
}

// lock acquires the intrinsic lock only when cfg.ThreadSafetyEnabled is
// set (default false), per spec.md §5 item 2: "when thread-safety is
// enabled, every public mutating or non-atomic reading method acquires
// this lock". unlock mirrors it.
func (t *Table) lock() {
	if t.cfg.ThreadSafetyEnabled {
		t.mu.Lock()
	}
}

func (t *Table) unlock() {
	if t.cfg.ThreadSafetyEnabled {
		t.mu.Unlock()
	}
}

// memoPathFor derives the DBT sibling path by replacing the DBF's final
// three extension characters with "dbt", spec.md §6's "DBT path derivation".
func memoPathFor(dbfPath string) string {
	ext := filepath.Ext(dbfPath)
	if len(ext) != 4 {
		return dbfPath[:len(dbfPath)-len(ext)] + ".dbt"
	}
	return dbfPath[:len(dbfPath)-3] + "dbt"
}

// Open opens an existing DBF at path (resolved against cfg.CurrentDirectory
// when relative), parses its header and field descriptors, auto-opens a
// paired DBT when the header's memoExists bit is set, and positions the
// cursor at BOF.
func Open(path string, cfg config.Config) (*Table, error) {
	full := resolvePath(path, cfg.CurrentDirectory)
	f, err := os.OpenFile(full, openFlags(cfg, false), 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening DBF %s: %v", dbferr.ErrIOFailure, full, err)
	}

	structure, signature, err := readHeaderAndFieldsLocked(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}

	t := &Table{
		cfg:       cfg,
		file:      f,
		path:      full,
		signature: signature,
		structure: structure,
	}

	if structure.MemoExists {
		t.memoPath = memoPathFor(full)
		store, err := dbt.Open(t.memoPath, cfg.FileLockingEnabled, cfg.SynchronousWritesEnabled, cfg.Sugared())
		if err != nil {
			cfg.Sugared().Warnw("paired DBT missing or unreadable", "path", t.memoPath, "error", err)
		} else {
			t.memo = store
		}
	}

	t.gotoRecordLocked(RecordNumberBOF)
	return t, nil
}

// readHeaderAndFieldsLocked reads the header with an optional shared region
// lock over bytes 0..31, per spec.md §5(a).
func readHeaderAndFieldsLocked(f *os.File, cfg config.Config) (*Structure, byte, error) {
	if cfg.FileLockingEnabled {
		region := lockfile.FromFile(f, 0, headerSize)
		if err := region.LockShared(); err != nil {
			return nil, 0, err
		}
		defer region.Unlock()
	}
	return readHeaderAndFields(f)
}

func openFlags(cfg config.Config, create bool) int {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE | os.O_TRUNC
	}
	if cfg.SynchronousWritesEnabled {
		flags |= os.O_SYNC
	}
	return flags
}

func resolvePath(path, base string) string {
	if base == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Close releases the table's file handle and any paired DBT reference.
// Closing a DBT is a no-op here since dbt.Store never holds a live handle
// between calls (spec.md §9's "avoids a long-lived cycle" note).
func (t *Table) Close() error {
	t.lock()
	defer t.unlock()
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("%w: closing DBF %s: %v", dbferr.ErrIOFailure, t.path, err)
	}
	return nil
}

// Structure returns the table's field list and geometry metadata.
func (t *Table) Structure() *Structure {
	t.lock()
	defer t.unlock()
	return t.structure
}

// RecordNumber returns the cursor's current record number (0 = BOF, -1 =
// EOF, otherwise 1-based).
func (t *Table) RecordNumber() int {
	t.lock()
	defer t.unlock()
	return t.currentRecordNumber
}

// BOF reports whether the cursor is positioned before the first record.
func (t *Table) BOF() bool {
	t.lock()
	defer t.unlock()
	return t.currentRecordNumber == RecordNumberBOF
}

// EOF reports whether the cursor is positioned past the last record.
func (t *Table) EOF() bool {
	t.lock()
	defer t.unlock()
	return t.currentRecordNumber == RecordNumberEOF
}

// Deleted reports whether the record under the cursor is tombstoned.
func (t *Table) Deleted() bool {
	t.lock()
	defer t.unlock()
	return t.currentRecordDeleted
}

// GotoRecord rereads the header (to observe concurrent appends from other
// handles) and repositions the cursor to n, clamped per spec.md §4.6:
// n <= 0 or an empty table sets BOF; n beyond the record count sets EOF;
// otherwise the cursor lands on n and the record is read and decoded.
func (t *Table) GotoRecord(n int) error {
	t.lock()
	defer t.unlock()
	return t.gotoRecordLocked(n)
}

func (t *Table) gotoRecordLocked(n int) error {
	if err := t.refreshRecordCountLocked(); err != nil {
		return err
	}
	count := t.structure.RecordCount

	switch {
	case n <= 0 || count == 0:
		t.currentRecordNumber = RecordNumberBOF
	case n > count:
		t.currentRecordNumber = RecordNumberEOF
	default:
		t.currentRecordNumber = n
	}

	if t.currentRecordNumber == RecordNumberBOF || t.currentRecordNumber == RecordNumberEOF {
		t.setDefaultValuesLocked()
		return nil
	}
	return t.readRecordLocked(t.currentRecordNumber)
}

// Top positions the cursor at the first record (or BOF if empty).
func (t *Table) Top() error {
	t.lock()
	defer t.unlock()
	return t.gotoRecordLocked(1)
}

// Bottom positions the cursor at the last record (or BOF if empty).
func (t *Table) Bottom() error {
	t.lock()
	defer t.unlock()
	if err := t.refreshRecordCountLocked(); err != nil {
		return err
	}
	return t.gotoRecordLocked(t.structure.RecordCount)
}

// refreshRecordCountLocked rereads bytes 4..7 of the header so a concurrent
// append in another handle becomes visible to gotoRecord's clamp.
func (t *Table) refreshRecordCountLocked() error {
	var region *lockfile.Region
	if t.cfg.FileLockingEnabled {
		region = lockfile.FromFile(t.file, 0, headerSize)
		if err := region.LockShared(); err != nil {
			return err
		}
		defer region.Unlock()
	}
	buf := make([]byte, 4)
	if err := codec.BufferedRead(t.file, buf, 4, 4); err != nil {
		return err
	}
	t.structure.RecordCount = int(codec.Uint32(buf))
	return nil
}

func (t *Table) recordOffset(n int) int64 {
	return int64(t.structure.HeaderLength) + int64(n-1)*int64(t.structure.RecordLength)
}

// readRecordLocked reads record n's raw bytes (under a shared region lock
// over its byte range when enabled) and decodes every field.
func (t *Table) readRecordLocked(n int) error {
	offset := t.recordOffset(n)
	length := t.structure.RecordLength

	if t.cfg.FileLockingEnabled {
		region := lockfile.FromFile(t.file, offset, int64(length))
		if err := region.LockShared(); err != nil {
			return err
		}
		defer region.Unlock()
	}

	buf := make([]byte, length)
	if err := codec.BufferedRead(t.file, buf, offset, length); err != nil {
		return err
	}
	t.currentRecordRaw = buf
	t.currentRecordDeleted = buf[0] == deletedFlag
	return t.decodeRecordLocked()
}

func (t *Table) setDefaultValuesLocked() {
	t.currentRecordRaw = nil
	t.currentRecordDeleted = false
	t.decoded = make(map[string]Value, t.structure.FieldCount())
	for _, f := range t.structure.fields {
		t.decoded[f.Name()] = f.DefaultValue()
	}
}

// decodeRecordLocked decodes every field fragment of currentRecordRaw per
// spec.md §4.6's per-type decode rules.
func (t *Table) decodeRecordLocked() error {
	t.decoded = make(map[string]Value, t.structure.FieldCount())
	for i, f := range t.structure.fields {
		n := i + 1
		off := t.structure.fieldOffset(n)
		raw := t.currentRecordRaw[off : off+f.Length()]
		v, err := t.decodeFieldLocked(f, raw)
		if err != nil {
			return err
		}
		t.decoded[f.Name()] = v
	}
	return nil
}

func (t *Table) decodeFieldLocked(f Field, raw []byte) (Value, error) {
	switch f.Type() {
	case Character:
		s, err := t.cfg.DecodeCharacterBytes(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: field %s code page decode: %v", dbferr.ErrCorruptStructure, f.Name(), err)
		}
		if t.cfg.AutoTrimEnabled {
			s = strings.TrimRight(s, " ")
		}
		return StringValue(s), nil

	case Numeric, Float:
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return f.DefaultValue(), nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: field %s numeric value %q: %v", dbferr.ErrCorruptStructure, f.Name(), s, err)
		}
		return NumberValue(n), nil

	case DateType:
		if len(raw) == 0 || raw[0] == ' ' {
			return DateValueOf(caldate.Blank()), nil
		}
		year, errY := strconv.Atoi(string(raw[0:4]))
		month, errM := strconv.Atoi(string(raw[4:6]))
		day, errD := strconv.Atoi(string(raw[6:8]))
		if errY != nil || errM != nil || errD != nil {
			return DateValueOf(caldate.Blank()), nil
		}
		return DateValueOf(caldate.New(month, day, year)), nil

	case Logical:
		if len(raw) == 0 {
			return BoolValue(false), nil
		}
		switch raw[0] {
		case 'y', 'Y', 't', 'T':
			return BoolValue(true), nil
		default:
			return BoolValue(false), nil
		}

	case Memo, Binary, General:
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return BytesValue(nil), nil
		}
		block, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: field %s memo block %q: %v", dbferr.ErrCorruptStructure, f.Name(), s, err)
		}
		if t.memo == nil {
			return Value{}, fmt.Errorf("%w: field %s references a memo but no DBT is paired", dbferr.ErrInvalidArgument, f.Name())
		}
		value, err := t.memo.ReadMemo(uint32(block))
		if err != nil {
			return Value{}, err
		}
		if f.Type() == Memo {
			return StringValue(string(value)), nil
		}
		return BytesValue(value), nil

	default:
		return StringValue(""), nil
	}
}

// Value returns the decoded value of the named field under the cursor.
func (t *Table) Value(name string) (Value, error) {
	t.lock()
	defer t.unlock()
	v, ok := t.decoded[strings.ToUpper(name)]
	if !ok {
		return Value{}, fmt.Errorf("%w: field %q not found", dbferr.ErrInvalidArgument, name)
	}
	return v, nil
}

// Replace writes newValue into the named field of the record under the
// cursor. Fails with ErrInvalidArgument at BOF/EOF (spec.md §8's "BOF/EOF
// safety" property). Memo fields route through the paired DBT and rewrite
// only the 10-byte block-number column; other fields are padded and
// written in place.
func (t *Table) Replace(name string, value Value) error {
	t.lock()
	defer t.unlock()

	if t.currentRecordNumber == RecordNumberBOF || t.currentRecordNumber == RecordNumberEOF {
		return fmt.Errorf("%w: replace at BOF/EOF", dbferr.ErrInvalidArgument)
	}
	n, err := t.structure.FieldIndex(strings.ToUpper(name))
	if err != nil {
		return err
	}
	f, _ := t.structure.FieldAt(n)
	off := t.structure.fieldOffset(n)

	if f.Type().IsMemoLike() {
		if err := t.replaceMemoLocked(f, off, value); err != nil {
			return err
		}
	} else {
		encoded, err := encodeField(t.cfg, f, value)
		if err != nil {
			return err
		}
		if err := t.writeFieldBytesLocked(off, encoded); err != nil {
			return err
		}
	}

	return t.afterMutationLocked()
}

func (t *Table) writeFieldBytesLocked(off int, encoded []byte) error {
	recordOffset := t.recordOffset(t.currentRecordNumber)
	absolute := recordOffset + int64(off)

	if t.cfg.FileLockingEnabled {
		region := lockfile.FromFile(t.file, absolute, int64(len(encoded)))
		if err := region.LockExclusive(); err != nil {
			return err
		}
		defer region.Unlock()
	}

	if _, err := t.file.WriteAt(encoded, absolute); err != nil {
		return fmt.Errorf("%w: writing field at offset %d: %v", dbferr.ErrIOFailure, absolute, err)
	}
	copy(t.currentRecordRaw[off:off+len(encoded)], encoded)
	return nil
}

func (t *Table) replaceMemoLocked(f Field, off int, value Value) error {
	if t.memo == nil {
		return fmt.Errorf("%w: field %s is memo-typed but no DBT is paired", dbferr.ErrInvalidArgument, f.Name())
	}

	oldRaw := t.currentRecordRaw[off : off+f.Length()]
	oldBlockStr := strings.TrimSpace(string(oldRaw))
	var oldBlock uint32
	var oldLength int
	if oldBlockStr != "" {
		if b, err := strconv.ParseUint(oldBlockStr, 10, 32); err == nil {
			oldBlock = uint32(b)
			if existing, err := t.memo.ReadMemo(oldBlock); err == nil {
				oldLength = len(existing)
			}
		}
	}

	var newBytes []byte
	switch f.Type() {
	case Memo:
		s, err := value.AsString()
		if err != nil {
			return err
		}
		newBytes = []byte(s)
	default:
		b, err := value.AsBytes()
		if err != nil {
			return err
		}
		newBytes = b
	}

	newBlock, err := t.memo.WriteMemo(oldBlock, oldLength, newBytes)
	if err != nil {
		return err
	}

	// The reuse path keeps the same block number, so the DBF column is
	// unchanged; only the append path needs its 10-byte column rewritten.
	if newBlock != oldBlock {
		encoded := []byte(codec.PadSpacesLeft(strconv.FormatUint(uint64(newBlock), 10), f.Length()))
		return t.writeFieldBytesLocked(off, encoded)
	}
	return nil
}

// encodeField renders value into the field's fixed-width on-disk bytes for
// non-memo types.
func encodeField(cfg config.Config, f Field, value Value) ([]byte, error) {
	switch f.Type() {
	case Character:
		s, err := value.AsString()
		if err != nil {
			return nil, err
		}
		raw, err := cfg.EncodeCharacterString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s code page encode: %v", dbferr.ErrInvalidArgument, f.Name(), err)
		}
		if len(raw) > f.Length() {
			raw = raw[:f.Length()]
		}
		return []byte(codec.PadSpaces(string(raw), f.Length())), nil

	case Numeric, Float:
		n, err := value.AsNumber()
		if err != nil {
			return nil, err
		}
		s := strconv.FormatFloat(n, 'f', f.Decimals(), 64)
		return []byte(codec.PadSpacesLeft(s, f.Length())), nil

	case DateType:
		d, err := value.AsDate()
		if err != nil {
			return nil, err
		}
		return []byte(d.Dtos()), nil

	case Logical:
		b, err := value.AsBool()
		if err != nil {
			return nil, err
		}
		if b {
			return []byte{'T'}, nil
		}
		return []byte{'F'}, nil

	default:
		s := value.String()
		if len(s) > f.Length() {
			s = s[:f.Length()]
		}
		return []byte(codec.PadSpaces(s, f.Length())), nil
	}
}

// afterMutationLocked stamps the header's last-modified date and rewrites
// it, per spec.md §4.6's "always call updateLastModifiedDate after any
// mutation" rule.
func (t *Table) afterMutationLocked() error {
	t.structure.LastUpdated = caldate.FromJulianDay(todayJulianDayOverride())
	header := make([]byte, 4)
	header[0] = t.signature
	year := int(t.structure.LastUpdated.Year)
	if year >= 1900 {
		year -= 1900
	}
	header[1] = byte(year)
	header[2] = byte(t.structure.LastUpdated.Month)
	header[3] = byte(t.structure.LastUpdated.Day)
	t.cfg.Sugared().Debugw("rewriting DBF header date stamp", "path", t.path, "lastUpdated", t.structure.LastUpdated)
	if _, err := t.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("%w: writing last-modified date: %v", dbferr.ErrIOFailure, err)
	}
	return nil
}

// todayJulianDayOverride is a seam for tests; production callers get the
// current date. Exposed as a var so tests can pin a deterministic date
// without touching the system clock.
var todayJulianDayOverride = func() int {
	return currentJulianDay()
}

// Delete marks the record under the cursor as deleted. Idempotent: a
// no-op if already deleted. Fails at BOF/EOF.
func (t *Table) Delete() error {
	return t.setDeleted(true)
}

// Undelete clears the record's deletion flag. Idempotent. Fails at BOF/EOF.
func (t *Table) Undelete() error {
	return t.setDeleted(false)
}

func (t *Table) setDeleted(deleted bool) error {
	t.lock()
	defer t.unlock()
	if t.currentRecordNumber == RecordNumberBOF || t.currentRecordNumber == RecordNumberEOF {
		return fmt.Errorf("%w: delete/undelete at BOF/EOF", dbferr.ErrInvalidArgument)
	}
	if t.currentRecordDeleted == deleted {
		return nil
	}
	flag := byte(activeFlag)
	if deleted {
		flag = deletedFlag
	}
	offset := t.recordOffset(t.currentRecordNumber)
	// spec.md §5(d): no explicit region lock — the single-byte write is
	// atomic at the OS level.
	if _, err := t.file.WriteAt([]byte{flag}, offset); err != nil {
		return fmt.Errorf("%w: writing deletion flag: %v", dbferr.ErrIOFailure, err)
	}
	t.currentRecordRaw[0] = flag
	t.currentRecordDeleted = deleted
	return nil
}

// AppendBlank writes a new blank record at the end of the file under an
// exclusive lock on the record-count field, refuses growth past 2^31
// bytes, and repositions the cursor onto the new record.
func (t *Table) AppendBlank() error {
	t.lock()
	defer t.unlock()

	var countRegion *lockfile.Region
	if t.cfg.FileLockingEnabled {
		countRegion = lockfile.FromFile(t.file, 4, 4)
		if err := countRegion.LockExclusive(); err != nil {
			return err
		}
		defer countRegion.Unlock()
	}

	if err := t.refreshRecordCountLocked(); err != nil {
		return err
	}
	newRecordNumber := t.structure.RecordCount + 1
	offset := t.recordOffset(newRecordNumber)
	newSize := offset + int64(t.structure.RecordLength) + 1 // +1 for the EOF marker
	const maxFileSize = int64(1) << 31
	if newSize > maxFileSize {
		return fmt.Errorf("%w: appending would grow the file past 2^31 bytes", dbferr.ErrInvalidArgument)
	}

	blank := make([]byte, t.structure.RecordLength)
	blank[0] = activeFlag
	pos := 1
	for _, f := range t.structure.fields {
		encoded, _ := encodeField(t.cfg, f, f.DefaultValue())
		copy(blank[pos:pos+f.Length()], encoded)
		pos += f.Length()
	}

	if t.cfg.FileLockingEnabled {
		recRegion := lockfile.FromFile(t.file, offset, int64(len(blank))+1)
		if err := recRegion.LockExclusive(); err != nil {
			return err
		}
		defer recRegion.Unlock()
	}

	if _, err := t.file.WriteAt(blank, offset); err != nil {
		return fmt.Errorf("%w: writing new record: %v", dbferr.ErrIOFailure, err)
	}
	if _, err := t.file.WriteAt([]byte{endOfFileMarker}, offset+int64(len(blank))); err != nil {
		return fmt.Errorf("%w: writing EOF marker: %v", dbferr.ErrIOFailure, err)
	}

	countBuf := make([]byte, 4)
	codec.PutUint32(countBuf, uint32(newRecordNumber))
	if _, err := t.file.WriteAt(countBuf, 4); err != nil {
		return fmt.Errorf("%w: writing record count: %v", dbferr.ErrIOFailure, err)
	}
	t.structure.RecordCount = newRecordNumber

	if err := t.gotoRecordLocked(newRecordNumber); err != nil {
		return err
	}
	return t.afterMutationLocked()
}

// Find performs a linear scan from record 1 for the first non-deleted
// record whose named field's rendered string equals target, repositioning
// the cursor there on a match. Returns RecordNumberEOF and leaves the
// cursor past the last record (EOF) when no record matches — the
// mkfoss-foxi/go-dbase-style convenience search spec.md keeps out of its
// formal component list but every pack driver offers in some form.
func (t *Table) Find(fieldName, target string) (int, error) {
	t.lock()
	defer t.unlock()

	if _, err := t.structure.FieldIndex(strings.ToUpper(fieldName)); err != nil {
		return RecordNumberEOF, err
	}

	if err := t.refreshRecordCountLocked(); err != nil {
		return RecordNumberEOF, err
	}
	count := t.structure.RecordCount
	for n := 1; n <= count; n++ {
		if err := t.readRecordLocked(n); err != nil {
			return RecordNumberEOF, err
		}
		if t.currentRecordDeleted {
			continue
		}
		v := t.decoded[strings.ToUpper(fieldName)]
		if strings.TrimRight(v.String(), " ") == strings.TrimRight(target, " ") {
			t.currentRecordNumber = n
			return n, nil
		}
	}
	if err := t.gotoRecordLocked(count + 1); err != nil {
		return RecordNumberEOF, err
	}
	return RecordNumberEOF, nil
}
