// Package config carries the small set of process-wide knobs the DBF/DBT/
// NDX/MDX family exposes, as a value threaded through Open/Create calls
// instead of package-level mutable state.
//
// mkfoss-foxi's CODE4 struct (pkg/gocore/types.go) holds this same kind of
// setting — AutoOpen, Safety, MemSizeBuffer, and so on — as fields on a
// single global, mutated in place by Code4Init and read everywhere. That
// works for a direct C-library port but fights Go's preference for
// explicit, immutable-per-call configuration; here the same settings are
// collected into one struct that call sites construct once and pass down.
package config

import (
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Config bundles the settings spec.md §6 calls "process-wide configuration".
type Config struct {
	// CurrentDirectory is the base directory relative table opens resolve
	// against. Empty means the process's working directory.
	CurrentDirectory string

	// AutoTrimEnabled strips trailing spaces from decoded C fields.
	AutoTrimEnabled bool

	// DBTBlockSize is the block size (in 64-byte units) used for newly
	// created DBT files. It has no effect on existing files, whose block
	// size is read from their own header.
	DBTBlockSize uint16

	// FileLockingEnabled arms the advisory region locks described in
	// spec.md §5.
	FileLockingEnabled bool

	// SynchronousWritesEnabled requires every write to reach durable
	// storage before returning; captured once at open.
	SynchronousWritesEnabled bool

	// ThreadSafetyEnabled makes every public mutating or non-atomic
	// reading method acquire the handle's intrinsic lock.
	ThreadSafetyEnabled bool

	// Logger receives structured diagnostics. A nil Logger is replaced
	// with a no-op logger by Sugared.
	Logger *zap.Logger

	// CodePage transcodes C/M field bytes between the table's legacy code
	// page and UTF-8. A nil CodePage keeps spec.md's byte-for-byte model
	// (no transcoding).
	CodePage encoding.Encoding
}

// Default returns the documented defaults for every flag (spec.md §6).
func Default() Config {
	return Config{
		AutoTrimEnabled: true,
		DBTBlockSize:    8, // 8 * 64 = 512 bytes
	}
}

// Sugared returns c.Logger as a SugaredLogger, substituting a no-op logger
// when none was configured.
func (c Config) Sugared() *zap.SugaredLogger {
	if c.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return c.Logger.Sugar()
}

// BlockSizeBytes returns the configured DBT block size in bytes.
func (c Config) BlockSizeBytes() int {
	size := int(c.DBTBlockSize) * 64
	if size < 64 {
		return 512
	}
	return size
}

// CodePage437 is the classic dBase III/IV DOS code page, offered as a ready
// CodePage value for tables that need C/M transcoding.
var CodePage437 = charmap.CodePage437

// DecodeCharacterBytes transcodes raw on-disk C/M bytes to UTF-8 using
// c.CodePage, or returns them unchanged when no CodePage is configured.
func (c Config) DecodeCharacterBytes(raw []byte) (string, error) {
	if c.CodePage == nil {
		return string(raw), nil
	}
	out, err := c.CodePage.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EncodeCharacterString transcodes a UTF-8 string to raw on-disk bytes using
// c.CodePage, or returns it unchanged when no CodePage is configured.
func (c Config) EncodeCharacterString(s string) ([]byte, error) {
	if c.CodePage == nil {
		return []byte(s), nil
	}
	return c.CodePage.NewEncoder().Bytes([]byte(s))
}
