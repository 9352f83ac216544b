// Package dbferr defines the error kinds shared by the dbf, dbt, ndx and
// mdx packages so callers can classify failures with errors.Is.
package dbferr

import "errors"

// Sentinel kinds, per the failure taxonomy of the DBF/DBT/NDX/MDX family:
// a read that ran out of bytes mid-structure, a structural cross-check
// that failed, a variant the reader does not know how to interpret, a
// caller-supplied argument that cannot be satisfied, and a lower-level
// disk failure.
var (
	// ErrTruncatedFile is returned when EOF is reached before a fixed-size
	// structure (header, node, record, memo block) has been fully read.
	ErrTruncatedFile = errors.New("dbfx: truncated file")

	// ErrCorruptStructure is returned when an on-disk sentinel or
	// cross-check fails: a DBT header prefix mismatch, an MDX tag-header
	// echo mismatch, an NDX key-record size mismatch, and similar.
	ErrCorruptStructure = errors.New("dbfx: corrupt structure")

	// ErrUnsupportedVariant is returned for a field type, DBF version, or
	// MDX key type the reader does not recognize and cannot safely
	// fall back on.
	ErrUnsupportedVariant = errors.New("dbfx: unsupported variant")

	// ErrInvalidArgument is returned for a caller error: an out-of-range
	// field number, an unknown field name, a mutation attempted at
	// BOF/EOF, or a block number outside the file.
	ErrInvalidArgument = errors.New("dbfx: invalid argument")

	// ErrIOFailure wraps a lower-level I/O failure (open, seek, read,
	// write) that is not itself one of the categories above.
	ErrIOFailure = errors.New("dbfx: io failure")
)
