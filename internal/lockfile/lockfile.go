//go:build !windows
// +build !windows

// Package lockfile provides the advisory region locks spec.md §5 layers
// over DBF/DBT/NDX/MDX file I/O: shared locks for reads, exclusive locks
// for writes, scoped to a byte range and always released on every exit
// path.
//
// Grounded on two pack sources: go-dbase's io_unix.go, which takes a
// unix.Flock_t over a byte range around header/row writes and retries on
// EAGAIN, and mkfoss-foxi's lock4.go, whose LockManager tracks locks by
// path in a map guarded by a mutex. Region locks here are plain
// golang.org/x/sys/unix fcntl byte-range locks (no retry polling — F_SETLKW
// blocks the calling goroutine, which fits the "blocking synchronous I/O"
// scheduling model spec.md §5 describes) with no separate registry: the
// OS file-descriptor table is the registry.
package lockfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FromFile returns a Region bound to f's underlying descriptor, covering
// [start, start+length).
func FromFile(f *os.File, start, length int64) *Region {
	return NewRegion(int(f.Fd()), start, length)
}

// Region describes a byte range lock over an open file.
type Region struct {
	fd    int
	start int64
	len   int64
	held  bool
}

// NewRegion returns a Region bound to fd, covering [start, start+length).
func NewRegion(fd int, start, length int64) *Region {
	return &Region{fd: fd, start: start, len: length}
}

// LockShared acquires a shared (read) lock over the region, blocking until
// available.
func (r *Region) LockShared() error { return r.lock(unix.F_RDLCK) }

// LockExclusive acquires an exclusive (write) lock over the region,
// blocking until available.
func (r *Region) LockExclusive() error { return r.lock(unix.F_WRLCK) }

func (r *Region) lock(kind int16) error {
	flock := unix.Flock_t{
		Type:   kind,
		Whence: 0, // SEEK_SET
		Start:  r.start,
		Len:    r.len,
	}
	if err := unix.FcntlFlock(uintptr(r.fd), unix.F_SETLKW, &flock); err != nil {
		return fmt.Errorf("lockfile: acquiring lock over [%d,%d): %w", r.start, r.start+r.len, err)
	}
	r.held = true
	return nil
}

// Unlock releases the region lock. Safe to call on an unheld region.
func (r *Region) Unlock() error {
	if !r.held {
		return nil
	}
	flock := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: 0,
		Start:  r.start,
		Len:    r.len,
	}
	r.held = false
	if err := unix.FcntlFlock(uintptr(r.fd), unix.F_SETLK, &flock); err != nil {
		return fmt.Errorf("lockfile: releasing lock over [%d,%d): %w", r.start, r.start+r.len, err)
	}
	return nil
}
