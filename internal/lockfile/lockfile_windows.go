//go:build windows
// +build windows

package lockfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// FromFile returns a Region bound to f's underlying Windows handle,
// covering [start, start+length).
func FromFile(f *os.File, start, length int64) *Region {
	return NewRegion(windows.Handle(f.Fd()), start, length)
}

// Region describes a byte range lock over an open file, backed by
// LockFileEx/UnlockFileEx on Windows (mirrors go-dbase's io_windows.go,
// which opens files through golang.org/x/sys/windows rather than
// golang.org/x/sys/unix).
type Region struct {
	handle windows.Handle
	start  int64
	len    int64
	held   bool
}

// NewRegion returns a Region bound to a Windows file handle, covering
// [start, start+length).
func NewRegion(handle windows.Handle, start, length int64) *Region {
	return &Region{handle: handle, start: start, len: length}
}

// LockShared acquires a shared (read) lock over the region, blocking until
// available.
func (r *Region) LockShared() error { return r.lock(0) }

// LockExclusive acquires an exclusive (write) lock over the region,
// blocking until available.
func (r *Region) LockExclusive() error { return r.lock(windows.LOCKFILE_EXCLUSIVE_LOCK) }

func (r *Region) lock(flags uint32) error {
	overlapped := windows.Overlapped{Offset: uint32(r.start), OffsetHigh: uint32(r.start >> 32)}
	lengthLow := uint32(r.len)
	lengthHigh := uint32(r.len >> 32)
	if err := windows.LockFileEx(r.handle, flags, 0, lengthLow, lengthHigh, &overlapped); err != nil {
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
	overlapped := windows.Overlapped{Offset: uint32(r.start), OffsetHigh: uint32(r.start >> 32)}
	lengthLow := uint32(r.len)
	lengthHigh := uint32(r.len >> 32)
	r.held = false
	if err := windows.UnlockFileEx(r.handle, 0, lengthLow, lengthHigh, &overlapped); err != nil {
		return fmt.Errorf("lockfile: releasing lock over [%d,%d): %w", r.start, r.start+r.len, err)
	}
	return nil
}
