package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mkfoss/dbfx/dbferr"
)

func TestBufferedReadExact(t *testing.T) {
	src := bytes.NewReader([]byte("hello world"))
	dst := make([]byte, 5)
	if err := BufferedRead(src, dst, 6, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(dst) != "world" {
		t.Fatalf("got %q, want %q", dst, "world")
	}
}

func TestBufferedReadTruncated(t *testing.T) {
	src := bytes.NewReader([]byte("short"))
	dst := make([]byte, 10)
	err := BufferedRead(src, dst, 0, 10)
	if !errors.Is(err, dbferr.ErrTruncatedFile) {
		t.Fatalf("expected ErrTruncatedFile, got %v", err)
	}
}

func TestPadSpaces(t *testing.T) {
	if got := PadSpaces("AB", 5); got != "AB   " {
		t.Fatalf("got %q", got)
	}
	if got := PadSpaces("ABCDEF", 3); got != "ABC" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeBCDNumeric(t *testing.T) {
	cases := []struct {
		name string
		key  []byte
		want float64
	}{
		{"10", []byte{0x36, 0x29, 0x10, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 10.0},
		{"20", []byte{0x36, 0x29, 0x20, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 20.0},
		{"100000", []byte{0x3A, 0x51, 0x10, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 100000.0},
		{"999999999", []byte{0x3D, 0x51, 0x99, 0x99, 0x99, 0x99, 0x90, 0, 0, 0, 0, 0}, 999999999.0},
		{"1000000000", []byte{0x3E, 0x51, 0x10, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 1000000000.0},
		{"zero", []byte{0x34, 0x10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := DecodeBCDNumeric(c.key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}
