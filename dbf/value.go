package dbf

import (
	"fmt"

	"github.com/mkfoss/dbfx/caldate"
	"github.com/mkfoss/dbfx/dbferr"
)

// Kind tags the concrete type carried by a Value.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindDate
	KindBytes
)

// Value is a small tagged variant over {string, double, boolean, date,
// bytes} — spec.md §9's "dynamic typing of field values" design note,
// minimal by design: the spec keeps the full DBFValue wrapper and its
// convenience accessors as an external collaborator, specified only at
// its interface. This is that interface: one decoded field value plus
// typed projections that fail with ErrInvalidArgument on a mismatch.
type Value struct {
	kind  Kind
	str   string
	num   float64
	boo   bool
	date  caldate.Date
	bytes []byte
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps a float64 (used for both N and F fields).
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, boo: b} }

// DateValueOf wraps a caldate.Date.
func DateValueOf(d caldate.Date) Value { return Value{kind: KindDate, date: d} }

// BytesValue wraps a raw byte slice.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

// Kind reports the concrete type carried by v.
func (v Value) Kind() Kind { return v.kind }

// AsString projects v to a string, or fails if v is not KindString.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("%w: value is not a string", dbferr.ErrInvalidArgument)
	}
	return v.str, nil
}

// AsNumber projects v to a float64, or fails if v is not KindNumber.
func (v Value) AsNumber() (float64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("%w: value is not numeric", dbferr.ErrInvalidArgument)
	}
	return v.num, nil
}

// AsBool projects v to a bool, or fails if v is not KindBool.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("%w: value is not boolean", dbferr.ErrInvalidArgument)
	}
	return v.boo, nil
}

// AsDate projects v to a caldate.Date, or fails if v is not KindDate.
func (v Value) AsDate() (caldate.Date, error) {
	if v.kind != KindDate {
		return caldate.Date{}, fmt.Errorf("%w: value is not a date", dbferr.ErrInvalidArgument)
	}
	return v.date, nil
}

// AsBytes projects v to a []byte, or fails if v is not KindBytes.
func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, fmt.Errorf("%w: value is not bytes", dbferr.ErrInvalidArgument)
	}
	return v.bytes, nil
}

// String renders v for diagnostics; it never fails.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return fmt.Sprintf("%v", v.num)
	case KindBool:
		return fmt.Sprintf("%v", v.boo)
	case KindDate:
		return v.date.String()
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.bytes))
	default:
		return ""
	}
}
