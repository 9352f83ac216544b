// Package caldate implements the calendar Date value of spec.md §3/§4.2:
// a (month, day, year) tuple with Julian-day conversion, weekday, a blank
// state, and Julian-day-based equality and ordering.
//
// mkfoss-foxi represents DBF dates as Go time.Time (pkg/gocore/field4.go),
// which loses the "blank date" state the spec requires (day = 0, ordering
// strictly before any real date) and time.Time's own zero value does not
// model. Date is a small value type instead, matching the teacher's
// CodeBase-derived fixed-width structures more than its time.Time shortcut.
package caldate

import "fmt"

// Date is a calendar date. A blank Date has Day == 0.
type Date struct {
	Year  int16
	Month uint8
	Day   uint8
}

// Blank returns the blank date (day = 0).
func Blank() Date { return Date{} }

// New constructs a Date from month, day, year.
func New(month, day int, year int) Date {
	return Date{Year: int16(year), Month: uint8(month), Day: uint8(day)}
}

// IsBlank reports whether d is the blank date.
func (d Date) IsBlank() bool { return d.Day == 0 }

// JulianDay returns the Julian day number, or -1 for a blank date.
//
// Formula retained exactly per spec.md §4.2, operating on 32-bit ints.
func (d Date) JulianDay() int {
	if d.IsBlank() {
		return -1
	}
	m := int(d.Month)
	y := int(d.Year)
	day := int(d.Day)
	if m <= 2 {
		y--
		m += 12
	}
	a := y / 100
	b := a / 4
	c := 2 - a + b
	e := int(365.25 * float64(y+4716))
	f := int(30.6001 * float64(m+1))
	return c + day + e + f - 1525
}

// FromJulianDay inverts JulianDay.
func FromJulianDay(jd int) Date {
	if jd < 0 {
		return Blank()
	}
	z := jd
	wF := (float64(z) - 1867216.25) / 36524.25
	wInt := int(wF)
	x := wInt / 4
	a := z + 1 + wInt - x
	b := a + 1525
	c := int((float64(b) - 122.1) / 365.25)
	dd := int(365.25 * float64(c))
	e := int((float64(b-dd) / 30.6001))
	f := int(30.6001 * float64(e))
	day := b - dd - f
	var month, year int
	if e <= 13 {
		month = e - 1
	} else {
		month = e - 13
	}
	if month <= 2 {
		year = c - 4715
	} else {
		year = c - 4716
	}
	return Date{Year: int16(year), Month: uint8(month), Day: uint8(day)}
}

// DayOfWeek returns 0 (Sunday) through 6 (Saturday), or -1 for a blank date.
func (d Date) DayOfWeek() int {
	if d.IsBlank() {
		return -1
	}
	return (d.JulianDay() + 2) % 7
}

// Dtos renders the date as an 8-character YYYYMMDD string. A blank date
// renders as 8 spaces.
func (d Date) Dtos() string {
	if d.IsBlank() {
		return "        "
	}
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// CompareTo orders dates by Julian day; blank sorts before every real date.
func (d Date) CompareTo(other Date) int {
	a, b := d.JulianDay(), other.JulianDay()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports whether d and other have the same Julian day, so every
// blank date compares equal regardless of its (unused) month/year.
func (d Date) Equal(other Date) bool { return d.JulianDay() == other.JulianDay() }

// String implements fmt.Stringer.
func (d Date) String() string {
	if d.IsBlank() {
		return "(blank)"
	}
	return d.Dtos()
}
