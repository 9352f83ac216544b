package caldate

import "testing"

func TestJulianRoundTrip(t *testing.T) {
	dates := []Date{
		New(5, 18, 2012),
		New(1, 1, 2000),
		New(12, 31, 1999),
		New(2, 29, 2020),
	}
	for _, d := range dates {
		jd := d.JulianDay()
		got := FromJulianDay(jd)
		if got != d {
			t.Errorf("round trip %v -> jd %d -> %v, want %v", d, jd, got, d)
		}
	}
}

func TestDayOfWeek(t *testing.T) {
	if got := New(5, 18, 2012).DayOfWeek(); got != 5 {
		t.Errorf("DayOfWeek(2012-05-18) = %d, want 5 (Friday)", got)
	}
	if got := Blank().DayOfWeek(); got != -1 {
		t.Errorf("DayOfWeek(blank) = %d, want -1", got)
	}
}

func TestCompareTo(t *testing.T) {
	a := New(5, 18, 2012)
	b := New(5, 18, 2011)
	if a.CompareTo(b) <= 0 {
		t.Errorf("expected %v > %v", a, b)
	}
	if a.CompareTo(a) != 0 {
		t.Errorf("expected %v == %v", a, a)
	}
	if Blank().CompareTo(a) >= 0 {
		t.Errorf("blank date must sort before any real date")
	}
}

func TestBlankEquality(t *testing.T) {
	b1 := Date{}
	b2 := Date{Year: 1, Month: 0, Day: 0}
	if !b1.Equal(b2) {
		t.Errorf("two blank dates with differing year/month must compare equal")
	}
}

func TestDtos(t *testing.T) {
	if got := New(5, 18, 2012).Dtos(); got != "20120518" {
		t.Errorf("Dtos() = %q", got)
	}
}
