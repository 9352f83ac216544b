package dbf

import (
	"time"

	"github.com/mkfoss/dbfx/caldate"
)

// currentJulianDay returns today's Julian day number, used to stamp the
// header's last-modified date on every mutation (spec.md §4.6).
func currentJulianDay() int {
	now := time.Now()
	return caldate.New(int(now.Month()), now.Day(), now.Year()).JulianDay()
}
