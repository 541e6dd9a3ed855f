package carbon

import (
	"fmt"
	"time"
)

// =============================================================================
// DATES - Two representations, one crossing point
// =============================================================================

// DOY is a day-of-year encoded date: YEAR*1000 + day_of_year (1-based).
// Raw arithmetic on DOY values is meaningless across year boundaries; convert
// to Ordinal first.
type DOY int32

// Ordinal is a contiguous day counter (0001-01-01 = 1, proleptic Gregorian).
// All interval arithmetic happens in Ordinal space.
type Ordinal int32

// DaysPerYear converts elapsed days into fractional years for decay functions.
const DaysPerYear = 365.25

var epoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()

const secondsPerDay = 24 * 60 * 60

// NewDOY builds a DOY from a year and a 1-based day of year.
func NewDOY(year, day int) DOY { return DOY(year*1000 + day) }

func (d DOY) Year() int { return int(d) / 1000 }
func (d DOY) Day() int  { return int(d) % 1000 }

// Valid reports whether the day part exists in that year.
func (d DOY) Valid() bool {
	if d <= 0 {
		return false
	}
	day := d.Day()
	return day >= 1 && day <= daysInYear(d.Year())
}

func (d DOY) String() string { return fmt.Sprintf("%04d%03d", d.Year(), d.Day()) }

// Time returns the calendar date at midnight UTC.
func (d DOY) Time() time.Time {
	return time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d.Day()-1)
}

// DOYToOrdinal converts a DOY into its ordinal day number.
func DOYToOrdinal(d DOY) (Ordinal, error) {
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDate, int32(d))
	}
	return Ordinal((d.Time().Unix()-epoch)/secondsPerDay + 1), nil
}

// MustOrdinal is DOYToOrdinal for constants known to be valid.
func MustOrdinal(d DOY) Ordinal {
	o, err := DOYToOrdinal(d)
	if err != nil {
		panic(err)
	}
	return o
}

// OrdinalToDOY converts an ordinal day number back into DOY form.
func OrdinalToDOY(o Ordinal) DOY {
	t := o.Time()
	return NewDOY(t.Year(), t.YearDay())
}

func (o Ordinal) Time() time.Time {
	return time.Unix(epoch+int64(o-1)*secondsPerDay, 0).UTC()
}

func (o Ordinal) DOY() DOY { return OrdinalToDOY(o) }

func (o Ordinal) String() string {
	return o.Time().Format("2006-01-02")
}

// YearsBetween returns the elapsed time from a to b in fractional years.
func YearsBetween(a, b Ordinal) float64 { return float64(b-a) / DaysPerYear }

func daysInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}
