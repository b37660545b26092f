package schedule

import (
	"fmt"
	"time"
)

// BusinessLocation is the fixed calendar every business operates in.
// Brazil abolished DST in 2019, so a fixed UTC-3 offset is exact for the
// modeled period.
var BusinessLocation = time.FixedZone("America/Sao_Paulo", -3*60*60)

// MinutesPerDay bounds minute-of-day values.
const MinutesPerDay = 24 * 60

// LocalDate is a calendar date on the business's wall clock, deliberately
// distinct from an absolute instant. Combine it with a minute-of-day offset
// via At to obtain a UTC instant; that is the single local-to-UTC conversion
// point on every path.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseLocalDate parses a YYYY-MM-DD wall-clock date.
func ParseLocalDate(value string) (LocalDate, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return LocalDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return LocalDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// LocalDateOf projects an instant onto the business wall clock.
func LocalDateOf(t time.Time) LocalDate {
	local := t.In(BusinessLocation)
	return LocalDate{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// At composes the date with a minute-of-day offset and returns the UTC instant.
func (d LocalDate) At(minuteOfDay int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, minuteOfDay/60, minuteOfDay%60, 0, 0, BusinessLocation).UTC()
}

// AddDays returns the date n days later; time.Date normalizes month and
// year rollover.
func (d LocalDate) AddDays(n int) LocalDate {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, BusinessLocation)
	return LocalDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Weekday reports the weekday of the local date.
func (d LocalDate) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, BusinessLocation).Weekday()
}

// String renders the date back to YYYY-MM-DD.
func (d LocalDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MinuteOfDay returns the wall-clock minute offset of a UTC instant.
func MinuteOfDay(t time.Time) int {
	local := t.In(BusinessLocation)
	return local.Hour()*60 + local.Minute()
}
