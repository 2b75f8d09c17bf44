// Package scheduler decides when recurring auto campaigns fire and drives their dispatch
package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Clock is the only source of "now" inside the scheduler
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// CivilTime holds calendar fields as observed in the scheduler's timezone
type CivilTime struct {
	Year    int
	Month   time.Month
	Day     int
	Hour    int
	Minute  int
	Second  int
	Weekday time.Weekday
}

// MinuteOfDay returns hour*60+minute
func (c CivilTime) MinuteOfDay() int { return c.Hour*60 + c.Minute }

// WeekdayName returns the three-letter lowercase weekday, e.g. "mon"
func (c CivilTime) WeekdayName() string {
	return strings.ToLower(c.Weekday.String()[:3])
}

// Date returns the civil date as YYYY-MM-DD
func (c CivilTime) Date() string {
	return fmt.Sprintf("%04d-%02d-%02d", c.Year, int(c.Month), c.Day)
}

func (c CivilTime) String() string {
	return fmt.Sprintf("%s %02d:%02d:%02d %s", c.Date(), c.Hour, c.Minute, c.Second, c.WeekdayName())
}

// CivilResolver converts between instants and civil time in one named zone
type CivilResolver struct {
	clock Clock
	loc   *time.Location
}

// NewCivilResolver loads tz from the zone database. A missing zone is a fatal
// configuration error: falling back to UTC would shift every schedule.
func NewCivilResolver(clock Clock, tz string) (*CivilResolver, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &ConfigError{Code: CodeTimezoneUnavailable, Err: fmt.Errorf("load timezone %q: %w", tz, err)}
	}
	return &CivilResolver{clock: clock, loc: loc}, nil
}

func (r *CivilResolver) Location() *time.Location { return r.loc }

// Now returns the current instant
func (r *CivilResolver) Now() time.Time { return r.clock.Now() }

// CivilNow returns the current civil time
func (r *CivilResolver) CivilNow() CivilTime { return r.CivilAt(r.clock.Now()) }

// CivilAt converts an instant to civil time
func (r *CivilResolver) CivilAt(t time.Time) CivilTime {
	lt := t.In(r.loc)
	return CivilTime{
		Year:    lt.Year(),
		Month:   lt.Month(),
		Day:     lt.Day(),
		Hour:    lt.Hour(),
		Minute:  lt.Minute(),
		Second:  lt.Second(),
		Weekday: lt.Weekday(),
	}
}

// CivilToInstant converts civil fields to an instant. time.Date consults the
// zone database, so offsets on DST transition days are correct; a civil time
// inside a spring-forward gap resolves to the later offset.
func (r *CivilResolver) CivilToInstant(year int, month time.Month, day, hour, minute, second int) time.Time {
	return time.Date(year, month, day, hour, minute, second, 0, r.loc)
}

// MidnightOf returns civil midnight of c's date as an instant
func (r *CivilResolver) MidnightOf(c CivilTime) time.Time {
	return r.CivilToInstant(c.Year, c.Month, c.Day, 0, 0, 0)
}

// AddCivilDays moves t by whole civil days, keeping the wall-clock time
func (r *CivilResolver) AddCivilDays(t time.Time, days int) time.Time {
	return t.In(r.loc).AddDate(0, 0, days)
}

// ParseCivilDate parses YYYY-MM-DD as civil midnight
func (r *CivilResolver) ParseCivilDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), r.loc)
}
