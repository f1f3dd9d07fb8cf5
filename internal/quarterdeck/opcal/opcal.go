package opcal

import (
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
)

// The operational day runs from the rollover hour to the rollover hour instead
// of midnight to midnight, so late-night activity (a drill night ending at 1am)
// still counts toward the previous day's operations.

const (
	// DefaultTimezone is the facility's local timezone.
	DefaultTimezone = "America/Winnipeg"

	// DefaultRolloverHour is the local hour at which a new operational day
	// begins (3am).
	DefaultRolloverHour = 3
)

// DateFormat is the canonical YYYY-MM-DD layout used for operational dates in
// store keys and API payloads.
const DateFormat = "2006-01-02"

// Calendar resolves wall-clock timestamps to operational dates.  All methods
// are pure; the caller supplies "now".
type Calendar struct {
	loc          *time.Location
	rolloverHour int
}

// New builds a Calendar for the given IANA timezone and rollover hour.
func New(timezone string, rolloverHour int) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fault.Validation("invalid timezone %q", timezone)
	}
	if rolloverHour < 0 || rolloverHour > 23 {
		return nil, fault.Validation("rollover hour %d out of range", rolloverHour)
	}
	return &Calendar{loc: loc, rolloverHour: rolloverHour}, nil
}

// MustNew is New for compile-time-known configuration; it panics on error.
func MustNew(timezone string, rolloverHour int) *Calendar {
	c, err := New(timezone, rolloverHour)
	if err != nil {
		panic(err)
	}
	return c
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// RolloverHour returns the local hour at which the operational day rolls over.
func (c *Calendar) RolloverHour() int { return c.rolloverHour }

// OperationalDate resolves a timestamp to its operational date: local midnight
// of the calendar day it belongs to.  Timestamps before the rollover hour
// belong to the previous calendar day.
func (c *Calendar) OperationalDate(t time.Time) time.Time {
	lt := t.In(c.loc)
	if lt.Hour() < c.rolloverHour {
		lt = lt.AddDate(0, 0, -1)
	}
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
}

// DateString returns the operational date of t as YYYY-MM-DD.
func (c *Calendar) DateString(t time.Time) string {
	return c.OperationalDate(t).Format(DateFormat)
}

// ParseDate parses a YYYY-MM-DD string as local midnight of that day.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateFormat, s, c.loc)
	if err != nil {
		return time.Time{}, fault.Validation("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// Week returns the Monday-anchored week containing the operational date of t:
// start is Monday 00:00 local, end is the following Monday 00:00.
func (c *Calendar) Week(t time.Time) (start, end time.Time) {
	day := c.OperationalDate(t)
	// time.Weekday is Sunday=0; shift so Monday=0.
	offset := (int(day.Weekday()) + 6) % 7
	start = day.AddDate(0, 0, -offset)
	end = start.AddDate(0, 0, 7)
	return start, end
}

// IsWatchNight reports whether the operational date of t falls on a duty watch
// night (Tuesday or Thursday).
func (c *Calendar) IsWatchNight(t time.Time) bool {
	wd := c.OperationalDate(t).Weekday()
	return wd == time.Tuesday || wd == time.Thursday
}

// InRolloverPeriod reports whether t is in the window between midnight and the
// rollover hour, where the operational date differs from the calendar date.
func (c *Calendar) InRolloverPeriod(t time.Time) bool {
	return t.In(c.loc).Hour() < c.rolloverHour
}

// UntilRollover returns the duration from now until the next rollover-hour
// boundary, used to schedule the daily reset.
func (c *Calendar) UntilRollover(now time.Time) time.Duration {
	lt := now.In(c.loc)
	next := time.Date(lt.Year(), lt.Month(), lt.Day(), c.rolloverHour, 0, 0, 0, c.loc)
	if !next.After(lt) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(lt)
}

// NextLocalTime returns the next occurrence of hour:minute local time strictly
// after now.  Used to schedule fixed-time jobs such as the watch-night check.
func (c *Calendar) NextLocalTime(now time.Time, hour, minute int) time.Time {
	lt := now.In(c.loc)
	next := time.Date(lt.Year(), lt.Month(), lt.Day(), hour, minute, 0, 0, c.loc)
	if !next.After(lt) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
