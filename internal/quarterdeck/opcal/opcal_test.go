package opcal_test

import (
	"testing"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/opcal"
)

func testCalendar(t *testing.T) *opcal.Calendar {
	t.Helper()
	cal, err := opcal.New(opcal.DefaultTimezone, opcal.DefaultRolloverHour)
	if err != nil {
		t.Fatalf("new calendar: %v", err)
	}
	return cal
}

func local(t *testing.T, cal *opcal.Calendar, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	return time.Date(y, m, d, hh, mm, 0, 0, cal.Location())
}

// ── Construction ─────────────────────────────────────────────────────────────

func TestNew_InvalidTimezone(t *testing.T) {
	if _, err := opcal.New("Not/AZone", 3); err == nil {
		t.Fatal("expected error for bogus timezone")
	}
}

func TestNew_RolloverHourOutOfRange(t *testing.T) {
	if _, err := opcal.New(opcal.DefaultTimezone, 24); err == nil {
		t.Fatal("expected error for hour 24")
	}
	if _, err := opcal.New(opcal.DefaultTimezone, -1); err == nil {
		t.Fatal("expected error for hour -1")
	}
}

// ── Operational date ─────────────────────────────────────────────────────────

func TestOperationalDate_BeforeRollover_PreviousDay(t *testing.T) {
	cal := testCalendar(t)

	// 2:59am Wednesday still belongs to Tuesday's operations.
	got := cal.DateString(local(t, cal, 2026, time.January, 7, 2, 59))
	if got != "2026-01-06" {
		t.Errorf("2:59am: expected 2026-01-06, got %s", got)
	}
}

func TestOperationalDate_AtRollover_SameDay(t *testing.T) {
	cal := testCalendar(t)

	got := cal.DateString(local(t, cal, 2026, time.January, 7, 3, 0))
	if got != "2026-01-07" {
		t.Errorf("3:00am: expected 2026-01-07, got %s", got)
	}
}

func TestOperationalDate_Evening_SameDay(t *testing.T) {
	cal := testCalendar(t)

	got := cal.DateString(local(t, cal, 2026, time.January, 7, 21, 30))
	if got != "2026-01-07" {
		t.Errorf("evening: expected 2026-01-07, got %s", got)
	}
}

// ── Week ─────────────────────────────────────────────────────────────────────

func TestWeek_MondayAnchored(t *testing.T) {
	cal := testCalendar(t)

	// Wednesday Jan 7 2026 falls in the week of Monday Jan 5.
	start, end := cal.Week(local(t, cal, 2026, time.January, 7, 19, 0))
	if start.Format(opcal.DateFormat) != "2026-01-05" {
		t.Errorf("expected week start 2026-01-05, got %s", start.Format(opcal.DateFormat))
	}
	if end.Format(opcal.DateFormat) != "2026-01-12" {
		t.Errorf("expected week end 2026-01-12, got %s", end.Format(opcal.DateFormat))
	}
}

func TestWeek_SundayBelongsToPrecedingMonday(t *testing.T) {
	cal := testCalendar(t)

	start, _ := cal.Week(local(t, cal, 2026, time.January, 11, 12, 0))
	if start.Format(opcal.DateFormat) != "2026-01-05" {
		t.Errorf("expected week start 2026-01-05, got %s", start.Format(opcal.DateFormat))
	}
}

func TestWeek_EarlyMondayMorning_PreviousWeek(t *testing.T) {
	cal := testCalendar(t)

	// 1am Monday is operationally still Sunday, so the previous week.
	start, _ := cal.Week(local(t, cal, 2026, time.January, 12, 1, 0))
	if start.Format(opcal.DateFormat) != "2026-01-05" {
		t.Errorf("expected week start 2026-01-05, got %s", start.Format(opcal.DateFormat))
	}
}

// ── Watch nights ─────────────────────────────────────────────────────────────

func TestIsWatchNight(t *testing.T) {
	cal := testCalendar(t)

	if !cal.IsWatchNight(local(t, cal, 2026, time.January, 6, 19, 0)) {
		t.Error("Tuesday evening should be a watch night")
	}
	if !cal.IsWatchNight(local(t, cal, 2026, time.January, 8, 19, 0)) {
		t.Error("Thursday evening should be a watch night")
	}
	if cal.IsWatchNight(local(t, cal, 2026, time.January, 7, 19, 0)) {
		t.Error("Wednesday evening should not be a watch night")
	}
	// 1am Wednesday is operationally Tuesday.
	if !cal.IsWatchNight(local(t, cal, 2026, time.January, 7, 1, 0)) {
		t.Error("early Wednesday morning belongs to Tuesday's watch")
	}
}

// ── Rollover helpers ─────────────────────────────────────────────────────────

func TestInRolloverPeriod(t *testing.T) {
	cal := testCalendar(t)

	if !cal.InRolloverPeriod(local(t, cal, 2026, time.January, 7, 1, 30)) {
		t.Error("1:30am is inside the rollover period")
	}
	if cal.InRolloverPeriod(local(t, cal, 2026, time.January, 7, 3, 0)) {
		t.Error("3:00am is outside the rollover period")
	}
}

func TestUntilRollover(t *testing.T) {
	cal := testCalendar(t)

	d := cal.UntilRollover(local(t, cal, 2026, time.January, 7, 2, 0))
	if d != time.Hour {
		t.Errorf("2am: expected 1h until rollover, got %s", d)
	}

	d = cal.UntilRollover(local(t, cal, 2026, time.January, 7, 4, 0))
	if d != 23*time.Hour {
		t.Errorf("4am: expected 23h until rollover, got %s", d)
	}
}

func TestNextLocalTime(t *testing.T) {
	cal := testCalendar(t)

	// Before 19:00, fires the same day.
	next := cal.NextLocalTime(local(t, cal, 2026, time.January, 7, 12, 0), 19, 0)
	if next.Day() != 7 || next.Hour() != 19 {
		t.Errorf("expected Jan 7 19:00, got %s", next)
	}

	// After 19:00, fires tomorrow.
	next = cal.NextLocalTime(local(t, cal, 2026, time.January, 7, 20, 0), 19, 0)
	if next.Day() != 8 || next.Hour() != 19 {
		t.Errorf("expected Jan 8 19:00, got %s", next)
	}
}
