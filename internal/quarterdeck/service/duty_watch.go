package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/opcal"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/types"
)

// WatchDeps are the collaborators a DutyWatchMonitor needs.  Empty position
// lists and nil Alerts, Clock, and Logger get working defaults.
type WatchDeps struct {
	Lockups  store.LockupStore
	Members  store.MemberStore
	Roster   store.RosterStore
	Calendar *opcal.Calendar
	Clock    clock.Clock
	Alerts   AlertSink
	Logger   *log.Logger

	// RequiredPositions is the full watch complement; LeaderPositions is the
	// subset expected to hold lockup on a watch night.
	RequiredPositions []string
	LeaderPositions   []string
}

// DutyWatchMonitor verifies, on watch nights, that the scheduled team is
// complete, present, and in possession of lockup.  It only reports; it never
// mutates custody state.
type DutyWatchMonitor struct {
	lockups  store.LockupStore
	members  store.MemberStore
	roster   store.RosterStore
	cal      *opcal.Calendar
	clock    clock.Clock
	alerts   AlertSink
	logger   *log.Logger
	required []string
	leaders  []string
}

func NewDutyWatchMonitor(deps WatchDeps) *DutyWatchMonitor {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Alerts == nil {
		deps.Alerts = nopAlertSink{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if len(deps.RequiredPositions) == 0 {
		deps.RequiredPositions = []string{"SWK", "DSWK", "QM", "BM", "APS"}
	}
	if len(deps.LeaderPositions) == 0 {
		deps.LeaderPositions = []string{"SWK", "DSWK"}
	}
	return &DutyWatchMonitor{
		lockups:  deps.Lockups,
		members:  deps.Members,
		roster:   deps.Roster,
		cal:      deps.Calendar,
		clock:    deps.Clock,
		alerts:   deps.Alerts,
		logger:   deps.Logger,
		required: deps.RequiredPositions,
		leaders:  deps.LeaderPositions,
	}
}

// Run performs the watch-night checks.  On non-watch nights it returns
// immediately without touching any store.  Each check alerts independently;
// one violation never masks another.
func (w *DutyWatchMonitor) Run(ctx context.Context) error {
	now := w.clock.Now()
	if !w.cal.IsWatchNight(now) {
		return nil
	}

	date := w.cal.DateString(now)
	weekStart, _ := w.cal.Week(now)

	team, exists, err := w.roster.DutyWatchTeamForWeek(ctx, weekStart)
	if err != nil {
		return err
	}
	if !exists {
		w.alerts.Raise(ctx, types.Alert{
			Type:     types.AlertDutyWatchMissing,
			Severity: types.SeverityCritical,
			Title:    "No Duty Watch Scheduled",
			Message:  fmt.Sprintf("Tonight (%s) is a watch night but no duty watch team is scheduled", date),
			Data:     map[string]any{"date": date},
		})
		return nil
	}

	w.checkComplement(ctx, date, team)
	w.checkPresence(ctx, date, team)
	w.checkCustody(ctx, date, team)
	return nil
}

// checkComplement alerts on required positions with nobody assigned.
func (w *DutyWatchMonitor) checkComplement(ctx context.Context, date string, team []store.WatchAssignment) {
	filled := make(map[string]bool, len(team))
	for _, a := range team {
		filled[a.PositionCode] = true
	}
	var missing []string
	for _, pos := range w.required {
		if !filled[pos] {
			missing = append(missing, pos)
		}
	}
	if len(missing) == 0 {
		return
	}
	w.alerts.Raise(ctx, types.Alert{
		Type:     types.AlertDutyWatchMissing,
		Severity: types.SeverityWarning,
		Title:    "Duty Watch Positions Unfilled",
		Message:  fmt.Sprintf("Positions with no one assigned tonight (%s): %s", date, strings.Join(missing, ", ")),
		Data:     map[string]any{"date": date, "positions": missing},
	})
}

// checkPresence alerts on assigned watchkeepers who have not checked in.
func (w *DutyWatchMonitor) checkPresence(ctx context.Context, date string, team []store.WatchAssignment) {
	var absent []string
	for _, a := range team {
		if a.IsCheckedIn {
			continue
		}
		name := a.MemberID
		if m, ok, err := w.members.Find(ctx, a.MemberID); err == nil && ok {
			name = m.DisplayName()
		}
		absent = append(absent, fmt.Sprintf("%s (%s)", name, a.PositionCode))
	}
	if len(absent) == 0 {
		return
	}
	w.alerts.Raise(ctx, types.Alert{
		Type:     types.AlertDutyWatchNotCheckedIn,
		Severity: types.SeverityWarning,
		Title:    "Duty Watch Not Checked In",
		Message:  fmt.Sprintf("Scheduled watchkeepers not present tonight (%s): %s", date, strings.Join(absent, ", ")),
		Data:     map[string]any{"date": date, "count": len(absent)},
	})
}

// checkCustody alerts when lockup is unassigned or held outside the watch
// leadership on a watch night.
func (w *DutyWatchMonitor) checkCustody(ctx context.Context, date string, team []store.WatchAssignment) {
	day, ok, err := w.lockups.FindDay(ctx, date)
	if err != nil {
		w.logger.Printf("duty watch: find day %s: %v", date, err)
		return
	}
	if ok && day.BuildingStatus == types.StatusSecured {
		return
	}
	if !ok || day.CurrentHolderID == nil {
		w.alerts.Raise(ctx, types.Alert{
			Type:     types.AlertLockupUnassigned,
			Severity: types.SeverityCritical,
			Title:    "Lockup Unassigned on Watch Night",
			Message:  fmt.Sprintf("No one holds lockup tonight (%s)", date),
			Data:     map[string]any{"date": date},
		})
		return
	}

	holderID := *day.CurrentHolderID
	leader := make(map[string]bool, len(w.leaders))
	for _, pos := range w.leaders {
		leader[pos] = true
	}
	for _, a := range team {
		if a.MemberID == holderID && leader[a.PositionCode] {
			return
		}
	}

	holderName := holderID
	if m, ok, err := w.members.Find(ctx, holderID); err == nil && ok {
		holderName = m.DisplayName()
	}
	w.alerts.Raise(ctx, types.Alert{
		Type:     types.AlertLockupNotTransferred,
		Severity: types.SeverityWarning,
		Title:    "Lockup Not With Duty Watch",
		Message:  fmt.Sprintf("%s holds lockup tonight (%s) but is not the watch leadership", holderName, date),
		Data:     map[string]any{"date": date, "holder_id": holderID},
	})
}
