package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/opcal"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/types"
)

// systemActor tags presence events written by the reset itself.
const systemActor = "SYSTEM"

// ResetDeps are the collaborators a DailyReset needs.  Nil Alerts, Broadcast,
// Clock, and Logger get working defaults.
type ResetDeps struct {
	Lockups   store.LockupStore
	Members   store.MemberStore
	Presence  store.PresenceStore
	Roster    store.RosterStore
	Calendar  *opcal.Calendar
	Clock     clock.Clock
	Alerts    AlertSink
	Broadcast Broadcaster
	Logger    *log.Logger
}

// DailyReset runs the rollover housekeeping: audit yesterday, clear stale
// presence, and seed today's custody record.  Every step is idempotent, so a
// missed run can be caught up at any later point in the day.
type DailyReset struct {
	lockups   store.LockupStore
	members   store.MemberStore
	presence  store.PresenceStore
	roster    store.RosterStore
	cal       *opcal.Calendar
	clock     clock.Clock
	alerts    AlertSink
	broadcast Broadcaster
	logger    *log.Logger

	running atomic.Bool
}

func NewDailyReset(deps ResetDeps) *DailyReset {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Alerts == nil {
		deps.Alerts = nopAlertSink{}
	}
	if deps.Broadcast == nil {
		deps.Broadcast = NopBroadcaster{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &DailyReset{
		lockups:   deps.Lockups,
		members:   deps.Members,
		presence:  deps.Presence,
		roster:    deps.Roster,
		cal:       deps.Calendar,
		clock:     deps.Clock,
		alerts:    deps.Alerts,
		broadcast: deps.Broadcast,
		logger:    deps.Logger,
	}
}

type nopAlertSink struct{}

func (nopAlertSink) Raise(context.Context, types.Alert) {}

// Run executes the reset for the current operational day and reports what it
// did.  Only one run is in flight at a time; an overlapping call is a logged
// no-op.  Per-person failures never abort the run; they accumulate in the
// summary's error list.
func (r *DailyReset) Run(ctx context.Context) (types.ResetSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Printf("daily reset: already in progress, skipping")
		return types.ResetSummary{Skipped: true}, nil
	}
	defer r.running.Store(false)

	now := r.clock.Now()
	sum := types.ResetSummary{Date: r.cal.DateString(now)}
	yesterday := r.cal.OperationalDate(now).AddDate(0, 0, -1).Format(opcal.DateFormat)
	r.logger.Printf("daily reset: starting date=%s", sum.Date)

	var errs []string
	sum.PreviousDaySecured, errs = r.auditPreviousDay(ctx, yesterday)
	sum.Errors = append(sum.Errors, errs...)

	sum.MissedCheckouts, errs = r.clearStaleMembers(ctx, yesterday)
	sum.Errors = append(sum.Errors, errs...)

	sum.VisitorsOut, errs = r.clearStaleVisitors(ctx)
	sum.Errors = append(sum.Errors, errs...)

	sum.Errors = append(sum.Errors, r.seedToday(ctx, sum.Date)...)

	r.logger.Printf("daily reset: complete date=%s previous_day_secured=%t missed_checkouts=%d visitors_out=%d errors=%d",
		sum.Date, sum.PreviousDaySecured, sum.MissedCheckouts, sum.VisitorsOut, len(sum.Errors))
	return sum, nil
}

// CheckMissed runs the reset only if it has not already happened for the
// current operational day.  Safe to call as often as desired; during the
// midnight-to-rollover window it does nothing so yesterday's state survives
// until the real rollover.
func (r *DailyReset) CheckMissed(ctx context.Context) error {
	now := r.clock.Now()
	if r.cal.InRolloverPeriod(now) {
		return nil
	}
	today := r.cal.DateString(now)
	_, ok, err := r.lockups.FindDay(ctx, today)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	r.logger.Printf("daily reset: missed run detected for %s, catching up", today)
	_, err = r.Run(ctx)
	return err
}

// auditPreviousDay raises a critical alert if yesterday ended without the
// building being secured, and reports whether it was.  A day with no record
// counts as secured.
func (r *DailyReset) auditPreviousDay(ctx context.Context, yesterday string) (bool, []string) {
	day, ok, err := r.lockups.FindDay(ctx, yesterday)
	if err != nil {
		r.logger.Printf("daily reset: audit %s: %v", yesterday, err)
		return true, []string{fmt.Sprintf("audit %s: %v", yesterday, err)}
	}
	if !ok || day.BuildingStatus == types.StatusSecured {
		return true, nil
	}

	holder := "nobody"
	if day.CurrentHolderID != nil {
		holder = *day.CurrentHolderID
	}
	r.alerts.Raise(ctx, types.Alert{
		Type:     types.AlertBuildingNotSecured,
		Severity: types.SeverityCritical,
		Title:    "Building Was Not Secured",
		Message:  fmt.Sprintf("Lockup was never executed on %s (status %s, holder %s)", yesterday, day.BuildingStatus, holder),
		Data:     map[string]any{"date": yesterday, "building_status": day.BuildingStatus},
	})
	return false, nil
}

// clearStaleMembers force-checks out everyone still marked present and records
// a missed checkout against each of them.  A failing checkout leaves that
// member untouched and records nothing.
func (r *DailyReset) clearStaleMembers(ctx context.Context, missedDate string) (int, []string) {
	present, err := r.presence.ListPresentMembers(ctx)
	if err != nil {
		r.logger.Printf("daily reset: list present members: %v", err)
		return 0, []string{fmt.Sprintf("list present members: %v", err)}
	}
	if len(present) == 0 {
		return 0, nil
	}

	now := r.clock.Now().UTC()
	var (
		names []string
		errs  []string
	)
	for _, p := range present {
		if err := r.presence.ForceCheckoutMember(ctx, p.ID, systemActor, now); err != nil {
			r.logger.Printf("daily reset: force checkout member %s: %v", p.ID, err)
			errs = append(errs, fmt.Sprintf("force checkout member %s: %v", p.ID, err))
			continue
		}
		mc := store.MissedCheckout{
			ID:                uuid.NewString(),
			MemberID:          p.ID,
			Date:              missedDate,
			OriginalCheckinAt: p.LastCheckinAt,
			ResolvedBy:        "daily_reset",
			Notes:             "Automatically force-checked out during daily reset",
			CreatedAt:         now,
		}
		if err := r.members.RecordMissedCheckout(ctx, mc); err != nil {
			r.logger.Printf("daily reset: record missed checkout %s: %v", p.ID, err)
			errs = append(errs, fmt.Sprintf("record missed checkout %s: %v", p.ID, err))
		}
		names = append(names, p.Name)
	}

	if len(names) > 0 {
		r.alerts.Raise(ctx, types.Alert{
			Type:     types.AlertMemberMissedCheckout,
			Severity: types.SeverityWarning,
			Title:    "Members Missed Checkout",
			Message:  fmt.Sprintf("%d member(s) were still checked in at rollover: %s", len(names), strings.Join(names, ", ")),
			Data:     map[string]any{"date": missedDate, "count": len(names)},
		})
	}
	return len(names), errs
}

func (r *DailyReset) clearStaleVisitors(ctx context.Context) (int, []string) {
	visitors, err := r.presence.ListPresentVisitors(ctx)
	if err != nil {
		r.logger.Printf("daily reset: list present visitors: %v", err)
		return 0, []string{fmt.Sprintf("list present visitors: %v", err)}
	}
	now := r.clock.Now().UTC()
	count := 0
	var errs []string
	for _, v := range visitors {
		if err := r.presence.ForceCheckoutVisitor(ctx, v.ID, systemActor, now); err != nil {
			r.logger.Printf("daily reset: force checkout visitor %s: %v", v.ID, err)
			errs = append(errs, fmt.Sprintf("force checkout visitor %s: %v", v.ID, err))
			continue
		}
		count++
	}
	return count, errs
}

// seedToday creates today's open custody record if missing and pre-assigns the
// scheduled holder from the roster.  A record already present means the reset
// (or first kiosk touch) already ran; leave it alone.
func (r *DailyReset) seedToday(ctx context.Context, today string) []string {
	_, ok, err := r.lockups.FindDay(ctx, today)
	if err != nil {
		r.logger.Printf("daily reset: find day %s: %v", today, err)
		return []string{fmt.Sprintf("find day %s: %v", today, err)}
	}
	if ok {
		return nil
	}

	now := r.clock.Now().UTC()
	day := store.LockupDay{
		Date:           today,
		BuildingStatus: types.StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := r.lockups.CreateDay(ctx, day); err != nil {
		r.logger.Printf("daily reset: create day %s: %v", today, err)
		return []string{fmt.Sprintf("create day %s: %v", today, err)}
	}

	weekStart, _ := r.cal.Week(r.clock.Now())
	holderID, found, err := r.roster.ScheduledHolderForWeek(ctx, weekStart)
	if err != nil {
		r.logger.Printf("daily reset: scheduled holder lookup: %v", err)
		return []string{fmt.Sprintf("scheduled holder lookup: %v", err)}
	}
	if !found {
		return nil
	}

	m, ok, err := r.members.Find(ctx, holderID)
	if err != nil || !ok || m.Status != "active" {
		r.logger.Printf("daily reset: scheduled holder %s unavailable", holderID)
		return []string{fmt.Sprintf("scheduled holder %s unavailable", holderID)}
	}

	id := holderID
	if err := r.lockups.SwapHolder(ctx, today, nil, &id, now); err != nil {
		r.logger.Printf("daily reset: assign scheduled holder %s: %v", holderID, err)
		return []string{fmt.Sprintf("assign scheduled holder %s: %v", holderID, err)}
	}
	ev := store.TransferEvent{
		ID:            uuid.NewString(),
		Date:          today,
		ToMemberID:    holderID,
		Reason:        types.ReasonDDSHandoff,
		Notes:         "Pre-assigned from duty schedule",
		TransferredAt: now,
	}
	var errs []string
	if err := r.lockups.AppendTransfer(ctx, ev); err != nil {
		r.logger.Printf("daily reset: record handoff %s: %v", holderID, err)
		errs = append(errs, fmt.Sprintf("record handoff %s: %v", holderID, err))
	}

	r.alerts.Raise(ctx, types.Alert{
		Type:     types.AlertLockupHandoff,
		Severity: types.SeverityInfo,
		Title:    "Lockup Pre-Assigned",
		Message:  fmt.Sprintf("%s holds lockup for %s per the duty schedule", m.DisplayName(), today),
		Data:     map[string]any{"date": today, "member_id": holderID},
	})
	r.broadcast.Publish(Event{
		Name: EventLockupStatus,
		At:   now,
		Payload: map[string]any{
			"date":              today,
			"building_status":   types.StatusOpen,
			"current_holder_id": holderID,
			"holder_name":       m.DisplayName(),
		},
	})
	r.logger.Printf("daily reset: pre-assigned lockup to %s for %s", holderID, today)
	return errs
}
