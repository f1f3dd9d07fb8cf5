package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/opcal"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/service"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store/memory"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/types"
)

type watchFixture struct {
	cal      *opcal.Calendar
	clk      *clock.Fake
	lockups  *memory.LockupStore
	members  *memory.MemberStore
	presence *memory.PresenceStore
	roster   *memory.RosterStore
	sink     *captureSink
	watch    *service.DutyWatchMonitor
}

// newWatchFixture freezes the clock at 19:00 on Tuesday Jan 6, a watch night.
func newWatchFixture(t *testing.T) *watchFixture {
	t.Helper()

	cal := opcal.MustNew(opcal.DefaultTimezone, opcal.DefaultRolloverHour)
	clk := clock.NewFake(time.Date(2026, time.January, 6, 19, 0, 0, 0, cal.Location()))

	members := memory.NewMemberStore(
		store.Member{ID: "m1", FirstName: "Avery", LastName: "Caldwell", Rank: "PO1", RankTier: 6, Status: "active"},
		store.Member{ID: "m2", FirstName: "Jordan", LastName: "Tran", Rank: "PO2", RankTier: 5, Status: "active"},
		store.Member{ID: "m3", FirstName: "Sam", LastName: "Okafor", Rank: "S1", RankTier: 3, Status: "active"},
		store.Member{ID: "m4", FirstName: "Riley", LastName: "Martens", Rank: "S2", RankTier: 2, Status: "active"},
		store.Member{ID: "m5", FirstName: "Casey", LastName: "Dubois", Rank: "S3", RankTier: 1, Status: "active"},
	)
	presence := memory.NewPresenceStore()
	lockups := memory.NewLockupStore()
	roster := memory.NewRosterStore(presence)
	sink := &captureSink{}

	watch := service.NewDutyWatchMonitor(service.WatchDeps{
		Lockups:  lockups,
		Members:  members,
		Roster:   roster,
		Calendar: cal,
		Clock:    clk,
		Alerts:   sink,
		Logger:   silentLogger(),
	})

	return &watchFixture{
		cal: cal, clk: clk,
		lockups: lockups, members: members, presence: presence, roster: roster,
		sink: sink, watch: watch,
	}
}

func (f *watchFixture) fullTeam() []store.WatchAssignment {
	return []store.WatchAssignment{
		{MemberID: "m1", PositionCode: "SWK"},
		{MemberID: "m2", PositionCode: "DSWK"},
		{MemberID: "m3", PositionCode: "QM"},
		{MemberID: "m4", PositionCode: "BM"},
		{MemberID: "m5", PositionCode: "APS"},
	}
}

func (f *watchFixture) checkInAll() {
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		f.presence.CheckInMember(store.PresenceMember{ID: id, Name: id, LastCheckinAt: f.clk.Now()})
	}
}

func (f *watchFixture) setHolder(t *testing.T, memberID string) {
	t.Helper()
	ctx := context.Background()
	id := memberID
	if _, err := f.lockups.CreateDay(ctx, store.LockupDay{
		Date:            f.cal.DateString(f.clk.Now()),
		BuildingStatus:  types.StatusOpen,
		CurrentHolderID: &id,
	}); err != nil {
		t.Fatalf("seed day: %v", err)
	}
}

func TestWatchRun_NonWatchNight_NoStoreCalls(t *testing.T) {
	f := newWatchFixture(t)

	// Wednesday evening.
	f.clk.Set(time.Date(2026, time.January, 7, 19, 0, 0, 0, f.cal.Location()))

	if err := f.watch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.sink.count() != 0 {
		t.Error("no alerts expected on a non-watch night")
	}
	if f.roster.Queries() != 0 {
		t.Error("non-watch night must not query the roster")
	}
}

func TestWatchRun_NoTeamScheduled_CriticalAlert(t *testing.T) {
	f := newWatchFixture(t)

	if err := f.watch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	alerts := f.sink.byType(types.AlertDutyWatchMissing)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 missing-watch alert, got %d", len(alerts))
	}
	if alerts[0].Severity != types.SeverityCritical {
		t.Errorf("expected critical, got %s", alerts[0].Severity)
	}
	// With no team there is nothing else to check.
	if f.sink.count() != 1 {
		t.Errorf("expected only the missing-watch alert, got %d alerts", f.sink.count())
	}
}

func TestWatchRun_UnfilledPositions_Warning(t *testing.T) {
	f := newWatchFixture(t)
	weekStart, _ := f.cal.Week(f.clk.Now())

	// No QM or APS scheduled.
	f.roster.SetTeam(weekStart, []store.WatchAssignment{
		{MemberID: "m1", PositionCode: "SWK"},
		{MemberID: "m2", PositionCode: "DSWK"},
		{MemberID: "m4", PositionCode: "BM"},
	})
	f.checkInAll()
	f.setHolder(t, "m1")

	if err := f.watch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	alerts := f.sink.byType(types.AlertDutyWatchMissing)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 unfilled-positions alert, got %d", len(alerts))
	}
	if alerts[0].Severity != types.SeverityWarning {
		t.Errorf("expected warning, got %s", alerts[0].Severity)
	}
	positions, ok := alerts[0].Data["positions"].([]string)
	if !ok || len(positions) != 2 {
		t.Fatalf("expected 2 missing positions, got %v", alerts[0].Data["positions"])
	}
}

func TestWatchRun_TeamNotCheckedIn_Warning(t *testing.T) {
	f := newWatchFixture(t)
	weekStart, _ := f.cal.Week(f.clk.Now())

	f.roster.SetTeam(weekStart, f.fullTeam())
	// Only m1 and m2 show up.
	f.presence.CheckInMember(store.PresenceMember{ID: "m1", Name: "m1", LastCheckinAt: f.clk.Now()})
	f.presence.CheckInMember(store.PresenceMember{ID: "m2", Name: "m2", LastCheckinAt: f.clk.Now()})
	f.setHolder(t, "m1")

	if err := f.watch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	alerts := f.sink.byType(types.AlertDutyWatchNotCheckedIn)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 not-checked-in alert, got %d", len(alerts))
	}
	if alerts[0].Data["count"] != 3 {
		t.Errorf("expected 3 absentees, got %v", alerts[0].Data["count"])
	}
}

func TestWatchRun_LockupUnassigned_Critical(t *testing.T) {
	f := newWatchFixture(t)
	weekStart, _ := f.cal.Week(f.clk.Now())

	f.roster.SetTeam(weekStart, f.fullTeam())
	f.checkInAll()
	// Day exists but nobody holds lockup.
	if _, err := f.lockups.CreateDay(context.Background(), store.LockupDay{
		Date:           f.cal.DateString(f.clk.Now()),
		BuildingStatus: types.StatusOpen,
	}); err != nil {
		t.Fatalf("seed day: %v", err)
	}

	if err := f.watch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	alerts := f.sink.byType(types.AlertLockupUnassigned)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 unassigned alert, got %d", len(alerts))
	}
	if alerts[0].Severity != types.SeverityCritical {
		t.Errorf("expected critical, got %s", alerts[0].Severity)
	}
}

func TestWatchRun_HolderOutsideLeadership_Warning(t *testing.T) {
	f := newWatchFixture(t)
	weekStart, _ := f.cal.Week(f.clk.Now())

	f.roster.SetTeam(weekStart, f.fullTeam())
	f.checkInAll()
	// The quartermaster holds lockup instead of SWK/DSWK.
	f.setHolder(t, "m3")

	if err := f.watch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	alerts := f.sink.byType(types.AlertLockupNotTransferred)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 not-transferred alert, got %d", len(alerts))
	}
	if alerts[0].Data["holder_id"] != "m3" {
		t.Errorf("expected holder m3 named, got %v", alerts[0].Data["holder_id"])
	}
}

func TestWatchRun_LeaderHoldsLockup_Quiet(t *testing.T) {
	f := newWatchFixture(t)
	weekStart, _ := f.cal.Week(f.clk.Now())

	f.roster.SetTeam(weekStart, f.fullTeam())
	f.checkInAll()
	f.setHolder(t, "m2") // DSWK

	if err := f.watch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.sink.count() != 0 {
		t.Errorf("healthy watch night must raise no alerts, got %d", f.sink.count())
	}
}

func TestWatchRun_SecuredBuilding_NoCustodyAlert(t *testing.T) {
	f := newWatchFixture(t)
	weekStart, _ := f.cal.Week(f.clk.Now())

	f.roster.SetTeam(weekStart, f.fullTeam())
	f.checkInAll()
	if _, err := f.lockups.CreateDay(context.Background(), store.LockupDay{
		Date:           f.cal.DateString(f.clk.Now()),
		BuildingStatus: types.StatusSecured,
	}); err != nil {
		t.Fatalf("seed day: %v", err)
	}

	if err := f.watch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(f.sink.byType(types.AlertLockupUnassigned)) != 0 {
		t.Error("secured building needs no custody alert")
	}
}
