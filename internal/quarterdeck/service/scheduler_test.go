package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/opcal"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/service"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store/memory"
)

func newTestScheduler(t *testing.T) (*service.Scheduler, *memory.LockupStore) {
	t.Helper()

	cal := opcal.MustNew(opcal.DefaultTimezone, opcal.DefaultRolloverHour)
	clk := clock.NewFake(time.Date(2026, time.January, 7, 12, 0, 0, 0, cal.Location()))

	members := memory.NewMemberStore()
	presence := memory.NewPresenceStore()
	lockups := memory.NewLockupStore()
	roster := memory.NewRosterStore(presence)

	reset := service.NewDailyReset(service.ResetDeps{
		Lockups:  lockups,
		Members:  members,
		Presence: presence,
		Roster:   roster,
		Calendar: cal,
		Clock:    clk,
		Logger:   silentLogger(),
	})
	watch := service.NewDutyWatchMonitor(service.WatchDeps{
		Lockups:  lockups,
		Members:  members,
		Roster:   roster,
		Calendar: cal,
		Clock:    clk,
		Logger:   silentLogger(),
	})

	sched := service.NewScheduler(reset, watch, cal, clk, service.SchedulerConfig{}, silentLogger())
	return sched, lockups
}

func TestScheduler_StartRunsCatchup(t *testing.T) {
	sched, lockups := newTestScheduler(t)

	sched.Start(context.Background())
	defer sched.Stop()

	// The startup catch-up should create today's day record shortly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok, _ := lockups.FindDay(context.Background(), "2026-01-07"); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("startup catch-up never created today's day record")
}

func TestScheduler_StopWaitsForLoop(t *testing.T) {
	sched, _ := newTestScheduler(t)

	sched.Start(context.Background())

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
