package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/service"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store/memory"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/types"
)

func TestRaise_PersistsActiveAlert(t *testing.T) {
	st := memory.NewAlertStore()
	clk := clock.NewFake(time.Date(2026, time.January, 6, 19, 0, 0, 0, time.UTC))
	svc := service.NewAlertService(st, nil, clk, silentLogger())

	svc.Raise(context.Background(), types.Alert{
		Type:     types.AlertLockupUnassigned,
		Severity: types.SeverityCritical,
		Title:    "Lockup Unassigned on Watch Night",
		Message:  "No one holds lockup tonight",
	})

	active, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active alert, got %d", len(active))
	}
	if active[0].Status != "active" || active[0].ID == "" {
		t.Errorf("expected stored active alert with an ID, got %+v", active[0])
	}
}

func TestRaise_RepeatWithinThrottle_Dropped(t *testing.T) {
	st := memory.NewAlertStore()
	clk := clock.NewFake(time.Date(2026, time.January, 6, 19, 0, 0, 0, time.UTC))
	svc := service.NewAlertService(st, nil, clk, silentLogger())

	a := types.Alert{Type: types.AlertDutyWatchMissing, Severity: types.SeverityWarning, Title: "x", Message: "y"}
	svc.Raise(context.Background(), a)
	svc.Raise(context.Background(), a)

	if got := len(st.Alerts()); got != 1 {
		t.Fatalf("expected repeat suppressed, got %d stored alerts", got)
	}

	// A different type is not throttled by the first.
	svc.Raise(context.Background(), types.Alert{Type: types.AlertLockupUnassigned, Severity: types.SeverityCritical, Title: "x", Message: "y"})
	if got := len(st.Alerts()); got != 2 {
		t.Fatalf("expected second type stored, got %d", got)
	}
}

func TestRaise_ThrottleDisabled_AllStored(t *testing.T) {
	st := memory.NewAlertStore()
	clk := clock.NewFake(time.Date(2026, time.January, 6, 19, 0, 0, 0, time.UTC))
	svc := service.NewAlertService(st, nil, clk, silentLogger())
	svc.SetThrottle(0)

	a := types.Alert{Type: types.AlertDutyWatchMissing, Severity: types.SeverityWarning, Title: "x", Message: "y"}
	svc.Raise(context.Background(), a)
	svc.Raise(context.Background(), a)

	if got := len(st.Alerts()); got != 2 {
		t.Fatalf("expected both stored with throttle off, got %d", got)
	}
}

func TestAcknowledge_RemovesFromActive(t *testing.T) {
	st := memory.NewAlertStore()
	clk := clock.NewFake(time.Date(2026, time.January, 6, 19, 0, 0, 0, time.UTC))
	svc := service.NewAlertService(st, nil, clk, silentLogger())

	svc.Raise(context.Background(), types.Alert{Type: types.AlertLockupHandoff, Severity: types.SeverityInfo, Title: "x", Message: "y"})

	active, _ := svc.ListActive(context.Background())
	if len(active) != 1 {
		t.Fatalf("expected 1 active alert, got %d", len(active))
	}
	if err := svc.Acknowledge(context.Background(), active[0].ID, "m1"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	active, _ = svc.ListActive(context.Background())
	if len(active) != 0 {
		t.Fatalf("expected no active alerts after ack, got %d", len(active))
	}
}
