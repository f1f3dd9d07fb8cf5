package store

import (
	"context"
	"time"
)

type WatchAssignment struct {
	MemberID     string
	PositionCode string
	IsCheckedIn  bool
}

// RosterStore is the weekly duty-role scheduling collaborator.
type RosterStore interface {
	// ScheduledHolderForWeek returns the member pre-assigned custody for the
	// week starting at weekStart (Monday 00:00 local), if any.
	ScheduledHolderForWeek(ctx context.Context, weekStart time.Time) (string, bool, error)

	// DutyWatchTeamForWeek returns the duty watch assignments for the week.
	// The second return is false when no watch schedule exists at all.
	DutyWatchTeamForWeek(ctx context.Context, weekStart time.Time) ([]WatchAssignment, bool, error)
}
