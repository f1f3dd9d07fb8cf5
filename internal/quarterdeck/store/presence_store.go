package store

import (
	"context"
	"time"
)

type PresenceMember struct {
	ID            string
	Name          string
	Rank          string
	BadgeID       string
	LastCheckinAt time.Time
}

type PresenceVisitor struct {
	ID        string
	Name      string
	CheckInAt time.Time
}

// PresenceStore is the live check-in collaborator.  Check-in/out CRUD is
// owned elsewhere; this is the read/force-checkout contract the custody core
// consumes.
type PresenceStore interface {
	ListPresentMembers(ctx context.Context) ([]PresenceMember, error)
	ListPresentVisitors(ctx context.Context) ([]PresenceVisitor, error)
	IsCheckedIn(ctx context.Context, memberID string) (bool, error)

	// ForceCheckoutMember appends a synthetic checkout event tagged with the
	// given actor ("SYSTEM" for the daily reset, "lockup-checkout" for an
	// execution).
	ForceCheckoutMember(ctx context.Context, memberID, actor string, at time.Time) error
	ForceCheckoutVisitor(ctx context.Context, visitorID, actor string, at time.Time) error
}
