package store

import (
	"context"
	"time"
)

// LockupDay is the custody record for one operational day.  Exactly one row
// exists per operational date; it is never deleted, only superseded by the
// next day's row.
type LockupDay struct {
	Date            string // operational date, YYYY-MM-DD
	BuildingStatus  string
	CurrentHolderID *string
	AcquiredAt      *time.Time
	SecuredAt       *time.Time
	SecuredBy       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TransferEvent is an append-only audit record of a custody handoff.  A nil
// FromMemberID marks an acquire (or a schedule pre-seed) rather than a
// member-to-member transfer.
type TransferEvent struct {
	ID            string
	Date          string // operational date of the lockup day
	FromMemberID  *string
	ToMemberID    string
	Reason        string
	Notes         string
	TransferredAt time.Time
}

// ExecutionEvent records a completed building lockup.
type ExecutionEvent struct {
	ID                 string
	Date               string
	ExecutedBy         string
	MembersCheckedOut  []string
	VisitorsCheckedOut []string
	Notes              string
	ExecutedAt         time.Time
}

// LockupStore owns LockupDay and custody audit rows.
//
// SwapHolder and MarkSecured are conditional writes keyed on the expected
// prior holder: when the stored holder no longer matches, the write fails with
// fault.ErrConflict and the caller must re-read.  This is the single
// linearization point for the one-holder-at-a-time invariant.
type LockupStore interface {
	// FindDay returns the record for the given operational date, if any.
	FindDay(ctx context.Context, date string) (LockupDay, bool, error)

	// CreateDay inserts a new day record; fault.ErrConflict if one exists.
	CreateDay(ctx context.Context, day LockupDay) (LockupDay, error)

	// SwapHolder conditionally replaces the current holder.  expected is the
	// holder the caller read (nil for "no holder"); next is the new holder.
	// Fails with fault.ErrConflict if the stored holder differs from expected
	// or the day is already secured.
	SwapHolder(ctx context.Context, date string, expected, next *string, at time.Time) error

	// MarkLockingUp flips the building status to locking_up.
	MarkLockingUp(ctx context.Context, date string) error

	// MarkSecured finalizes the day: building secured, holder frozen.
	// Conditional on the expected holder like SwapHolder.
	MarkSecured(ctx context.Context, date string, expected *string, securedBy string, at time.Time) error

	AppendTransfer(ctx context.Context, ev TransferEvent) error
	AppendExecution(ctx context.Context, ev ExecutionEvent) error

	// History queries, newest first.  start/end bound TransferredAt or
	// ExecutedAt when non-nil.
	ListTransfers(ctx context.Context, start, end *time.Time, limit, offset int) ([]TransferEvent, error)
	ListExecutions(ctx context.Context, start, end *time.Time, limit, offset int) ([]ExecutionEvent, error)
	CountTransfers(ctx context.Context, start, end *time.Time) (int, error)
	CountExecutions(ctx context.Context, start, end *time.Time) (int, error)
}
