package store

import (
	"context"
	"time"
)

// QualificationType is a role a member can hold.  Types flagged IsAutomatic
// are owned by the rule engine; the rest (notably SWK) are manual-only and the
// engine never touches them.
type QualificationType struct {
	ID               string
	Code             string
	Name             string
	CanReceiveLockup bool
	IsAutomatic      bool
}

type QualificationGrant struct {
	MemberID  string
	Code      string
	GrantedBy *string // nil for engine-granted
	Notes     string
	GrantedAt time.Time
}

type QualificationStore interface {
	ListTypes(ctx context.Context) ([]QualificationType, error)

	// ActiveCodes returns the codes of a member's active qualifications.
	ActiveCodes(ctx context.Context, memberID string) (map[string]struct{}, error)

	// Grant creates an active qualification row; fault.ErrConflict if the
	// member already holds an active row of that type.
	Grant(ctx context.Context, g QualificationGrant) error

	// RevokeActive soft-revokes the member's active row of the given type;
	// fault.ErrNotFound if there is none.
	RevokeActive(ctx context.Context, memberID, code, revokedBy, reason string, at time.Time) error

	// CanReceiveLockup reports whether the member holds any active
	// qualification whose type is custody-eligible.
	CanReceiveLockup(ctx context.Context, memberID string) (bool, error)

	// ListLockupEligible returns active members holding a custody-eligible
	// qualification, for transfer recipient lists.
	ListLockupEligible(ctx context.Context) ([]Member, error)
}
