package store

import (
	"context"
	"time"
)

type Member struct {
	ID            string
	FirstName     string
	LastName      string
	Rank          string
	ServiceNumber string
	RankTier      int // ordered rank tier, 1 = most junior; drives rule eligibility
	DivisionCode  string
	Status        string // "active" | "inactive"
	BadgeID       string

	MissedCheckoutCount int
	LastMissedCheckout  *time.Time
}

// DisplayName renders "Rank First Last" for logs and alert messages.
func (m Member) DisplayName() string {
	return m.Rank + " " + m.FirstName + " " + m.LastName
}

// MissedCheckout records one forced checkout during the daily reset.
type MissedCheckout struct {
	ID                string
	MemberID          string
	Date              string // operational date the member failed to check out of
	OriginalCheckinAt time.Time
	ResolvedBy        string
	Notes             string
	CreatedAt         time.Time
}

type MemberStore interface {
	Find(ctx context.Context, id string) (Member, bool, error)
	ListActive(ctx context.Context) ([]Member, error)

	// RecordMissedCheckout inserts the row and bumps the member's
	// missed-checkout counter in one write.
	RecordMissedCheckout(ctx context.Context, mc MissedCheckout) error
}
