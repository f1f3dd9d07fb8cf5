package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

// GrantRow is the in-memory shape of one member qualification grant,
// exported so tests can inspect revocation stamps.
type GrantRow struct {
	ID           string
	MemberID     string
	Code         string
	Status       string // "active" | "revoked"
	GrantedBy    *string
	Notes        string
	GrantedAt    time.Time
	RevokedAt    *time.Time
	RevokedBy    *string
	RevokeReason string
}

type QualificationStore struct {
	mu      sync.Mutex
	types   map[string]store.QualificationType
	rows    []GrantRow
	members *MemberStore // used to resolve eligible-member details; may be nil
}

func NewQualificationStore(types []store.QualificationType, members *MemberStore) *QualificationStore {
	s := &QualificationStore{
		types:   make(map[string]store.QualificationType, len(types)),
		members: members,
	}
	for _, t := range types {
		s.types[t.Code] = t
	}
	return s
}

func (s *QualificationStore) ListTypes(_ context.Context) ([]store.QualificationType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.QualificationType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	return out, nil
}

func (s *QualificationStore) ActiveCodes(_ context.Context, memberID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, r := range s.rows {
		if r.MemberID == memberID && r.Status == "active" {
			out[r.Code] = struct{}{}
		}
	}
	return out, nil
}

func (s *QualificationStore) Grant(_ context.Context, g store.QualificationGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.types[g.Code]; !ok {
		return fault.NotFound("qualification type %s", g.Code)
	}
	for _, r := range s.rows {
		if r.MemberID == g.MemberID && r.Code == g.Code && r.Status == "active" {
			return fault.Conflict("member %s already holds active %s", g.MemberID, g.Code)
		}
	}

	at := g.GrantedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.rows = append(s.rows, GrantRow{
		ID:        uuid.NewString(),
		MemberID:  g.MemberID,
		Code:      g.Code,
		Status:    "active",
		GrantedBy: g.GrantedBy,
		Notes:     g.Notes,
		GrantedAt: at,
	})
	return nil
}

func (s *QualificationStore) RevokeActive(_ context.Context, memberID, code, revokedBy, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows {
		r := &s.rows[i]
		if r.MemberID == memberID && r.Code == code && r.Status == "active" {
			r.Status = "revoked"
			t := at
			r.RevokedAt = &t
			if revokedBy != "" {
				by := revokedBy
				r.RevokedBy = &by
			}
			r.RevokeReason = reason
			return nil
		}
	}
	return fault.NotFound("no active %s qualification for member %s", code, memberID)
}

func (s *QualificationStore) CanReceiveLockup(_ context.Context, memberID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canReceiveLocked(memberID), nil
}

func (s *QualificationStore) canReceiveLocked(memberID string) bool {
	for _, r := range s.rows {
		if r.MemberID != memberID || r.Status != "active" {
			continue
		}
		if t, ok := s.types[r.Code]; ok && t.CanReceiveLockup {
			return true
		}
	}
	return false
}

func (s *QualificationStore) ListLockupEligible(ctx context.Context) ([]store.Member, error) {
	if s.members == nil {
		return nil, nil
	}
	active, err := s.members.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Member
	for _, m := range active {
		if s.canReceiveLocked(m.ID) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Rows returns a copy of all grant rows.  Test-only helper.
func (s *QualificationStore) Rows() []GrantRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]GrantRow, len(s.rows))
	copy(out, s.rows)
	return out
}
