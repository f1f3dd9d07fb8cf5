package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

type MemberStore struct {
	mu      sync.Mutex
	members map[string]store.Member
	missed  []store.MissedCheckout
}

func NewMemberStore(members ...store.Member) *MemberStore {
	m := &MemberStore{members: make(map[string]store.Member, len(members))}
	for _, mem := range members {
		m.members[mem.ID] = mem
	}
	return m
}

// Add inserts or replaces a member.  Setup helper for tests and dev seeding.
func (s *MemberStore) Add(m store.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *MemberStore) Find(_ context.Context, id string) (store.Member, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	return m, ok, nil
}

func (s *MemberStore) ListActive(_ context.Context) ([]store.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Member
	for _, m := range s.members {
		if m.Status == "active" {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemberStore) RecordMissedCheckout(_ context.Context, mc store.MissedCheckout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[mc.MemberID]
	if !ok {
		return fault.NotFound("member %s", mc.MemberID)
	}
	if mc.CreatedAt.IsZero() {
		mc.CreatedAt = time.Now().UTC()
	}
	s.missed = append(s.missed, mc)

	m.MissedCheckoutCount++
	t := mc.CreatedAt
	m.LastMissedCheckout = &t
	s.members[mc.MemberID] = m
	return nil
}

// MissedCheckouts returns a copy of all recorded rows.  Test-only helper.
func (s *MemberStore) MissedCheckouts() []store.MissedCheckout {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.MissedCheckout, len(s.missed))
	copy(out, s.missed)
	return out
}

// Get returns the stored member value.  Test-only helper for counter checks.
func (s *MemberStore) Get(id string) (store.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	return m, ok
}
