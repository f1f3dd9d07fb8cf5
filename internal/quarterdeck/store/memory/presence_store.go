package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

// Checkout is one forced-checkout event captured by the fake presence store.
type Checkout struct {
	ID    string // member or visitor ID
	Kind  string // "member" | "visitor"
	Actor string
	At    time.Time
}

type PresenceStore struct {
	mu        sync.Mutex
	members   map[string]store.PresenceMember
	visitors  map[string]store.PresenceVisitor
	checkouts []Checkout
	failFor   map[string]error
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{
		members:  make(map[string]store.PresenceMember),
		visitors: make(map[string]store.PresenceVisitor),
		failFor:  make(map[string]error),
	}
}

// CheckInMember marks a member present.  Setup helper.
func (s *PresenceStore) CheckInMember(m store.PresenceMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

// CheckInVisitor marks a visitor present.  Setup helper.
func (s *PresenceStore) CheckInVisitor(v store.PresenceVisitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visitors[v.ID] = v
}

// FailCheckoutFor makes ForceCheckoutMember fail for the given member.
// Test-only failure injection.
func (s *PresenceStore) FailCheckoutFor(memberID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[memberID] = err
}

func (s *PresenceStore) ListPresentMembers(_ context.Context) ([]store.PresenceMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.PresenceMember, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *PresenceStore) ListPresentVisitors(_ context.Context) ([]store.PresenceVisitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.PresenceVisitor, 0, len(s.visitors))
	for _, v := range s.visitors {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *PresenceStore) IsCheckedIn(_ context.Context, memberID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[memberID]
	return ok, nil
}

func (s *PresenceStore) ForceCheckoutMember(_ context.Context, memberID, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failFor[memberID]; ok {
		return err
	}
	if _, ok := s.members[memberID]; !ok {
		return fault.NotFound("member %s is not checked in", memberID)
	}
	delete(s.members, memberID)
	s.checkouts = append(s.checkouts, Checkout{ID: memberID, Kind: "member", Actor: actor, At: at})
	return nil
}

func (s *PresenceStore) ForceCheckoutVisitor(_ context.Context, visitorID, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visitors[visitorID]; !ok {
		return fault.NotFound("visitor %s is not checked in", visitorID)
	}
	delete(s.visitors, visitorID)
	s.checkouts = append(s.checkouts, Checkout{ID: visitorID, Kind: "visitor", Actor: actor, At: at})
	return nil
}

// Checkouts returns a copy of all forced checkouts.  Test-only helper.
func (s *PresenceStore) Checkouts() []Checkout {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Checkout, len(s.checkouts))
	copy(out, s.checkouts)
	return out
}
