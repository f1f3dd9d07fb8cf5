package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

type RosterStore struct {
	mu       sync.Mutex
	holders  map[string]string // week start date -> member ID
	teams    map[string][]store.WatchAssignment
	presence *PresenceStore // fills IsCheckedIn when set
	queries  int
}

// NewRosterStore builds a fake roster.  When presence is non-nil, returned
// watch assignments carry live IsCheckedIn values from it.
func NewRosterStore(presence *PresenceStore) *RosterStore {
	return &RosterStore{
		holders:  make(map[string]string),
		teams:    make(map[string][]store.WatchAssignment),
		presence: presence,
	}
}

func weekKey(weekStart time.Time) string {
	return weekStart.Format("2006-01-02")
}

// SetScheduledHolder assigns the week's custody holder.  Setup helper.
func (s *RosterStore) SetScheduledHolder(weekStart time.Time, memberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holders[weekKey(weekStart)] = memberID
}

// SetTeam assigns the week's duty watch team.  Setup helper.
func (s *RosterStore) SetTeam(weekStart time.Time, team []store.WatchAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[weekKey(weekStart)] = team
}

func (s *RosterStore) ScheduledHolderForWeek(_ context.Context, weekStart time.Time) (string, bool, error) {
	s.mu.Lock()
	s.queries++
	id, ok := s.holders[weekKey(weekStart)]
	s.mu.Unlock()
	return id, ok, nil
}

func (s *RosterStore) DutyWatchTeamForWeek(ctx context.Context, weekStart time.Time) ([]store.WatchAssignment, bool, error) {
	s.mu.Lock()
	s.queries++
	team, ok := s.teams[weekKey(weekStart)]
	presence := s.presence
	s.mu.Unlock()

	if !ok {
		return nil, false, nil
	}

	out := make([]store.WatchAssignment, len(team))
	copy(out, team)
	if presence != nil {
		for i := range out {
			in, err := presence.IsCheckedIn(ctx, out[i].MemberID)
			if err != nil {
				return nil, true, err
			}
			out[i].IsCheckedIn = in
		}
	}
	return out, true, nil
}

// Queries reports how many roster lookups were made.  Test-only helper.
func (s *RosterStore) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}
