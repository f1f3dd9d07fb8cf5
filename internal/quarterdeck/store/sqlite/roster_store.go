package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/dmcewen/quarterdeck/server/internal/db"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

// scheduledHolderPosition is the roster position marking the member scheduled
// to carry lockup for the week.
const scheduledHolderPosition = "DDS"

type RosterStore struct {
	db       *sql.DB
	writer   *dbpkg.Worker
	presence *PresenceStore
}

func NewRosterStore(db *sql.DB, writer *dbpkg.Worker, presence *PresenceStore) *RosterStore {
	return &RosterStore{db: db, writer: writer, presence: presence}
}

func (s *RosterStore) ScheduledHolderForWeek(ctx context.Context, weekStart time.Time) (string, bool, error) {
	var memberID string
	err := s.db.QueryRowContext(ctx, `
SELECT member_id
FROM roster_assignments
WHERE week_start = ? AND position_code = ?
LIMIT 1;
`, weekStart.Format("2006-01-02"), scheduledHolderPosition).Scan(&memberID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ScheduledHolderForWeek query: %w", err)
	}
	return memberID, true, nil
}

func (s *RosterStore) DutyWatchTeamForWeek(ctx context.Context, weekStart time.Time) ([]store.WatchAssignment, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT member_id, position_code
FROM roster_assignments
WHERE week_start = ? AND position_code != ?
ORDER BY position_code, member_id;
`, weekStart.Format("2006-01-02"), scheduledHolderPosition)
	if err != nil {
		return nil, false, fmt.Errorf("DutyWatchTeamForWeek query: %w", err)
	}
	defer rows.Close()

	var team []store.WatchAssignment
	for rows.Next() {
		var a store.WatchAssignment
		if err := rows.Scan(&a.MemberID, &a.PositionCode); err != nil {
			return nil, false, fmt.Errorf("DutyWatchTeamForWeek scan: %w", err)
		}
		team = append(team, a)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(team) == 0 {
		return nil, false, nil
	}

	for i := range team {
		in, err := s.presence.IsCheckedIn(ctx, team[i].MemberID)
		if err != nil {
			return nil, true, err
		}
		team[i].IsCheckedIn = in
	}
	return team, true, nil
}
