package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/dmcewen/quarterdeck/server/internal/db"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

// PresenceStore reads presence off the check-in event log: the newest event
// per member decides whether they are in the building.
type PresenceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewPresenceStore(db *sql.DB, writer *dbpkg.Worker) *PresenceStore {
	return &PresenceStore{db: db, writer: writer}
}

func (s *PresenceStore) ListPresentMembers(ctx context.Context) ([]store.PresenceMember, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT m.member_id, m.first_name, m.last_name, m.rank, m.badge_id, latest.at_ms
FROM members m
JOIN (
  SELECT member_id, direction, at_ms,
         ROW_NUMBER() OVER (PARTITION BY member_id ORDER BY at_ms DESC) AS rn
  FROM checkin_events
) latest ON latest.member_id = m.member_id AND latest.rn = 1
WHERE latest.direction = 'in'
ORDER BY m.member_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListPresentMembers query: %w", err)
	}
	defer rows.Close()

	var out []store.PresenceMember
	for rows.Next() {
		var (
			p           store.PresenceMember
			first, last string
			atMs        int64
		)
		if err := rows.Scan(&p.ID, &first, &last, &p.Rank, &p.BadgeID, &atMs); err != nil {
			return nil, fmt.Errorf("ListPresentMembers scan: %w", err)
		}
		p.Name = p.Rank + " " + first + " " + last
		p.LastCheckinAt = time.UnixMilli(atMs).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PresenceStore) ListPresentVisitors(ctx context.Context) ([]store.PresenceVisitor, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT visitor_id, name, checked_in_ms
FROM visitors
WHERE checked_out_ms IS NULL
ORDER BY visitor_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListPresentVisitors query: %w", err)
	}
	defer rows.Close()

	var out []store.PresenceVisitor
	for rows.Next() {
		var (
			v    store.PresenceVisitor
			inMs int64
		)
		if err := rows.Scan(&v.ID, &v.Name, &inMs); err != nil {
			return nil, fmt.Errorf("ListPresentVisitors scan: %w", err)
		}
		v.CheckInAt = time.UnixMilli(inMs).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PresenceStore) IsCheckedIn(ctx context.Context, memberID string) (bool, error) {
	var direction string
	err := s.db.QueryRowContext(ctx, `
SELECT direction
FROM checkin_events
WHERE member_id = ?
ORDER BY at_ms DESC, event_id DESC
LIMIT 1;
`, memberID).Scan(&direction)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsCheckedIn query: %w", err)
	}
	return direction == "in", nil
}

func (s *PresenceStore) ForceCheckoutMember(ctx context.Context, memberID, actor string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var direction string
		err := tx.QueryRowContext(ctx, `
SELECT direction
FROM checkin_events
WHERE member_id = ?
ORDER BY at_ms DESC, event_id DESC
LIMIT 1;
`, memberID).Scan(&direction)
		if err == sql.ErrNoRows || (err == nil && direction != "in") {
			return fault.NotFound("member %s is not checked in", memberID)
		}
		if err != nil {
			return fmt.Errorf("ForceCheckoutMember check: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO checkin_events(event_id, member_id, direction, actor, at_ms)
VALUES (?, ?, 'out', ?, ?);
`, uuid.NewString(), memberID, actor, at.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("ForceCheckoutMember insert: %w", err)
		}
		return nil
	})
}

func (s *PresenceStore) ForceCheckoutVisitor(ctx context.Context, visitorID, actor string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE visitors
SET checked_out_ms = ?,
    checkout_actor = ?
WHERE visitor_id = ? AND checked_out_ms IS NULL;
`, at.UTC().UnixMilli(), actor, visitorID)
		if err != nil {
			return fmt.Errorf("ForceCheckoutVisitor update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("ForceCheckoutVisitor rows: %w", err)
		}
		if n == 0 {
			return fault.NotFound("present visitor %s", visitorID)
		}
		return nil
	})
}
