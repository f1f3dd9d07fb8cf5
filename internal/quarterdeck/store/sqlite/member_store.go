package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/dmcewen/quarterdeck/server/internal/db"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

type MemberStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewMemberStore(db *sql.DB, writer *dbpkg.Worker) *MemberStore {
	return &MemberStore{db: db, writer: writer}
}

const memberColumns = `member_id, first_name, last_name, rank, service_number,
       rank_tier, division_code, status, badge_id,
       missed_checkout_count, last_missed_checkout_ms`

func scanMember(row interface{ Scan(...any) error }) (store.Member, error) {
	var (
		m      store.Member
		lastMs sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Rank, &m.ServiceNumber,
		&m.RankTier, &m.DivisionCode, &m.Status, &m.BadgeID,
		&m.MissedCheckoutCount, &lastMs)
	if err != nil {
		return store.Member{}, err
	}
	if lastMs.Valid {
		t := time.UnixMilli(lastMs.Int64).UTC()
		m.LastMissedCheckout = &t
	}
	return m, nil
}

func (s *MemberStore) Find(ctx context.Context, id string) (store.Member, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+memberColumns+`
FROM members
WHERE member_id = ?;
`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return store.Member{}, false, nil
	}
	if err != nil {
		return store.Member{}, false, fmt.Errorf("Find query: %w", err)
	}
	return m, true, nil
}

func (s *MemberStore) ListActive(ctx context.Context) ([]store.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+memberColumns+`
FROM members
WHERE status = 'active'
ORDER BY member_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListActive query: %w", err)
	}
	defer rows.Close()

	var out []store.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MemberStore) RecordMissedCheckout(ctx context.Context, mc store.MissedCheckout) error {
	if mc.CreatedAt.IsZero() {
		mc.CreatedAt = time.Now().UTC()
	}
	ms := mc.CreatedAt.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE members
SET missed_checkout_count   = missed_checkout_count + 1,
    last_missed_checkout_ms = ?,
    updated_at_ms           = ?
WHERE member_id = ?;
`, ms, ms, mc.MemberID)
		if err != nil {
			return fmt.Errorf("RecordMissedCheckout update member: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("RecordMissedCheckout rows: %w", err)
		}
		if n == 0 {
			return fault.NotFound("member %s", mc.MemberID)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO missed_checkouts(missed_id, member_id, date, original_checkin_ms, resolved_by, notes, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, mc.ID, mc.MemberID, mc.Date, mc.OriginalCheckinAt.UTC().UnixMilli(),
			mc.ResolvedBy, mc.Notes, ms); err != nil {
			return fmt.Errorf("RecordMissedCheckout insert: %w", err)
		}
		return nil
	})
}
