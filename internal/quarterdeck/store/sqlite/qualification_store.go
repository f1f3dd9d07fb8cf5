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

type QualificationStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewQualificationStore(db *sql.DB, writer *dbpkg.Worker) *QualificationStore {
	return &QualificationStore{db: db, writer: writer}
}

func (s *QualificationStore) ListTypes(ctx context.Context) ([]store.QualificationType, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT type_id, code, name, can_receive_lockup, is_automatic
FROM qualification_types
ORDER BY code;
`)
	if err != nil {
		return nil, fmt.Errorf("ListTypes query: %w", err)
	}
	defer rows.Close()

	var out []store.QualificationType
	for rows.Next() {
		var (
			t        store.QualificationType
			canRecv  int
			autoFlag int
		)
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &canRecv, &autoFlag); err != nil {
			return nil, fmt.Errorf("ListTypes scan: %w", err)
		}
		t.CanReceiveLockup = canRecv == 1
		t.IsAutomatic = autoFlag == 1
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *QualificationStore) ActiveCodes(ctx context.Context, memberID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT type_code
FROM member_qualifications
WHERE member_id = ? AND status = 'active';
`, memberID)
	if err != nil {
		return nil, fmt.Errorf("ActiveCodes query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("ActiveCodes scan: %w", err)
		}
		out[code] = struct{}{}
	}
	return out, rows.Err()
}

func (s *QualificationStore) Grant(ctx context.Context, g store.QualificationGrant) error {
	if g.GrantedAt.IsZero() {
		g.GrantedAt = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var known int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM qualification_types WHERE code = ?;`, g.Code).Scan(&known)
		if err == sql.ErrNoRows {
			return fault.NotFound("qualification type %s", g.Code)
		}
		if err != nil {
			return fmt.Errorf("Grant type check: %w", err)
		}

		var active int
		err = tx.QueryRowContext(ctx, `
SELECT 1 FROM member_qualifications
WHERE member_id = ? AND type_code = ? AND status = 'active';
`, g.MemberID, g.Code).Scan(&active)
		if err == nil {
			return fault.Conflict("member %s already holds %s", g.MemberID, g.Code)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("Grant active check: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO member_qualifications(qual_id, member_id, type_code, status, granted_by, notes, granted_at_ms)
VALUES (?, ?, ?, 'active', ?, ?, ?);
`, uuid.NewString(), g.MemberID, g.Code, nullStr(g.GrantedBy), g.Notes,
			g.GrantedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("Grant insert: %w", err)
		}
		return nil
	})
}

func (s *QualificationStore) RevokeActive(ctx context.Context, memberID, code, revokedBy, reason string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var by any
	if revokedBy != "" {
		by = revokedBy
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE member_qualifications
SET status        = 'revoked',
    revoked_at_ms = ?,
    revoked_by    = ?,
    revoke_reason = ?
WHERE member_id = ? AND type_code = ? AND status = 'active';
`, at.UTC().UnixMilli(), by, reason, memberID, code)
		if err != nil {
			return fmt.Errorf("RevokeActive update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("RevokeActive rows: %w", err)
		}
		if n == 0 {
			return fault.NotFound("active qualification %s for member %s", code, memberID)
		}
		return nil
	})
}

func (s *QualificationStore) CanReceiveLockup(ctx context.Context, memberID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1
FROM member_qualifications mq
JOIN qualification_types qt ON qt.code = mq.type_code
WHERE mq.member_id = ? AND mq.status = 'active' AND qt.can_receive_lockup = 1
LIMIT 1;
`, memberID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("CanReceiveLockup query: %w", err)
	}
	return true, nil
}

func (s *QualificationStore) ListLockupEligible(ctx context.Context) ([]store.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT m.member_id, m.first_name, m.last_name, m.rank, m.service_number,
       m.rank_tier, m.division_code, m.status, m.badge_id,
       m.missed_checkout_count, m.last_missed_checkout_ms
FROM members m
JOIN member_qualifications mq ON mq.member_id = m.member_id
JOIN qualification_types qt ON qt.code = mq.type_code
WHERE m.status = 'active' AND mq.status = 'active' AND qt.can_receive_lockup = 1
ORDER BY m.member_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListLockupEligible query: %w", err)
	}
	defer rows.Close()

	var out []store.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("ListLockupEligible scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
