package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	dbpkg "github.com/dmcewen/quarterdeck/server/internal/db"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
)

type LockupStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewLockupStore(db *sql.DB, writer *dbpkg.Worker) *LockupStore {
	return &LockupStore{db: db, writer: writer}
}

func (s *LockupStore) FindDay(ctx context.Context, date string) (store.LockupDay, bool, error) {
	var (
		day        store.LockupDay
		holder     sql.NullString
		acquiredMs sql.NullInt64
		securedMs  sql.NullInt64
		securedBy  sql.NullString
		createdMs  int64
		updatedMs  int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT date, building_status, current_holder_id, acquired_at_ms, secured_at_ms, secured_by,
       created_at_ms, updated_at_ms
FROM lockup_days
WHERE date = ?;
`, date).Scan(&day.Date, &day.BuildingStatus, &holder, &acquiredMs, &securedMs, &securedBy, &createdMs, &updatedMs)
	if err == sql.ErrNoRows {
		return store.LockupDay{}, false, nil
	}
	if err != nil {
		return store.LockupDay{}, false, fmt.Errorf("FindDay query: %w", err)
	}

	if holder.Valid {
		day.CurrentHolderID = &holder.String
	}
	if acquiredMs.Valid {
		t := time.UnixMilli(acquiredMs.Int64).UTC()
		day.AcquiredAt = &t
	}
	if securedMs.Valid {
		t := time.UnixMilli(securedMs.Int64).UTC()
		day.SecuredAt = &t
	}
	if securedBy.Valid {
		day.SecuredBy = &securedBy.String
	}
	day.CreatedAt = time.UnixMilli(createdMs).UTC()
	day.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return day, true, nil
}

func (s *LockupStore) CreateDay(ctx context.Context, day store.LockupDay) (store.LockupDay, error) {
	if day.CreatedAt.IsZero() {
		day.CreatedAt = time.Now().UTC()
	}
	day.UpdatedAt = day.CreatedAt

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM lockup_days WHERE date = ?;`, day.Date).Scan(&exists)
		if err == nil {
			return fault.Conflict("lockup day %s already exists", day.Date)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("CreateDay check: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO lockup_days(date, building_status, current_holder_id, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?);
`, day.Date, day.BuildingStatus, nullStr(day.CurrentHolderID),
			day.CreatedAt.UnixMilli(), day.UpdatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("CreateDay insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.LockupDay{}, err
	}
	return day, nil
}

// SwapHolder relies on SQLite's "IS ?" null-aware comparison so the conditional
// write covers both the unheld and held cases in one statement.
func (s *LockupStore) SwapHolder(ctx context.Context, date string, expected, next *string, at time.Time) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE lockup_days
SET current_holder_id = ?,
    acquired_at_ms    = ?,
    updated_at_ms     = ?
WHERE date = ?
  AND building_status != 'secured'
  AND current_holder_id IS ?;
`, nullStr(next), at.UTC().UnixMilli(), at.UTC().UnixMilli(), date, nullStr(expected))
		if err != nil {
			return fmt.Errorf("SwapHolder update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("SwapHolder rows: %w", err)
		}
		if n == 0 {
			return s.swapFailure(ctx, tx, date)
		}
		return nil
	})
}

func (s *LockupStore) MarkLockingUp(ctx context.Context, date string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE lockup_days
SET building_status = 'locking_up',
    updated_at_ms   = ?
WHERE date = ?
  AND building_status != 'secured';
`, time.Now().UTC().UnixMilli(), date)
		if err != nil {
			return fmt.Errorf("MarkLockingUp update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("MarkLockingUp rows: %w", err)
		}
		if n == 0 {
			return s.swapFailure(ctx, tx, date)
		}
		return nil
	})
}

func (s *LockupStore) MarkSecured(ctx context.Context, date string, expected *string, securedBy string, at time.Time) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE lockup_days
SET building_status = 'secured',
    secured_at_ms   = ?,
    secured_by      = ?,
    updated_at_ms   = ?
WHERE date = ?
  AND building_status != 'secured'
  AND current_holder_id IS ?;
`, at.UTC().UnixMilli(), securedBy, at.UTC().UnixMilli(), date, nullStr(expected))
		if err != nil {
			return fmt.Errorf("MarkSecured update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("MarkSecured rows: %w", err)
		}
		if n == 0 {
			return s.swapFailure(ctx, tx, date)
		}
		return nil
	})
}

// swapFailure distinguishes "row missing" from "condition lost" after a
// zero-row conditional update.
func (s *LockupStore) swapFailure(ctx context.Context, tx *sql.Tx, date string) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM lockup_days WHERE date = ?;`, date).Scan(&exists)
	if err == sql.ErrNoRows {
		return fault.NotFound("lockup day %s", date)
	}
	if err != nil {
		return fmt.Errorf("swap failure check: %w", err)
	}
	return fault.Conflict("lockup state for %s changed concurrently", date)
}

func (s *LockupStore) AppendTransfer(ctx context.Context, ev store.TransferEvent) error {
	if ev.TransferredAt.IsZero() {
		ev.TransferredAt = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO lockup_transfers(transfer_id, date, from_member_id, to_member_id, reason, notes, transferred_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, ev.ID, ev.Date, nullStr(ev.FromMemberID), ev.ToMemberID, ev.Reason, ev.Notes,
			ev.TransferredAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("AppendTransfer insert: %w", err)
		}
		return nil
	})
}

func (s *LockupStore) AppendExecution(ctx context.Context, ev store.ExecutionEvent) error {
	if ev.ExecutedAt.IsZero() {
		ev.ExecutedAt = time.Now().UTC()
	}
	membersJSON, err := json.Marshal(emptyIfNil(ev.MembersCheckedOut))
	if err != nil {
		return fmt.Errorf("AppendExecution marshal members: %w", err)
	}
	visitorsJSON, err := json.Marshal(emptyIfNil(ev.VisitorsCheckedOut))
	if err != nil {
		return fmt.Errorf("AppendExecution marshal visitors: %w", err)
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO lockup_executions(execution_id, date, executed_by, members_checked_out, visitors_checked_out, notes, executed_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, ev.ID, ev.Date, ev.ExecutedBy, string(membersJSON), string(visitorsJSON), ev.Notes,
			ev.ExecutedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("AppendExecution insert: %w", err)
		}
		return nil
	})
}

func (s *LockupStore) ListTransfers(ctx context.Context, start, end *time.Time, limit, offset int) ([]store.TransferEvent, error) {
	query := `
SELECT transfer_id, date, from_member_id, to_member_id, reason, notes, transferred_at_ms
FROM lockup_transfers
WHERE 1=1` + rangeClause("transferred_at_ms", start, end) + `
ORDER BY transferred_at_ms DESC
LIMIT ? OFFSET ?;`

	args := rangeArgs(start, end)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransfers query: %w", err)
	}
	defer rows.Close()

	var out []store.TransferEvent
	for rows.Next() {
		var (
			ev   store.TransferEvent
			from sql.NullString
			atMs int64
		)
		if err := rows.Scan(&ev.ID, &ev.Date, &from, &ev.ToMemberID, &ev.Reason, &ev.Notes, &atMs); err != nil {
			return nil, fmt.Errorf("ListTransfers scan: %w", err)
		}
		if from.Valid {
			ev.FromMemberID = &from.String
		}
		ev.TransferredAt = time.UnixMilli(atMs).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *LockupStore) ListExecutions(ctx context.Context, start, end *time.Time, limit, offset int) ([]store.ExecutionEvent, error) {
	query := `
SELECT execution_id, date, executed_by, members_checked_out, visitors_checked_out, notes, executed_at_ms
FROM lockup_executions
WHERE 1=1` + rangeClause("executed_at_ms", start, end) + `
ORDER BY executed_at_ms DESC
LIMIT ? OFFSET ?;`

	args := rangeArgs(start, end)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListExecutions query: %w", err)
	}
	defer rows.Close()

	var out []store.ExecutionEvent
	for rows.Next() {
		var (
			ev           store.ExecutionEvent
			membersJSON  string
			visitorsJSON string
			atMs         int64
		)
		if err := rows.Scan(&ev.ID, &ev.Date, &ev.ExecutedBy, &membersJSON, &visitorsJSON, &ev.Notes, &atMs); err != nil {
			return nil, fmt.Errorf("ListExecutions scan: %w", err)
		}
		if err := json.Unmarshal([]byte(membersJSON), &ev.MembersCheckedOut); err != nil {
			return nil, fmt.Errorf("ListExecutions members json: %w", err)
		}
		if err := json.Unmarshal([]byte(visitorsJSON), &ev.VisitorsCheckedOut); err != nil {
			return nil, fmt.Errorf("ListExecutions visitors json: %w", err)
		}
		ev.ExecutedAt = time.UnixMilli(atMs).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *LockupStore) CountTransfers(ctx context.Context, start, end *time.Time) (int, error) {
	return s.countRange(ctx, "lockup_transfers", "transferred_at_ms", start, end)
}

func (s *LockupStore) CountExecutions(ctx context.Context, start, end *time.Time) (int, error) {
	return s.countRange(ctx, "lockup_executions", "executed_at_ms", start, end)
}

func (s *LockupStore) countRange(ctx context.Context, table, col string, start, end *time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM ` + table + ` WHERE 1=1` + rangeClause(col, start, end) + `;`
	var n int
	if err := s.db.QueryRowContext(ctx, query, rangeArgs(start, end)...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func rangeClause(col string, start, end *time.Time) string {
	clause := ""
	if start != nil {
		clause += " AND " + col + " >= ?"
	}
	if end != nil {
		clause += " AND " + col + " < ?"
	}
	return clause
}

func rangeArgs(start, end *time.Time) []any {
	var args []any
	if start != nil {
		args = append(args, start.UTC().UnixMilli())
	}
	if end != nil {
		args = append(args, end.UTC().UnixMilli())
	}
	return args
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
