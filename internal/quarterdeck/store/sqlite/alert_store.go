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

type AlertStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAlertStore(db *sql.DB, writer *dbpkg.Worker) *AlertStore {
	return &AlertStore{db: db, writer: writer}
}

func (s *AlertStore) RecordAlert(ctx context.Context, rec store.AlertRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data := rec.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("RecordAlert marshal data: %w", err)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO alerts(alert_id, type, severity, title, message, data, status, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.Type, rec.Severity, rec.Title, rec.Message, string(dataJSON),
			rec.Status, rec.CreatedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("RecordAlert insert: %w", err)
		}
		return nil
	})
}

func (s *AlertStore) ListActive(ctx context.Context) ([]store.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT alert_id, type, severity, title, message, data, status, created_at_ms
FROM alerts
WHERE status = 'active'
ORDER BY created_at_ms DESC;
`)
	if err != nil {
		return nil, fmt.Errorf("ListActive query: %w", err)
	}
	defer rows.Close()

	var out []store.AlertRecord
	for rows.Next() {
		var (
			rec       store.AlertRecord
			dataJSON  string
			createdMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Severity, &rec.Title, &rec.Message,
			&dataJSON, &rec.Status, &createdMs); err != nil {
			return nil, fmt.Errorf("ListActive scan: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &rec.Data); err != nil {
			return nil, fmt.Errorf("ListActive data json: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *AlertStore) Acknowledge(ctx context.Context, id, by string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE alerts
SET status             = 'acknowledged',
    acknowledged_at_ms = ?,
    acknowledged_by    = ?
WHERE alert_id = ? AND status = 'active';
`, at.UTC().UnixMilli(), by, id)
		if err != nil {
			return fmt.Errorf("Acknowledge update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Acknowledge rows: %w", err)
		}
		if n == 0 {
			return fault.NotFound("active alert %s", id)
		}
		return nil
	})
}
