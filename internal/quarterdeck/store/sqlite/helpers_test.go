package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dmcewen/quarterdeck/server/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each call gets a unique in-memory database.  The shared-cache URI
	// keeps the database alive for the lifetime of the connection pool
	// (important because sql.DB may close/reopen the underlying conn).
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	// Match production: single connection for SQLite safety.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	// Apply the same migrations as production.
	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedMember inserts a minimal active member row.
func seedMember(t *testing.T, conn *sql.DB, id string, rankTier int) {
	t.Helper()

	nowMs := time.Now().UTC().UnixMilli()
	_, err := conn.ExecContext(context.Background(), `
INSERT INTO members(member_id, first_name, last_name, rank, rank_tier, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, 'PO1', ?, ?, ?);
`, id, "Test", id, rankTier, nowMs, nowMs)
	if err != nil {
		t.Fatalf("seedMember %s: %v", id, err)
	}
}

// seedQualType inserts one qualification type.
func seedQualType(t *testing.T, conn *sql.DB, code string, canReceiveLockup, isAutomatic bool) {
	t.Helper()

	_, err := conn.ExecContext(context.Background(), `
INSERT INTO qualification_types(type_id, code, name, can_receive_lockup, is_automatic)
VALUES (?, ?, ?, ?, ?);
`, "qt-"+code, code, code, boolArg(canReceiveLockup), boolArg(isAutomatic))
	if err != nil {
		t.Fatalf("seedQualType %s: %v", code, err)
	}
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}
