package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	for _, table := range []string{"sessions", "participants"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	require.NoError(t, db.RunMigrations(), "migrations must be re-runnable")
}

func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")
}

func TestParticipantsTable(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (code, owner, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"AB3X7K", "owner@example.com", now, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO participants (id, session_code, user_id, role, joined_at, last_seen) VALUES (?, ?, ?, ?, ?, ?)`,
		"p1", "MISSING", "a@example.com", "editor", now, now)
	require.Error(t, err, "should fail with unknown session")

	_, err = db.ExecContext(ctx,
		`INSERT INTO participants (id, session_code, user_id, role, joined_at, last_seen) VALUES (?, ?, ?, ?, ?, ?)`,
		"p2", "AB3X7K", "a@example.com", "admin", now, now)
	require.Error(t, err, "should fail with invalid role")

	_, err = db.ExecContext(ctx,
		`INSERT INTO participants (id, session_code, user_id, role, joined_at, last_seen) VALUES (?, ?, ?, ?, ?, ?)`,
		"p3", "AB3X7K", "a@example.com", "viewer", now, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `DELETE FROM sessions WHERE code = ?`, "AB3X7K")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants`).Scan(&count))
	require.Zero(t, count, "participants should cascade with their session")
}
