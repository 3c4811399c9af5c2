package testutil

import (
	"testing"

	"github.com/rpggio/casetrack/internal/sqlite"
	"github.com/rpggio/casetrack/internal/store"
	"github.com/stretchr/testify/require"
)

// NewStore returns a Store backed by a migrated in-memory database.
func NewStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	return store.New(sqlite.NewSessionRepository(db), sqlite.NewParticipantRepository(db), nil)
}
