package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	sess := session.New("AB3X7K", "owner@example.com", time.Now())
	require.NoError(t, repo.Create(ctx, sess))

	got, err := repo.Get(ctx, "AB3X7K")
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", got.Owner)
	require.Equal(t, int64(1), got.Version)
	require.NotNil(t, got.Cases)
	require.Empty(t, got.Cases)
	require.WithinDuration(t, sess.CreatedAt, got.CreatedAt, time.Second)

	err = repo.Create(ctx, session.New("AB3X7K", "other@example.com", time.Now()))
	require.ErrorIs(t, err, repository.ErrAlreadyExists)

	_, err = repo.Get(ctx, "ZZZZZZ")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_ReplaceCases(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, session.New("AB3X7K", "owner@example.com", time.Now())))

	editedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cases := []testcase.TestCase{
		{ID: "c1", CaseID: "TC-1", Status: testcase.StatusPending},
		{ID: "c2", CaseID: "TC-2", Status: testcase.StatusFailed, Comments: "broken", Evidence: "http://x", LastEditor: "a", LastEditedAt: &editedAt},
	}

	version, err := repo.ReplaceCases(ctx, "AB3X7K", cases, session.AnyVersion, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(2), version)

	got, err := repo.Get(ctx, "AB3X7K")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Version)
	require.True(t, testcase.Equal(cases, got.Cases))

	_, err = repo.ReplaceCases(ctx, "AB3X7K", nil, 1, time.Now())
	require.ErrorIs(t, err, repository.ErrConflict)

	version, err = repo.ReplaceCases(ctx, "AB3X7K", nil, 2, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(3), version)

	got, err = repo.Get(ctx, "AB3X7K")
	require.NoError(t, err)
	require.Empty(t, got.Cases)

	_, err = repo.ReplaceCases(ctx, "ZZZZZZ", nil, session.AnyVersion, time.Now())
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_Delete(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, session.New("AB3X7K", "owner@example.com", time.Now())))
	require.NoError(t, repo.Delete(ctx, "AB3X7K"))
	require.ErrorIs(t, repo.Delete(ctx, "AB3X7K"), repository.ErrNotFound)

	_, err := repo.Get(ctx, "AB3X7K")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
