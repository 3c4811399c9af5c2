package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/repository"
)

// SessionRepository implements repository.SessionRepository for SQLite
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session document
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	cases, err := encodeCases(sess.Cases)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (code, owner, cases, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		sess.Code,
		sess.Owner,
		cases,
		sess.Version,
		sess.CreatedAt.UTC(),
		sess.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get retrieves a session document by code
func (r *SessionRepository) Get(ctx context.Context, code string) (*session.Session, error) {
	query := `
		SELECT code, owner, cases, version, created_at, updated_at
		FROM sessions
		WHERE code = ?
	`

	var sess session.Session
	var cases string
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&sess.Code,
		&sess.Owner,
		&cases,
		&sess.Version,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.Cases, err = decodeCases(cases)
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

// ReplaceCases overwrites the case list and bumps the version.
// With an expectedVersion other than session.AnyVersion the write only
// succeeds when the stored version still matches.
func (r *SessionRepository) ReplaceCases(ctx context.Context, code string, cases []testcase.TestCase, expectedVersion int64, at time.Time) (int64, error) {
	encoded, err := encodeCases(cases)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM sessions WHERE code = ?`, code).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read session version: %w", err)
	}
	if expectedVersion != session.AnyVersion && expectedVersion != current {
		return 0, repository.ErrConflict
	}

	next := current + 1
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET cases = ?, version = ?, updated_at = ? WHERE code = ?`,
		encoded, next, at.UTC(), code,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to replace cases: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cases: %w", err)
	}

	return next, nil
}

// Delete removes a session document and its participants
func (r *SessionRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func encodeCases(cases []testcase.TestCase) (string, error) {
	if cases == nil {
		cases = []testcase.TestCase{}
	}
	data, err := json.Marshal(cases)
	if err != nil {
		return "", fmt.Errorf("failed to encode cases: %w", err)
	}
	return string(data), nil
}

func decodeCases(data string) ([]testcase.TestCase, error) {
	cases := []testcase.TestCase{}
	if data == "" {
		return cases, nil
	}
	if err := json.Unmarshal([]byte(data), &cases); err != nil {
		return nil, fmt.Errorf("failed to decode cases: %w", err)
	}
	return cases, nil
}
