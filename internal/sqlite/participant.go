package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/repository"
)

// ParticipantRepository implements repository.ParticipantRepository for SQLite
type ParticipantRepository struct {
	db *DB
}

// NewParticipantRepository creates a new ParticipantRepository
func NewParticipantRepository(db *DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Add inserts a presence entry
func (r *ParticipantRepository) Add(ctx context.Context, p *session.Participant) error {
	query := `
		INSERT INTO participants (id, session_code, user_id, role, online, joined_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.SessionCode,
		p.User,
		p.Role,
		p.Online,
		p.JoinedAt.UTC(),
		p.LastSeen.UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

// MarkOffline flags an entry offline
func (r *ParticipantRepository) MarkOffline(ctx context.Context, code, participantID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE participants SET online = 0 WHERE id = ? AND session_code = ?`,
		participantID, code,
	)
	if err != nil {
		return fmt.Errorf("failed to mark participant offline: %w", err)
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

// Touch refreshes last_seen of an online entry
func (r *ParticipantRepository) Touch(ctx context.Context, code, participantID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE participants SET last_seen = ? WHERE id = ? AND session_code = ? AND online = 1`,
		at.UTC(), participantID, code,
	)
	if err != nil {
		return fmt.Errorf("failed to touch participant: %w", err)
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

// ListOnline returns the online entries of a session in join order
func (r *ParticipantRepository) ListOnline(ctx context.Context, code string) ([]session.Participant, error) {
	query := `
		SELECT id, session_code, user_id, role, online, joined_at, last_seen
		FROM participants
		WHERE session_code = ? AND online = 1
		ORDER BY joined_at ASC, rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := []session.Participant{}
	for rows.Next() {
		var p session.Participant
		if err := rows.Scan(&p.ID, &p.SessionCode, &p.User, &p.Role, &p.Online, &p.JoinedAt, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return participants, nil
}

// ExpireStale marks online entries last seen before cutoff offline
func (r *ParticipantRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, session_code, last_seen FROM participants WHERE online = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list online participants: %w", err)
	}

	type staleEntry struct {
		id   string
		code string
	}
	var stale []staleEntry
	for rows.Next() {
		var entry staleEntry
		var lastSeen time.Time
		if err := rows.Scan(&entry.id, &entry.code, &lastSeen); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if lastSeen.Before(cutoff) {
			stale = append(stale, entry)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	rows.Close()

	var codes []string
	seen := make(map[string]struct{})
	for _, entry := range stale {
		if _, err := tx.ExecContext(ctx, `UPDATE participants SET online = 0 WHERE id = ?`, entry.id); err != nil {
			return nil, fmt.Errorf("failed to expire participant: %w", err)
		}
		if _, ok := seen[entry.code]; !ok {
			seen[entry.code] = struct{}{}
			codes = append(codes, entry.code)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit expiry: %w", err)
	}

	return codes, nil
}
