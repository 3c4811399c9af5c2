// Package presence tracks which participants are currently in a session.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/repository"
)

// DefaultHeartbeat is how often an online entry refreshes its last-seen time.
const DefaultHeartbeat = 30 * time.Second

// Registry registers participants and watches the online subset.
type Registry struct {
	store     session.ParticipantStore
	logger    *slog.Logger
	heartbeat time.Duration
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithHeartbeat sets the heartbeat interval. Zero disables heartbeats.
func WithHeartbeat(interval time.Duration) Option {
	return func(r *Registry) { r.heartbeat = interval }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a Registry over a participant store.
func NewRegistry(store session.ParticipantStore, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:     store,
		logger:    logger,
		heartbeat: DefaultHeartbeat,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends an online entry for user. The returned participant's ID
// is the handle for MarkOffline and heartbeats.
func (r *Registry) Register(ctx context.Context, code, user string, role session.Role) (session.Participant, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(user) == "" || !role.Valid() {
		return session.Participant{}, session.ErrInvalidInput
	}

	now := r.now().UTC()
	p := session.Participant{
		ID:          uuid.NewString(),
		SessionCode: code,
		User:        user,
		Role:        role,
		Online:      true,
		JoinedAt:    now,
		LastSeen:    now,
	}
	if err := r.store.Add(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return session.Participant{}, session.ErrSessionNotFound
		}
		return session.Participant{}, fmt.Errorf("registering participant: %w", err)
	}

	r.logger.Info("participant registered", "code", code, "participant_id", p.ID, "role", role)
	return p, nil
}

// MarkOffline flags an entry offline. An entry that no longer exists counts
// as success, so the call is safe to repeat.
func (r *Registry) MarkOffline(ctx context.Context, code, participantID string) error {
	if code == "" || participantID == "" {
		return nil
	}
	err := r.store.MarkOffline(ctx, code, participantID)
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("marking participant offline: %w", err)
}

// SubscribeOnline streams the online participants of a session, ordered by
// join, whenever the set changes.
func (r *Registry) SubscribeOnline(ctx context.Context, code string) (<-chan []session.Participant, func(), error) {
	ch, cancel, err := r.store.SubscribeOnline(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, session.ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("subscribing to participants: %w", err)
	}
	return ch, cancel, nil
}

// StartHeartbeat refreshes the entry's last-seen time until stop is called
// or ctx ends. stop blocks until the heartbeat goroutine has exited.
func (r *Registry) StartHeartbeat(ctx context.Context, code, participantID string) (stop func()) {
	if r.heartbeat <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	log := r.logger.With("op", "presence.heartbeat", "code", code, "participant_id", participantID)

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.store.Touch(ctx, code, participantID, r.now()); err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn("heartbeat failed", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
