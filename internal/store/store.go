// Package store hosts session documents and presence entries and pushes
// every change to live subscribers.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/pubsub"
	"github.com/rpggio/casetrack/internal/repository"
)

// Store implements session.Store and session.ParticipantStore.
type Store struct {
	sessions     repository.SessionRepository
	participants repository.ParticipantRepository
	docs         *pubsub.Broker[session.Session]
	presence     *pubsub.Broker[[]session.Participant]
	logger       *slog.Logger
	now          func() time.Time

	// mu orders each write with its publication so subscribers never
	// observe an older document after a newer one.
	mu sync.Mutex
}

// New creates a Store over the given repositories.
func New(sessions repository.SessionRepository, participants repository.ParticipantRepository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions:     sessions,
		participants: participants,
		docs:         pubsub.NewBroker[session.Session](),
		presence:     pubsub.NewBroker[[]session.Participant](),
		logger:       logger,
		now:          time.Now,
	}
}

// Create stores a new document. Code collisions return repository.ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.Code == "" {
		return session.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Create(ctx, sess); err != nil {
		return err
	}
	s.logger.Info("session created", "code", sess.Code, "owner", sess.Owner)
	return nil
}

// Get reads a document.
func (s *Store) Get(ctx context.Context, code string) (*session.Session, error) {
	return s.sessions.Get(ctx, code)
}

// ReplaceCases writes the full case list and notifies subscribers.
func (s *Store) ReplaceCases(ctx context.Context, code string, cases []testcase.TestCase, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version, err := s.sessions.ReplaceCases(ctx, code, cases, expectedVersion, s.now())
	if err != nil {
		return 0, err
	}

	doc, err := s.sessions.Get(ctx, code)
	if err != nil {
		s.logger.Warn("failed to reload session after write", "code", code, "error", err)
		return version, nil
	}
	s.docs.Publish(code, *doc)
	s.logger.Debug("cases replaced", "code", code, "version", version, "count", len(cases))
	return version, nil
}

// Delete removes a document and ends its subscriptions.
func (s *Store) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(ctx, code); err != nil {
		return err
	}
	s.docs.CloseTopic(code)
	s.presence.CloseTopic(code)
	s.logger.Info("session deleted", "code", code)
	return nil
}

// Subscribe delivers the current document followed by every later write.
func (s *Store) Subscribe(ctx context.Context, code string) (<-chan session.Session, func(), error) {
	s.mu.Lock()
	doc, err := s.sessions.Get(ctx, code)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	id, ch := s.docs.Subscribe(code)
	s.docs.Deliver(code, id, *doc)
	s.mu.Unlock()

	return ch, s.cancelFunc(ctx, func() { s.docs.Unsubscribe(code, id) }), nil
}

// Add registers a presence entry and publishes the new online set.
func (s *Store) Add(ctx context.Context, p *session.Participant) error {
	if p == nil || p.ID == "" || !p.Role.Valid() {
		return session.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.participants.Add(ctx, p); err != nil {
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return repository.ErrNotFound
		}
		return err
	}
	s.publishPresence(ctx, p.SessionCode)
	return nil
}

// MarkOffline flags an entry offline and publishes the new online set.
func (s *Store) MarkOffline(ctx context.Context, code, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.participants.MarkOffline(ctx, code, participantID); err != nil {
		return err
	}
	s.publishPresence(ctx, code)
	return nil
}

// Touch refreshes an entry's last-seen time.
func (s *Store) Touch(ctx context.Context, code, participantID string, at time.Time) error {
	return s.participants.Touch(ctx, code, participantID, at)
}

// ListOnline returns the online entries in join order.
func (s *Store) ListOnline(ctx context.Context, code string) ([]session.Participant, error) {
	return s.participants.ListOnline(ctx, code)
}

// SubscribeOnline delivers the online set now and after every presence change.
func (s *Store) SubscribeOnline(ctx context.Context, code string) (<-chan []session.Participant, func(), error) {
	s.mu.Lock()
	if _, err := s.sessions.Get(ctx, code); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	online, err := s.participants.ListOnline(ctx, code)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	id, ch := s.presence.Subscribe(code)
	s.presence.Deliver(code, id, online)
	s.mu.Unlock()

	return ch, s.cancelFunc(ctx, func() { s.presence.Unsubscribe(code, id) }), nil
}

// ExpireStale marks entries not seen since cutoff offline and returns how
// many sessions changed.
func (s *Store) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.participants.ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring participants: %w", err)
	}
	for _, code := range codes {
		s.publishPresence(ctx, code)
	}
	return len(codes), nil
}

// Sweep runs ExpireStale every interval until ctx ends.
func (s *Store) Sweep(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.ExpireStale(ctx, s.now().Add(-ttl))
			if err != nil {
				s.logger.Error("presence sweep failed", "error", err)
				continue
			}
			if changed > 0 {
				s.logger.Info("expired stale participants", "sessions", changed)
			}
		}
	}
}

func (s *Store) publishPresence(ctx context.Context, code string) {
	if s.presence.Subscribers(code) == 0 {
		return
	}
	online, err := s.participants.ListOnline(ctx, code)
	if err != nil {
		s.logger.Warn("failed to list participants for publish", "code", code, "error", err)
		return
	}
	s.presence.Publish(code, online)
}

// cancelFunc ends a subscription once, on explicit cancel or when ctx ends.
func (s *Store) cancelFunc(ctx context.Context, unsubscribe func()) func() {
	var once sync.Once
	cancel := func() { once.Do(unsubscribe) }
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}
}
