package mocks

import (
	"context"
	"time"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/stretchr/testify/mock"
)

// SessionRepository is a mock for repository.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *SessionRepository) Get(ctx context.Context, code string) (*session.Session, error) {
	args := m.Called(ctx, code)
	if sess, ok := args.Get(0).(*session.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) ReplaceCases(ctx context.Context, code string, cases []testcase.TestCase, expectedVersion int64, at time.Time) (int64, error) {
	args := m.Called(ctx, code, cases, expectedVersion, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SessionRepository) Delete(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

// ParticipantRepository is a mock for repository.ParticipantRepository.
type ParticipantRepository struct {
	mock.Mock
}

func (m *ParticipantRepository) Add(ctx context.Context, p *session.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ParticipantRepository) MarkOffline(ctx context.Context, code, participantID string) error {
	args := m.Called(ctx, code, participantID)
	return args.Error(0)
}

func (m *ParticipantRepository) Touch(ctx context.Context, code, participantID string, at time.Time) error {
	args := m.Called(ctx, code, participantID, at)
	return args.Error(0)
}

func (m *ParticipantRepository) ListOnline(ctx context.Context, code string) ([]session.Participant, error) {
	args := m.Called(ctx, code)
	if list, ok := args.Get(0).([]session.Participant); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ParticipantRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	if codes, ok := args.Get(0).([]string); ok {
		return codes, args.Error(1)
	}
	return nil, args.Error(1)
}

// SessionStore is a mock for session.Store.
type SessionStore struct {
	mock.Mock
}

func (m *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *SessionStore) Get(ctx context.Context, code string) (*session.Session, error) {
	args := m.Called(ctx, code)
	if sess, ok := args.Get(0).(*session.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionStore) ReplaceCases(ctx context.Context, code string, cases []testcase.TestCase, expectedVersion int64) (int64, error) {
	args := m.Called(ctx, code, cases, expectedVersion)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SessionStore) Delete(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *SessionStore) Subscribe(ctx context.Context, code string) (<-chan session.Session, func(), error) {
	args := m.Called(ctx, code)
	ch, _ := args.Get(0).(<-chan session.Session)
	cancel, _ := args.Get(1).(func())
	return ch, cancel, args.Error(2)
}

// ParticipantStore is a mock for session.ParticipantStore.
type ParticipantStore struct {
	mock.Mock
}

func (m *ParticipantStore) Add(ctx context.Context, p *session.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ParticipantStore) MarkOffline(ctx context.Context, code, participantID string) error {
	args := m.Called(ctx, code, participantID)
	return args.Error(0)
}

func (m *ParticipantStore) Touch(ctx context.Context, code, participantID string, at time.Time) error {
	args := m.Called(ctx, code, participantID, at)
	return args.Error(0)
}

func (m *ParticipantStore) ListOnline(ctx context.Context, code string) ([]session.Participant, error) {
	args := m.Called(ctx, code)
	if list, ok := args.Get(0).([]session.Participant); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ParticipantStore) SubscribeOnline(ctx context.Context, code string) (<-chan []session.Participant, func(), error) {
	args := m.Called(ctx, code)
	ch, _ := args.Get(0).(<-chan []session.Participant)
	cancel, _ := args.Get(1).(func())
	return ch, cancel, args.Error(2)
}
