package repository

import (
	"context"
	"time"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
)

// SessionRepository manages session document persistence
type SessionRepository interface {
	Create(ctx context.Context, sess *session.Session) error
	Get(ctx context.Context, code string) (*session.Session, error)
	ReplaceCases(ctx context.Context, code string, cases []testcase.TestCase, expectedVersion int64, at time.Time) (int64, error)
	Delete(ctx context.Context, code string) error
}

// ParticipantRepository manages presence entries
type ParticipantRepository interface {
	Add(ctx context.Context, p *session.Participant) error
	MarkOffline(ctx context.Context, code, participantID string) error
	Touch(ctx context.Context, code, participantID string, at time.Time) error
	ListOnline(ctx context.Context, code string) ([]session.Participant, error)
	// ExpireStale marks online entries last seen before cutoff offline and
	// returns the codes of the sessions that changed.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error)
}
