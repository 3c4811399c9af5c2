package session

import (
	"context"
	"time"

	"github.com/rpggio/casetrack/internal/domain/testcase"
)

// Store holds one case-list document per session code.
type Store interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, code string) (*Session, error)
	ReplaceCases(ctx context.Context, code string, cases []testcase.TestCase, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, code string) error
	// Subscribe delivers the current document and every later write.
	// The channel closes when cancel is called, ctx ends, or the document is deleted.
	Subscribe(ctx context.Context, code string) (<-chan Session, func(), error)
}

// ParticipantStore holds the presence entries of every session.
type ParticipantStore interface {
	Add(ctx context.Context, p *Participant) error
	MarkOffline(ctx context.Context, code, participantID string) error
	Touch(ctx context.Context, code, participantID string, at time.Time) error
	ListOnline(ctx context.Context, code string) ([]Participant, error)
	// SubscribeOnline delivers the online subset, ordered by join, on every change.
	SubscribeOnline(ctx context.Context, code string) (<-chan []Participant, func(), error)
}
