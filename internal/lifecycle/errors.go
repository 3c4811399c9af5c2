package lifecycle

import (
	"errors"

	"github.com/rpggio/casetrack/internal/domain/session"
)

var (
	// ErrAuthenticationRequired is returned when no identity is signed in.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrSessionNotFound is returned when a join names an unknown code.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrSessionCreate wraps any store failure during session creation.
	ErrSessionCreate = errors.New("failed to create session")
	// ErrNotInSession is returned by operations that need an active session.
	ErrNotInSession = errors.New("not in a session")
)
