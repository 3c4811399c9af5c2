package lifecycle

import "github.com/rpggio/casetrack/internal/domain/session"

// Phase is the coarse lifecycle state.
type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseInSession       Phase = "in_session"
)

// State is a snapshot of the Manager's lifecycle state.
type State struct {
	Phase         Phase
	User          string
	Code          string
	Role          session.Role
	ParticipantID string
}

// InSession reports whether a session is active.
func (s State) InSession() bool {
	return s.Phase == PhaseInSession
}

// CanEdit reports whether mutations are allowed.
func (s State) CanEdit() bool {
	return s.InSession() && s.Role.CanEdit()
}
