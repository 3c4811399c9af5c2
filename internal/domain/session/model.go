package session

import (
	"time"

	"github.com/rpggio/casetrack/internal/domain/testcase"
)

// AnyVersion disables the version check on a cases replace.
const AnyVersion int64 = 0

// Role is a participant's access level
type Role string

const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleEditor || r == RoleViewer
}

// CanEdit reports whether the role may mutate the case list.
func (r Role) CanEdit() bool {
	return r == RoleEditor
}

// Session is the shared document addressed by a code
type Session struct {
	Code      string              `json:"code"`
	Owner     string              `json:"owner"`
	Cases     []testcase.TestCase `json:"cases"`
	Version   int64               `json:"version"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// New builds an empty session document owned by owner.
func New(code, owner string, now time.Time) *Session {
	now = now.UTC()
	return &Session{
		Code:      code,
		Owner:     owner,
		Cases:     []testcase.TestCase{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Participant is one join event within a session
type Participant struct {
	ID          string    `json:"id"`
	SessionCode string    `json:"sessionCode"`
	User        string    `json:"user"`
	Role        Role      `json:"role"`
	Online      bool      `json:"online"`
	JoinedAt    time.Time `json:"joinedAt"`
	LastSeen    time.Time `json:"lastSeen"`
}
