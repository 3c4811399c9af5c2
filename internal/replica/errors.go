package replica

import "errors"

var (
	// ErrNotAttached indicates no session is attached.
	ErrNotAttached = errors.New("not attached to a session")
	// ErrReadOnly indicates the local role may not modify cases.
	ErrReadOnly = errors.New("viewer role is read-only")
	// ErrCaseNotFound indicates no case with the given id exists locally.
	ErrCaseNotFound = errors.New("test case not found")
	// ErrSync indicates the local change was applied but the store write failed.
	ErrSync = errors.New("failed to sync test cases")
)
