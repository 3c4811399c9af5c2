package testcase

import (
	"errors"
	"fmt"
)

var (
	// ErrFailedRequirements groups the rejections of a transition to Failed.
	ErrFailedRequirements = errors.New("failed status requires comments and evidence")
	// ErrMissingComments indicates comments are empty on a transition to Failed.
	ErrMissingComments = fmt.Errorf("%w: comments are empty", ErrFailedRequirements)
	// ErrMissingEvidence indicates evidence is empty on a transition to Failed.
	ErrMissingEvidence = fmt.Errorf("%w: evidence is empty", ErrFailedRequirements)
	// ErrUnknownField indicates an update named a field that does not exist or is not editable.
	ErrUnknownField = errors.New("unknown test case field")
	// ErrInvalidStatus indicates a status value outside the enum.
	ErrInvalidStatus = errors.New("invalid test case status")
	// ErrInvalidRecord indicates a raw import record could not be parsed.
	ErrInvalidRecord = errors.New("invalid test case record")
)
