package testcase

import (
	"fmt"
	"strings"
)

// ValidateStatusChange checks whether tc may move to the given status.
// Only a move to Failed carries requirements.
func ValidateStatusChange(tc TestCase, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if to != StatusFailed {
		return nil
	}
	if strings.TrimSpace(tc.Comments) == "" {
		return ErrMissingComments
	}
	if strings.TrimSpace(tc.Evidence) == "" {
		return ErrMissingEvidence
	}
	return nil
}

// ParseStatus accepts the canonical names plus common spellings.
// An empty value parses as Pending.
func ParseStatus(value string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "", "_", "", "-", "", "/", "").Replace(normalized)
	switch normalized {
	case "":
		return StatusPending, nil
	case "passed", "pass", "ok":
		return StatusPassed, nil
	case "failed", "fail":
		return StatusFailed, nil
	case "notapplicable", "na":
		return StatusNotApplicable, nil
	case "pending":
		return StatusPending, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
}
