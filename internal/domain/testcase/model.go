package testcase

import "time"

// Status is the execution outcome of a test case
type Status string

const (
	StatusPassed        Status = "Passed"
	StatusFailed        Status = "Failed"
	StatusNotApplicable Status = "NotApplicable"
	StatusPending       Status = "Pending"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPassed, StatusFailed, StatusNotApplicable, StatusPending}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusNotApplicable, StatusPending:
		return true
	}
	return false
}

// TestCase is one test scenario in a session list
type TestCase struct {
	ID             string     `json:"id"`
	Process        string     `json:"process"`
	CaseID         string     `json:"caseId"`
	Description    string     `json:"description"`
	TestData       string     `json:"testData"`
	Steps          string     `json:"steps"`
	ExpectedResult string     `json:"expectedResult"`
	Evidence       string     `json:"evidence"`
	Comments       string     `json:"comments"`
	Status         Status     `json:"status"`
	LastEditor     string     `json:"lastEditor,omitempty"`
	LastEditedAt   *time.Time `json:"lastEditedAt,omitempty"`
}

// Clone returns a deep copy of the list.
func Clone(cases []TestCase) []TestCase {
	out := make([]TestCase, len(cases))
	for i, tc := range cases {
		if tc.LastEditedAt != nil {
			at := *tc.LastEditedAt
			tc.LastEditedAt = &at
		}
		out[i] = tc
	}
	return out
}

// Equal reports whether two lists hold the same cases in the same order.
func Equal(a, b []TestCase) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}

func (tc TestCase) equal(other TestCase) bool {
	left, right := tc, other
	left.LastEditedAt, right.LastEditedAt = nil, nil
	if left != right {
		return false
	}
	switch {
	case tc.LastEditedAt == nil && other.LastEditedAt == nil:
		return true
	case tc.LastEditedAt == nil || other.LastEditedAt == nil:
		return false
	default:
		return tc.LastEditedAt.Equal(*other.LastEditedAt)
	}
}

// IndexOf returns the position of the case with the given id, or -1.
func IndexOf(cases []TestCase, id string) int {
	for i := range cases {
		if cases[i].ID == id {
			return i
		}
	}
	return -1
}
