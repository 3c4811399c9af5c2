package lifecycle

import (
	"slices"
	"strings"

	"github.com/rpggio/casetrack/internal/domain/testcase"
)

// Filter narrows the visible case list. The zero value matches everything.
type Filter struct {
	Statuses []testcase.Status
	Query    string
}

// Match reports whether tc passes the filter. Query matching is
// case-insensitive over the free-text fields.
func (f Filter) Match(tc testcase.TestCase) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, tc.Status) {
		return false
	}
	query := strings.ToLower(strings.TrimSpace(f.Query))
	if query == "" {
		return true
	}
	for _, text := range []string{
		tc.Process, tc.CaseID, tc.Description, tc.TestData,
		tc.Steps, tc.ExpectedResult, tc.Evidence, tc.Comments,
	} {
		if strings.Contains(strings.ToLower(text), query) {
			return true
		}
	}
	return false
}

// Apply returns the matching cases in order.
func (f Filter) Apply(cases []testcase.TestCase) []testcase.TestCase {
	out := make([]testcase.TestCase, 0, len(cases))
	for _, tc := range cases {
		if f.Match(tc) {
			out = append(out, tc)
		}
	}
	return out
}
