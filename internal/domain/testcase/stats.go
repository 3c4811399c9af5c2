package testcase

// Stats summarises a case list by status.
type Stats struct {
	Total           int     `json:"total"`
	Passed          int     `json:"passed"`
	Failed          int     `json:"failed"`
	NotApplicable   int     `json:"notApplicable"`
	Pending         int     `json:"pending"`
	PercentComplete float64 `json:"percentComplete"`
}

// ComputeStats counts cases per status. A case is complete once it leaves Pending.
func ComputeStats(cases []TestCase) Stats {
	var s Stats
	s.Total = len(cases)
	for _, tc := range cases {
		switch tc.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusNotApplicable:
			s.NotApplicable++
		default:
			s.Pending++
		}
	}
	if s.Total > 0 {
		s.PercentComplete = float64(s.Total-s.Pending) * 100 / float64(s.Total)
	}
	return s
}

// Count returns the number of cases with the given status.
func (s Stats) Count(status Status) int {
	switch status {
	case StatusPassed:
		return s.Passed
	case StatusFailed:
		return s.Failed
	case StatusNotApplicable:
		return s.NotApplicable
	case StatusPending:
		return s.Pending
	}
	return 0
}
