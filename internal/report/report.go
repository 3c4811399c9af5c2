// Package report assembles the data handed to report rendering and AI
// analysis.
package report

import (
	"context"
	"strings"

	"github.com/rpggio/casetrack/internal/domain/testcase"
)

// Views are the derived subsets of a case list used for reporting.
type Views struct {
	FailedCases    []testcase.TestCase `json:"failedCases"`
	CommentedCases []testcase.TestCase `json:"commentedCases"`
	Stats          testcase.Stats      `json:"stats"`
}

// Assemble derives the report views from cases, preserving order.
func Assemble(cases []testcase.TestCase) Views {
	views := Views{
		FailedCases:    []testcase.TestCase{},
		CommentedCases: []testcase.TestCase{},
		Stats:          testcase.ComputeStats(cases),
	}
	for _, tc := range cases {
		if tc.Status == testcase.StatusFailed {
			views.FailedCases = append(views.FailedCases, tc)
		}
		if strings.TrimSpace(tc.Comments) != "" {
			views.CommentedCases = append(views.CommentedCases, tc)
		}
	}
	views.FailedCases = testcase.Clone(views.FailedCases)
	views.CommentedCases = testcase.Clone(views.CommentedCases)
	return views
}

// AnalysisSubset picks the cases an analyst should look at: the failures,
// or the commented cases when nothing failed.
func (v Views) AnalysisSubset() []testcase.TestCase {
	if len(v.FailedCases) > 0 {
		return v.FailedCases
	}
	return v.CommentedCases
}

// ChartImage is a rendered chart snapshot.
type ChartImage struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// RenderRequest is everything a renderer receives.
type RenderRequest struct {
	TestCases      []testcase.TestCase `json:"testCases"`
	FailedCases    []testcase.TestCase `json:"failedCases"`
	CommentedCases []testcase.TestCase `json:"commentedCases"`
	Stats          testcase.Stats      `json:"stats"`
	AuthorName     string              `json:"authorName"`
	Summary        string              `json:"summary"`
	AIAnalysisText string              `json:"aiAnalysisText"`
	ChartImages    []ChartImage        `json:"chartImages"`
}

// Renderer produces a report document. It is a sink.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) error
}

// AnalysisRequest is sent to the AI analyst.
type AnalysisRequest struct {
	TestCases []testcase.TestCase `json:"testCases"`
	Summary   string              `json:"summary"`
}

// AnalysisResult is the analyst's answer.
type AnalysisResult struct {
	AnalysisText string `json:"analysisText"`
}

// Analyzer produces an AI-written analysis of a case subset.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error)
}
