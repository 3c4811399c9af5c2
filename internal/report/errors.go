package report

import "errors"

var (
	// ErrAIAnalysis wraps any analyzer failure. It is never retried.
	ErrAIAnalysis = errors.New("AI analysis failed")
	// ErrRender wraps renderer failures.
	ErrRender = errors.New("failed to render report")
)
