package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rpggio/casetrack/internal/domain/testcase"
)

// Input collects what the UI supplies for a report.
type Input struct {
	Cases      []testcase.TestCase
	AuthorName string
	Summary    string
	Charts     []ChartImage
}

// Generator runs analysis and rendering for a case list.
type Generator struct {
	analyzer Analyzer
	renderer Renderer
	logger   *slog.Logger
}

// NewGenerator creates a Generator. A nil analyzer skips analysis.
func NewGenerator(analyzer Analyzer, renderer Renderer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{analyzer: analyzer, renderer: renderer, logger: logger}
}

// Generate assembles the views, asks the analyzer about the relevant
// subset and renders the result. An analyzer failure stops generation and
// is returned wrapped in ErrAIAnalysis.
func (g *Generator) Generate(ctx context.Context, in Input) (RenderRequest, error) {
	views := Assemble(in.Cases)
	req := RenderRequest{
		TestCases:      testcase.Clone(in.Cases),
		FailedCases:    views.FailedCases,
		CommentedCases: views.CommentedCases,
		Stats:          views.Stats,
		AuthorName:     in.AuthorName,
		Summary:        in.Summary,
		ChartImages:    in.Charts,
	}
	log := g.logger.With("op", "generate_report", "cases", len(in.Cases))

	subset := views.AnalysisSubset()
	if g.analyzer != nil && len(subset) > 0 {
		result, err := g.analyzer.Analyze(ctx, AnalysisRequest{TestCases: subset, Summary: in.Summary})
		if err != nil {
			log.Error("analysis failed", "error", err)
			return RenderRequest{}, fmt.Errorf("%w: %w", ErrAIAnalysis, err)
		}
		req.AIAnalysisText = result.AnalysisText
	}

	if err := g.renderer.Render(ctx, req); err != nil {
		log.Error("render failed", "error", err)
		return RenderRequest{}, fmt.Errorf("%w: %w", ErrRender, err)
	}

	log.Info("report generated", "failed", len(views.FailedCases), "commented", len(views.CommentedCases))
	return req, nil
}
