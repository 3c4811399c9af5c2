package mcp

import (
	"context"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/report"
)

type codeInput struct {
	Code string `json:"code" jsonschema:"6-character session code"`
}

type reportInput struct {
	Code    string `json:"code" jsonschema:"6-character session code"`
	Summary string `json:"summary,omitempty" jsonschema:"free-text summary written by the report author"`
}

type caseView struct {
	ID             string `json:"id"`
	Process        string `json:"process"`
	CaseID         string `json:"caseId"`
	Description    string `json:"description"`
	TestData       string `json:"testData"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expectedResult"`
	Evidence       string `json:"evidence"`
	Comments       string `json:"comments"`
	Status         string `json:"status"`
	LastEditor     string `json:"lastEditor,omitempty"`
	LastEditedAt   string `json:"lastEditedAt,omitempty"`
}

type sessionOutput struct {
	Code      string     `json:"code"`
	Owner     string     `json:"owner"`
	Version   int64      `json:"version"`
	CreatedAt string     `json:"createdAt"`
	UpdatedAt string     `json:"updatedAt"`
	Cases     []caseView `json:"cases"`
}

type participantView struct {
	ID       string `json:"id"`
	User     string `json:"user"`
	Role     string `json:"role"`
	JoinedAt string `json:"joinedAt"`
	LastSeen string `json:"lastSeen"`
}

type participantsOutput struct {
	Code         string            `json:"code"`
	Participants []participantView `json:"participants"`
}

type reportOutput struct {
	Code           string         `json:"code"`
	Summary        string         `json:"summary,omitempty"`
	FailedCases    []caseView     `json:"failedCases"`
	CommentedCases []caseView     `json:"commentedCases"`
	AnalysisSubset []caseView     `json:"analysisSubset"`
	Stats          testcase.Stats `json:"stats"`
}

func registerTools(server *sdkmcp.Server, svc Services) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_session",
		Description: "Get a session's full test-case list, owner and version",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in codeInput) (*sdkmcp.CallToolResult, sessionOutput, error) {
		doc, err := svc.Sessions.Get(ctx, session.NormalizeCode(in.Code))
		if err != nil {
			return nil, sessionOutput{}, MapError(err)
		}
		return nil, sessionOutput{
			Code:      doc.Code,
			Owner:     doc.Owner,
			Version:   doc.Version,
			CreatedAt: formatTime(doc.CreatedAt),
			UpdatedAt: formatTime(doc.UpdatedAt),
			Cases:     caseViews(doc.Cases),
		}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_participants",
		Description: "List the participants currently online in a session, in join order",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in codeInput) (*sdkmcp.CallToolResult, participantsOutput, error) {
		code := session.NormalizeCode(in.Code)
		if _, err := svc.Sessions.Get(ctx, code); err != nil {
			return nil, participantsOutput{}, MapError(err)
		}
		online, err := svc.Participants.ListOnline(ctx, code)
		if err != nil {
			return nil, participantsOutput{}, MapError(err)
		}
		out := participantsOutput{Code: code, Participants: make([]participantView, 0, len(online))}
		for _, p := range online {
			out.Participants = append(out.Participants, participantView{
				ID:       p.ID,
				User:     p.User,
				Role:     string(p.Role),
				JoinedAt: formatTime(p.JoinedAt),
				LastSeen: formatTime(p.LastSeen),
			})
		}
		return nil, out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_report_input",
		Description: "Get the failed and commented test cases of a session plus status counts, ready for analysis",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in reportInput) (*sdkmcp.CallToolResult, reportOutput, error) {
		doc, err := svc.Sessions.Get(ctx, session.NormalizeCode(in.Code))
		if err != nil {
			return nil, reportOutput{}, MapError(err)
		}
		views := report.Assemble(doc.Cases)
		return nil, reportOutput{
			Code:           doc.Code,
			Summary:        strings.TrimSpace(in.Summary),
			FailedCases:    caseViews(views.FailedCases),
			CommentedCases: caseViews(views.CommentedCases),
			AnalysisSubset: caseViews(views.AnalysisSubset()),
			Stats:          views.Stats,
		}, nil
	})
}

func caseViews(cases []testcase.TestCase) []caseView {
	out := make([]caseView, 0, len(cases))
	for _, tc := range cases {
		view := caseView{
			ID:             tc.ID,
			Process:        tc.Process,
			CaseID:         tc.CaseID,
			Description:    tc.Description,
			TestData:       tc.TestData,
			Steps:          tc.Steps,
			ExpectedResult: tc.ExpectedResult,
			Evidence:       tc.Evidence,
			Comments:       tc.Comments,
			Status:         string(tc.Status),
			LastEditor:     tc.LastEditor,
		}
		if tc.LastEditedAt != nil {
			view.LastEditedAt = formatTime(*tc.LastEditedAt)
		}
		out = append(out, view)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
