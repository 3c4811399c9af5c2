package mcp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/mcp"
	"github.com/rpggio/casetrack/internal/store"
	"github.com/rpggio/casetrack/internal/testserver"
	"github.com/rpggio/casetrack/internal/testutil"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, s *store.Store, logger *slog.Logger) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(mcp.Config{
		Services: mcp.Services{Sessions: s, Participants: s},
		Logger:   logger,
	})
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	return result
}

func decodeText(t *testing.T, result *sdkmcp.CallToolResult, out any) {
	t.Helper()
	require.False(t, result.IsError)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), out))
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	sess := session.New("ABC123", "alice", now)
	sess.Cases = []testcase.TestCase{
		{ID: "c1", CaseID: "TC-1", Status: testcase.StatusPassed},
		{ID: "c2", CaseID: "TC-2", Status: testcase.StatusFailed, Comments: "500 on submit", Evidence: "shot.png"},
		{ID: "c3", CaseID: "TC-3", Status: testcase.StatusPending, Comments: "flaky"},
	}
	require.NoError(t, s.Create(ctx, sess))
	require.NoError(t, s.Add(ctx, &session.Participant{
		ID: "p1", SessionCode: "ABC123", User: "alice", Role: session.RoleEditor,
		Online: true, JoinedAt: now, LastSeen: now,
	}))
}

func TestServer_ListsToolsAndDocs(t *testing.T) {
	cs := connect(t, testutil.NewStore(t), nil)
	ctx := context.Background()

	info := cs.InitializeResult()
	require.Equal(t, "casetrack", info.ServerInfo.Name)

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"get_session", "list_participants", "get_report_input"}, names)

	read, err := cs.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "casetrack://docs/statuses"})
	require.NoError(t, err)
	require.Equal(t, "text/markdown", read.Contents[0].MIMEType)
	require.Contains(t, read.Contents[0].Text, "NotApplicable")
}

func TestGetSession(t *testing.T) {
	s := testutil.NewStore(t)
	seed(t, s)
	cs := connect(t, s, nil)

	var out struct {
		Code    string `json:"code"`
		Owner   string `json:"owner"`
		Version int64  `json:"version"`
		Cases   []struct {
			CaseID string `json:"caseId"`
			Status string `json:"status"`
		} `json:"cases"`
	}
	decodeText(t, callTool(t, cs, "get_session", map[string]any{"code": " abc123 "}), &out)
	require.Equal(t, "ABC123", out.Code)
	require.Equal(t, "alice", out.Owner)
	require.Len(t, out.Cases, 3)
	require.Equal(t, "Failed", out.Cases[1].Status)
}

func TestGetSession_NotFound(t *testing.T) {
	cs := connect(t, testutil.NewStore(t), nil)

	result := callTool(t, cs, "get_session", map[string]any{"code": "ZZZZZZ"})
	require.True(t, result.IsError)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	require.Contains(t, text.Text, "SESSION_NOT_FOUND")
}

func TestListParticipants(t *testing.T) {
	s := testutil.NewStore(t)
	seed(t, s)
	cs := connect(t, s, nil)

	var out struct {
		Participants []struct {
			User string `json:"user"`
			Role string `json:"role"`
		} `json:"participants"`
	}
	decodeText(t, callTool(t, cs, "list_participants", map[string]any{"code": "ABC123"}), &out)
	require.Len(t, out.Participants, 1)
	require.Equal(t, "alice", out.Participants[0].User)
	require.Equal(t, "editor", out.Participants[0].Role)
}

func TestGetReportInput(t *testing.T) {
	s := testutil.NewStore(t)
	seed(t, s)
	cs := connect(t, s, nil)

	var out struct {
		Summary        string `json:"summary"`
		FailedCases    []struct{ CaseID string `json:"caseId"` } `json:"failedCases"`
		CommentedCases []struct{ CaseID string `json:"caseId"` } `json:"commentedCases"`
		AnalysisSubset []struct{ CaseID string `json:"caseId"` } `json:"analysisSubset"`
		Stats          testcase.Stats `json:"stats"`
	}
	decodeText(t, callTool(t, cs, "get_report_input", map[string]any{"code": "ABC123", "summary": " sprint 4 "}), &out)
	require.Equal(t, "sprint 4", out.Summary)
	require.Len(t, out.FailedCases, 1)
	require.Len(t, out.CommentedCases, 2)
	require.Len(t, out.AnalysisSubset, 1)
	require.Equal(t, "TC-2", out.AnalysisSubset[0].CaseID)
	require.Equal(t, 3, out.Stats.Total)
	require.Equal(t, 1, out.Stats.Pending)
}

func TestTrafficLogging(t *testing.T) {
	buf := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := testutil.NewStore(t)
	seed(t, s)
	cs := connect(t, s, logger)

	callTool(t, cs, "get_session", map[string]any{"code": "ABC123"})

	require.Eventually(t, func() bool {
		text := buf.String()
		return strings.Contains(text, `msg="mcp traffic"`) &&
			strings.Contains(text, "stage=request") &&
			strings.Contains(text, "tool=get_session")
	}, 2*time.Second, 20*time.Millisecond)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServer_StreamableHTTP(t *testing.T) {
	ts := testserver.New(t)
	seed(t, ts.Store)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{Endpoint: ts.MCPEndpoint()}, nil)
	require.NoError(t, err)
	defer cs.Close()

	var out struct {
		Participants []struct {
			User string `json:"user"`
		} `json:"participants"`
	}
	decodeText(t, callTool(t, cs, "list_participants", map[string]any{"code": "abc123"}), &out)
	require.Len(t, out.Participants, 1)
}
