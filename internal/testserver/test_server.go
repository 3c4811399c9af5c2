// Package testserver runs the full casetrack HTTP stack for tests.
package testserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/casetrack/internal/mcp"
	"github.com/rpggio/casetrack/internal/store"
	"github.com/rpggio/casetrack/internal/testutil"
	"github.com/rpggio/casetrack/internal/transport"
)

// TestServer is an httptest server over an in-memory store, with the MCP
// endpoint mounted at /mcp.
type TestServer struct {
	Server *httptest.Server
	Store  *store.Store
	URL    string
}

func New(t *testing.T) *TestServer {
	t.Helper()

	s := testutil.NewStore(t)
	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{Sessions: s, Participants: s},
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
	)

	server := httptest.NewServer(transport.NewServer(s, s, mcpHandler, nil))
	t.Cleanup(server.Close)

	return &TestServer{Server: server, Store: s, URL: server.URL}
}

// MCPEndpoint is the streamable HTTP MCP URL.
func (ts *TestServer) MCPEndpoint() string {
	return ts.URL + "/mcp"
}
