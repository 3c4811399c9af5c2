package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/casetrack/internal/domain/session"
)

const (
	serverName    = "casetrack"
	serverVersion = "0.1.0"
)

// SessionReader reads session documents.
type SessionReader interface {
	Get(ctx context.Context, code string) (*session.Session, error)
}

// ParticipantLister lists online participants.
type ParticipantLister interface {
	ListOnline(ctx context.Context, code string) ([]session.Participant, error)
}

// Services contains the stores needed by MCP.
type Services struct {
	Sessions     SessionReader
	Participants ParticipantLister
}

// Config contains server configuration.
type Config struct {
	Services Services
	Logger   *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services)

	return server
}
