// Package client talks to a casetrack server. Client implements
// session.Store and session.ParticipantStore.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/pubsub"
	"github.com/rpggio/casetrack/internal/transport"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReconnectBackoff bounds the delay between websocket reconnects.
func WithReconnectBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

// Client is a remote session and participant store.
type Client struct {
	baseURL    string
	user       string
	http       *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	docs     *pubsub.Broker[session.Session]
	presence *pubsub.Broker[[]session.Participant]

	mu         sync.Mutex
	feeds      map[string]*feed
	lastDoc    map[string]session.Session
	lastOnline map[string][]session.Participant
}

// New creates a Client for the server at baseURL acting as user.
func New(baseURL, user string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		user:       user,
		http:       &http.Client{Timeout: defaultTimeout},
		dialer:     websocket.DefaultDialer,
		logger:     slog.Default(),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
		docs:       pubsub.NewBroker[session.Session](),
		presence:   pubsub.NewBroker[[]session.Participant](),
		feeds:      make(map[string]*feed),
		lastDoc:    make(map[string]session.Session),
		lastOnline: make(map[string][]session.Participant),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// Create stores a new session document and fills sess with the stored copy.
func (c *Client) Create(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return session.ErrInvalidInput
	}
	req := transport.CreateSessionRequest{Code: sess.Code, Cases: sess.Cases}
	return c.doJSON(ctx, http.MethodPost, "/api/sessions", req, sess)
}

// Get fetches the session document for code.
func (c *Client) Get(ctx context.Context, code string) (*session.Session, error) {
	var doc session.Session
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(code), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReplaceCases writes the full case list and returns the new version.
// expectedVersion of session.AnyVersion skips the version check.
func (c *Client) ReplaceCases(ctx context.Context, code string, cases []testcase.TestCase, expectedVersion int64) (int64, error) {
	if cases == nil {
		cases = []testcase.TestCase{}
	}
	var resp transport.ReplaceCasesResponse
	req := transport.ReplaceCasesRequest{Cases: cases, ExpectedVersion: expectedVersion}
	if err := c.doJSON(ctx, http.MethodPut, sessionPath(code)+"/cases", req, &resp); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

// Delete removes the session document.
func (c *Client) Delete(ctx context.Context, code string) error {
	return c.doJSON(ctx, http.MethodDelete, sessionPath(code), nil, nil)
}

// Add registers a participant and fills p with the stored copy.
func (c *Client) Add(ctx context.Context, p *session.Participant) error {
	if p == nil {
		return session.ErrInvalidInput
	}
	return c.doJSON(ctx, http.MethodPost, sessionPath(p.SessionCode)+"/participants", p, p)
}

// MarkOffline flags a participant as gone.
func (c *Client) MarkOffline(ctx context.Context, code, participantID string) error {
	path := sessionPath(code) + "/participants/" + url.PathEscape(participantID) + "/offline"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// Touch sends a heartbeat. The server stamps its own time.
func (c *Client) Touch(ctx context.Context, code, participantID string, _ time.Time) error {
	path := sessionPath(code) + "/participants/" + url.PathEscape(participantID) + "/heartbeat"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// ListOnline returns the participants currently online in code.
func (c *Client) ListOnline(ctx context.Context, code string) ([]session.Participant, error) {
	online := []session.Participant{}
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(code)+"/participants", nil, &online); err != nil {
		return nil, err
	}
	return online, nil
}

func sessionPath(code string) string {
	return "/api/sessions/" + url.PathEscape(code)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(transport.UserHeader, c.user)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
