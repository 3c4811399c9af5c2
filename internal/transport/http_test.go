package transport_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/testserver"
	"github.com/rpggio/casetrack/internal/transport"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	return testserver.New(t).Server
}

func do(t *testing.T, method, url, user string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(transport.UserHeader, user)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHTTPServer_Health(t *testing.T) {
	server := newServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer_RequiresIdentity(t *testing.T) {
	server := newServer(t)

	resp := do(t, http.MethodGet, server.URL+"/api/sessions/ABC123", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPServer_SessionLifecycle(t *testing.T) {
	server := newServer(t)
	base := server.URL + "/api/sessions"

	resp := do(t, http.MethodPost, base, "alice", transport.CreateSessionRequest{Code: "abc123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[session.Session](t, resp)
	require.Equal(t, "ABC123", created.Code)
	require.Equal(t, "alice", created.Owner)
	require.Equal(t, int64(1), created.Version)

	resp = do(t, http.MethodPost, base, "bob", transport.CreateSessionRequest{Code: "ABC123"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, transport.CodeExists, decode[transport.ErrorResponse](t, resp).Code)

	cases := []testcase.TestCase{{ID: "1", CaseID: "TC-1", Status: testcase.StatusPending}}
	resp = do(t, http.MethodPut, base+"/ABC123/cases", "alice", transport.ReplaceCasesRequest{Cases: cases})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(2), decode[transport.ReplaceCasesResponse](t, resp).Version)

	resp = do(t, http.MethodPut, base+"/ABC123/cases", "alice", transport.ReplaceCasesRequest{Cases: cases, ExpectedVersion: 1})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, transport.CodeConflict, decode[transport.ErrorResponse](t, resp).Code)

	resp = do(t, http.MethodGet, base+"/abc123", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[session.Session](t, resp)
	require.Len(t, doc.Cases, 1)

	resp = do(t, http.MethodDelete, base+"/ABC123", "bob", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodDelete, base+"/ABC123", "alice", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/ABC123", "alice", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, transport.CodeNotFound, decode[transport.ErrorResponse](t, resp).Code)
}

func TestHTTPServer_CreateRejectsBadCode(t *testing.T) {
	server := newServer(t)

	resp := do(t, http.MethodPost, server.URL+"/api/sessions", "alice", transport.CreateSessionRequest{Code: "00"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPServer_Participants(t *testing.T) {
	server := newServer(t)
	base := server.URL + "/api/sessions"

	resp := do(t, http.MethodPost, base, "alice", transport.CreateSessionRequest{Code: "ABC123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/ABC123/participants", "alice",
		session.Participant{ID: "p1", Role: session.RoleEditor})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	p := decode[session.Participant](t, resp)
	require.Equal(t, "alice", p.User)
	require.True(t, p.Online)

	resp = do(t, http.MethodPost, base+"/ABC123/participants", "bob",
		session.Participant{ID: "p2", User: "alice", Role: session.RoleViewer})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/ZZZZZZ/participants", "bob",
		session.Participant{ID: "p3", Role: session.RoleViewer})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/ABC123/participants/p1/heartbeat", "alice", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/ABC123/participants", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decode[[]session.Participant](t, resp), 1)

	resp = do(t, http.MethodPost, base+"/ABC123/participants/p1/offline", "alice", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/ABC123/participants/missing/offline", "alice", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/ABC123/participants", "alice", nil)
	require.Empty(t, decode[[]session.Participant](t, resp))
}

func readMessage(t *testing.T, conn *websocket.Conn) transport.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg transport.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHTTPServer_SubscribePushesChanges(t *testing.T) {
	server := newServer(t)
	base := server.URL + "/api/sessions"

	resp := do(t, http.MethodPost, base, "alice", transport.CreateSessionRequest{Code: "ABC123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	header := http.Header{}
	header.Set(transport.UserHeader, "bob")
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/ABC123/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	initial := map[string]transport.Message{}
	for range 2 {
		msg := readMessage(t, conn)
		initial[msg.Type] = msg
	}
	require.Contains(t, initial, transport.MessageSession)
	require.Contains(t, initial, transport.MessageParticipants)
	require.Equal(t, int64(1), initial[transport.MessageSession].Session.Version)

	cases := []testcase.TestCase{{ID: "1", CaseID: "TC-1", Status: testcase.StatusPassed}}
	resp = do(t, http.MethodPut, base+"/ABC123/cases", "alice", transport.ReplaceCasesRequest{Cases: cases})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg := readMessage(t, conn)
	require.Equal(t, transport.MessageSession, msg.Type)
	require.Equal(t, int64(2), msg.Session.Version)
	require.Len(t, msg.Session.Cases, 1)

	resp = do(t, http.MethodDelete, base+"/ABC123", "alice", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	msg = readMessage(t, conn)
	require.Equal(t, transport.MessageClosed, msg.Type)
}

func TestHTTPServer_SubscribeUnknownSession(t *testing.T) {
	server := newServer(t)

	header := http.Header{}
	header.Set(transport.UserHeader, "bob")
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/ZZZZZZ/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
