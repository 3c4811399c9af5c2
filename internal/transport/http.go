package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
)

// Server serves the session store over HTTP.
type Server struct {
	sessions     session.Store
	participants session.ParticipantStore
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	now          func() time.Time
}

// NewServer creates the HTTP router. mcpHandler may be nil.
func NewServer(sessions session.Store, participants session.ParticipantStore, mcpHandler http.Handler, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		sessions:     sessions,
		participants: participants,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now: time.Now,
	}

	r := chi.NewRouter()
	r.Get("/health", srv.handleHealth)
	if mcpHandler != nil {
		r.Handle("/mcp", mcpHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(IdentityMiddleware)
		r.Post("/sessions", srv.handleCreateSession)
		r.Route("/sessions/{code}", func(r chi.Router) {
			r.Get("/", srv.handleGetSession)
			r.Delete("/", srv.handleDeleteSession)
			r.Put("/cases", srv.handleReplaceCases)
			r.Get("/participants", srv.handleListParticipants)
			r.Post("/participants", srv.handleAddParticipant)
			r.Post("/participants/{id}/offline", srv.handleMarkOffline)
			r.Post("/participants/{id}/heartbeat", srv.handleHeartbeat)
			r.Get("/ws", srv.handleSubscribe)
		})
	})

	return r
}

func codeParam(r *http.Request) string {
	return session.NormalizeCode(chi.URLParam(r, "code"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req CreateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	code := session.NormalizeCode(req.Code)
	if !session.ValidCode(code) {
		writeError(w, http.StatusBadRequest, CodeInvalid, "invalid session code")
		return
	}

	doc := session.New(code, user, s.now())
	if req.Cases != nil {
		doc.Cases = req.Cases
	}
	if err := s.sessions.Create(r.Context(), doc); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	doc, err := s.sessions.Get(r.Context(), codeParam(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	code := codeParam(r)

	doc, err := s.sessions.Get(r.Context(), code)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if doc.Owner != user {
		writeError(w, http.StatusForbidden, CodeForbidden, "only the owner can delete a session")
		return
	}
	if err := s.sessions.Delete(r.Context(), code); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplaceCases(w http.ResponseWriter, r *http.Request) {
	var req ReplaceCasesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Cases == nil {
		req.Cases = []testcase.TestCase{}
	}

	version, err := s.sessions.ReplaceCases(r.Context(), codeParam(r), req.Cases, req.ExpectedVersion)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReplaceCasesResponse{Version: version})
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	online, err := s.participants.ListOnline(r.Context(), codeParam(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, online)
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var p session.Participant
	if !decodeBody(w, r, &p) {
		return
	}
	if p.User == "" {
		p.User = user
	}
	if p.User != user {
		writeError(w, http.StatusForbidden, CodeForbidden, "cannot register another user")
		return
	}
	p.SessionCode = codeParam(r)
	if p.JoinedAt.IsZero() {
		p.JoinedAt = s.now().UTC()
	}
	p.LastSeen = p.JoinedAt
	p.Online = true

	if err := s.participants.Add(r.Context(), &p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleMarkOffline(w http.ResponseWriter, r *http.Request) {
	if err := s.participants.MarkOffline(r.Context(), codeParam(r), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.participants.Touch(r.Context(), codeParam(r), chi.URLParam(r, "id"), s.now()); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
