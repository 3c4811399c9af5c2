package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/repository"
)

// Error codes carried next to the message in error responses.
const (
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeExists       = "exists"
	CodeInvalid      = "invalid"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeInternal     = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CreateSessionRequest creates a document. Owner comes from the identity header.
type CreateSessionRequest struct {
	Code  string              `json:"code"`
	Cases []testcase.TestCase `json:"cases,omitempty"`
}

// ReplaceCasesRequest replaces a document's case list.
type ReplaceCasesRequest struct {
	Cases           []testcase.TestCase `json:"cases"`
	ExpectedVersion int64               `json:"expectedVersion"`
}

// ReplaceCasesResponse reports the version after a replace.
type ReplaceCasesResponse struct {
	Version int64 `json:"version"`
}

// Message types pushed over the subscription websocket.
const (
	MessageSession      = "session"
	MessageParticipants = "participants"
	MessageClosed       = "closed"
)

// Message is one push over the subscription websocket.
type Message struct {
	Type         string                `json:"type"`
	Session      *session.Session      `json:"session,omitempty"`
	Participants []session.Participant `json:"participants,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, repository.ErrAlreadyExists):
		writeError(w, http.StatusConflict, CodeExists, err.Error())
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, CodeInvalid, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalid, "invalid request body: "+err.Error())
		return false
	}
	return true
}
