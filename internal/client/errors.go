package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/repository"
	"github.com/rpggio/casetrack/internal/transport"
)

// ErrUnauthorized is returned when the server rejects the identity.
var ErrUnauthorized = errors.New("unauthorized")

// errSessionGone ends a feed for good.
var errSessionGone = errors.New("session is gone")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	var payload transport.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: payload.Code, Message: payload.Error}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return mapAPIError(apiErr)
}

// mapAPIError wraps apiErr in the repository sentinel matching its status.
func mapAPIError(apiErr *APIError) error {
	switch apiErr.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", repository.ErrNotFound, apiErr)
	case http.StatusConflict:
		if apiErr.Code == transport.CodeExists {
			return fmt.Errorf("%w: %w", repository.ErrAlreadyExists, apiErr)
		}
		return fmt.Errorf("%w: %w", repository.ErrConflict, apiErr)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %w", session.ErrInvalidInput, apiErr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	default:
		return apiErr
	}
}

func asAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
