package melinda

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const (
	internalErrorMessage      = "Unexpected internal error"
	serviceUnavailableMessage = "The server is temporarily unable to service your request due to maintenance downtime or capacity problems. Please try again later."
)

var (
	// ErrPollAborted is returned by Poller.Poll when the backend answers with a
	// status that makes further polling pointless (500, 403, 415).
	ErrPollAborted = errors.New("bulk poll aborted")
	// ErrJobNotFound is returned when a job reached a terminal state but the
	// metadata listing for its correlation id came back empty.
	ErrJobNotFound = errors.New("bulk job metadata not found")
	// ErrMissingID is returned without contacting the backend when an
	// operation addressing a single record, job or log is given an empty id.
	ErrMissingID = errors.New("missing id")
)

// APIError is the typed failure returned by every client operation. Status is
// the HTTP status of the response, or 500 when the request never produced a
// usable response (transport or decode failure, see Err).
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	text := http.StatusText(e.Status)
	if text == "" {
		text = "status"
	}
	if e.Message == "" {
		return fmt.Sprintf("melinda api: %d %s", e.Status, text)
	}
	return fmt.Sprintf("melinda api: %d %s: %s", e.Status, text, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Transport reports whether the error stands for a failed exchange rather than
// an answer from the backend.
func (e *APIError) Transport() bool { return e.Err != nil }

func newAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

func internalError(cause error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Message: internalErrorMessage, Err: cause}
}

// StatusCode extracts the status of an *APIError anywhere in err's chain. It
// returns 0 when err carries none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s", ErrMissingID, kind)
	}
	return nil
}

type badRequestPayload struct {
	Message      string          `json:"message"`
	FailedParams json.RawMessage `json:"failedParams"`
}

// checkStatus converts the statuses the backend uses for descriptive failures
// into an *APIError before the generic status switch sees them.
func checkStatus(logger *slog.Logger, status int, body []byte) error {
	switch status {
	case http.StatusBadRequest:
		var payload *badRequestPayload
		if len(body) == 0 || json.Unmarshal(body, &payload) != nil || payload == nil {
			logger.Error("melinda-rest-api rejected request", "status", status)
			return newAPIError(status, "")
		}
		msg := fmt.Sprintf("%s: %s", payload.Message, formatFailedParams(payload.FailedParams))
		logger.Error("melinda-rest-api rejected request", "status", status, "detail", msg)
		return newAPIError(status, msg)
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		logger.Error("melinda-rest-api refused request", "status", status)
		return newAPIError(status, "")
	case http.StatusServiceUnavailable:
		logger.Error("melinda-rest-api unavailable", "status", status)
		return newAPIError(status, serviceUnavailableMessage)
	}
	return nil
}

// formatFailedParams renders failedParams the way the backend's clients have
// always shown it: array items comma separated, strings unquoted.
func formatFailedParams(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "undefined"
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
