package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches any *Error with status 401.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrForbidden matches any *Error with status 403.
	ErrForbidden = errors.New("api: forbidden")
	// ErrNotFound matches any *Error with status 404.
	ErrNotFound = errors.New("api: not found")
	// ErrTransport wraps failures where no HTTP response was received.
	ErrTransport = errors.New("api: transport failure")
)

// Error is a non-2xx response from the dealer API. Detail holds the server's
// human-readable message when one was sent.
type Error struct {
	StatusCode int
	Detail     string
	Method     string
	Path       string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets callers match status classes with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Detail extracts the server message from err, or "" when err is not an
// *Error or carries no detail.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

type validationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// decodeError reads a FastAPI error body. detail is either a string or a
// list of validation issues.
func decodeError(resp *http.Response) *Error {
	apiErr := &Error{
		StatusCode: resp.StatusCode,
		Method:     resp.Request.Method,
		Path:       resp.Request.URL.Path,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return apiErr
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		apiErr.Detail = text
		return apiErr
	}

	var issues []validationIssue
	if err := json.Unmarshal(envelope.Detail, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if issue.Msg == "" {
				continue
			}
			msgs = append(msgs, issue.Msg)
		}
		apiErr.Detail = strings.Join(msgs, "; ")
	}

	return apiErr
}
