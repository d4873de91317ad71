package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNetwork           = errors.New("network failure")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRejected          = errors.New("request rejected")
	ErrUnavailable       = errors.New("backend temporarily unavailable")
	ErrMalformedResponse = errors.New("malformed backend response")
)

// Error normalizes every failed backend call. Message is the text the
// backend returned, when it returned one.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func statusError(op string, status int, body []byte) *Error {
	msg := parseMessage(body)
	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrUnauthorized
	case msg == "":
		kind = ErrNetwork
	default:
		kind = ErrRejected
	}
	return &Error{
		Op:      op,
		Status:  status,
		Message: msg,
		Err:     fmt.Errorf("%w (status %d)", kind, status),
	}
}

// parseMessage extracts a message from the error bodies the backend is
// known to send: {"message"}, {"error": "..."}, {"error": {"message"}} and
// {"errors": [...]}.
func parseMessage(body []byte) string {
	var payload struct {
		Message string            `json:"message"`
		Error   json.RawMessage   `json:"error"`
		Errors  []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	if msg := messageOf(payload.Error); msg != "" {
		return msg
	}
	for _, raw := range payload.Errors {
		if msg := messageOf(raw); msg != "" {
			return msg
		}
	}
	return ""
}

func messageOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return strings.TrimSpace(obj.Message)
		}
		return strings.TrimSpace(obj.Msg)
	}
	return ""
}
