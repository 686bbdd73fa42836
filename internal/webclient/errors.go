package webclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
)

// User-facing messages for failed requests.
const (
	MsgTimeout          = "request timed out, please retry later"
	MsgRateLimited      = "API rate limit reached, please retry later"
	MsgServerError      = "server error (login failure or internal error)"
	MsgGatewayTimeout   = "operation timed out, please retry later"
	MsgValidationFailed = "parameter validation failed"
	MsgBadRequest       = "invalid parameters"
	MsgFailed           = "operation failed"
)

// APIError is returned for every failed request: transport failures and
// non-2xx responses. Message is the human-readable text shown to the user.
type APIError struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	Detail     string
	Message    string
	Response   *Response
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("api error: %s: %v", e.Message, e.Err)
	}
	return "api error: " + e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// Timeout reports whether the request failed because it timed out or the
// connection was aborted.
func (e *APIError) Timeout() bool { return IsTimeout(e.Err) }

// ResolveMessage maps a failed request to its user-facing message.
// Timeouts win over everything else; status 0 means no response arrived.
func ResolveMessage(status int, detail string, err error) string {
	if IsTimeout(err) {
		return MsgTimeout
	}
	if status == 0 {
		return MsgFailed
	}

	switch status {
	case http.StatusTooManyRequests:
		return orDefault(detail, MsgRateLimited)
	case http.StatusInternalServerError:
		return orDefault(detail, MsgServerError)
	case http.StatusGatewayTimeout:
		return MsgGatewayTimeout
	case http.StatusUnprocessableEntity:
		return orDefault(detail, MsgValidationFailed)
	case http.StatusBadRequest:
		return orDefault(detail, MsgBadRequest)
	default:
		return orDefault(detail, fmt.Sprintf("error code: %d", status))
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return def
}

// IsTimeout reports whether err is a timeout or a connection abort.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// ParseDetail extracts the "detail" field of an error payload. A string is
// returned as is; a validation list ([{"msg": ...}]) is joined with "; ".
func ParseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// ParseWarning extracts the "warning" field of a partial-success payload.
func ParseWarning(body []byte) string {
	var payload struct {
		Warning string `json:"warning"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Warning
}
