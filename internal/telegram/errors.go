package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/quailyquaily/tasknotify/internal/retryutil"
)

// ErrNotOK is wrapped by RequestError when the API answered ok=false.
var ErrNotOK = errors.New("telegram: response not ok")

const defaultFailureText = "Telegram API request failed"

// RequestError describes a failed Bot API call.
type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
	notOK       bool
}

// Retryable reports whether the call may succeed when repeated. An ok=false
// answer is final unless the server was overloaded or rate limited.
func (e *RequestError) Retryable() bool {
	if e == nil || !e.notOK {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == 429 || e.ErrorCode == 429
}

func (e *RequestError) Error() string {
	if e == nil {
		return defaultFailureText
	}
	desc := strings.TrimSpace(e.Description)
	if desc != "" {
		if e.StatusCode > 0 && (e.StatusCode < 200 || e.StatusCode >= 300) {
			return fmt.Sprintf("telegram http %d: %s", e.StatusCode, desc)
		}
		return "telegram: " + desc
	}
	body := strings.TrimSpace(e.Body)
	if e.StatusCode > 0 && (e.StatusCode < 200 || e.StatusCode >= 300) {
		if body != "" {
			return fmt.Sprintf("telegram http %d: %s", e.StatusCode, body)
		}
		return fmt.Sprintf("telegram http %d", e.StatusCode)
	}
	return defaultFailureText
}

func (e *RequestError) Unwrap() []error {
	if e == nil || !e.notOK {
		return nil
	}
	if e.Retryable() {
		return []error{ErrNotOK}
	}
	return []error{ErrNotOK, retryutil.ErrPermanent}
}

// transportError hides the bot token that net/http embeds in URL errors.
type transportError struct {
	err   error
	token string
}

func (e *transportError) Error() string {
	msg := e.err.Error()
	if e.token != "" {
		msg = strings.ReplaceAll(msg, e.token, "<redacted>")
	}
	return msg
}

func (e *transportError) Unwrap() error { return e.err }

// IsPollTimeout reports whether err is a long-poll timeout rather than a
// real failure.
func IsPollTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}
