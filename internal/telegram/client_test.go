package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quailyquaily/tasknotify/internal/retryutil"
)

func noRetry() *retryutil.Policy {
	return &retryutil.Policy{Retries: 2, Base: time.Millisecond}
}

func TestSendMessageEncodesKeyboard(t *testing.T) {
	t.Parallel()

	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	c := New("TOKEN", Options{HTTPClient: srv.Client(), BaseURL: srv.URL + "/"})
	markup := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "Done #abcd1234", CallbackData: "done:abcd1234ef"}},
		{{Text: "List", CallbackData: "list"}},
	}}
	if err := c.SendMessage(context.Background(), 42, "hello", markup); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got.ChatID != 42 || got.Text != "hello" {
		t.Fatalf("request = %+v", got)
	}
	if got.ReplyMarkup == nil || len(got.ReplyMarkup.InlineKeyboard) != 2 || got.ReplyMarkup.InlineKeyboard[1][0].CallbackData != "list" {
		t.Fatalf("reply_markup = %+v", got.ReplyMarkup)
	}
}

func TestSendMessageNotOKIsFinal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := New("TOKEN", Options{HTTPClient: srv.Client(), BaseURL: srv.URL, Retry: noRetry()})
	err := c.SendMessage(context.Background(), 1, "x", nil)
	if !errors.Is(err, ErrNotOK) {
		t.Fatalf("SendMessage() error = %v, want ErrNotOK", err)
	}
	if err.Error() != "telegram: Bad Request: chat not found" {
		t.Fatalf("SendMessage() error text = %q", err.Error())
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestAnswerCallbackNotOKIsFinal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	c := New("TOKEN", Options{HTTPClient: srv.Client(), BaseURL: srv.URL, Retry: noRetry()})
	err := c.AnswerCallbackQuery(context.Background(), "cb", "")
	if !errors.Is(err, ErrNotOK) || !errors.Is(err, retryutil.ErrPermanent) {
		t.Fatalf("AnswerCallbackQuery() error = %v, want ErrNotOK and ErrPermanent", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestSendMessageRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":502,"description":"Bad Gateway"}`))
	}))
	defer srv.Close()

	c := New("TOKEN", Options{HTTPClient: srv.Client(), BaseURL: srv.URL, Retry: noRetry()})
	err := c.SendMessage(context.Background(), 1, "x", nil)
	if !errors.Is(err, ErrNotOK) || errors.Is(err, retryutil.ErrPermanent) {
		t.Fatalf("SendMessage() error = %v, want retryable ErrNotOK", err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestSendMessageRecoversOnRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("TOKEN", Options{HTTPClient: srv.Client(), BaseURL: srv.URL, Retry: noRetry()})
	if err := c.SendMessage(context.Background(), 1, "x", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestGetUpdatesRequest(t *testing.T) {
	t.Parallel()

	var got getUpdatesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":7,"message":{"message_id":1,"chat":{"id":5},"from":{"id":9},"text":"/list"}},
			{"update_id":8,"callback_query":{"id":"cb","from":{"id":9},"data":"list","message":{"message_id":2,"chat":{"id":5}}}}
		]}`))
	}))
	defer srv.Close()

	c := New("TOKEN", Options{HTTPClient: srv.Client(), BaseURL: srv.URL})
	updates, err := c.GetUpdates(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if got.Offset != 7 || got.Timeout != 1 || strings.Join(got.AllowedUpdates, ",") != "message,callback_query" {
		t.Fatalf("request = %+v", got)
	}
	if len(updates) != 2 || updates[0].ChatID() != 5 || updates[1].ChatID() != 5 {
		t.Fatalf("updates = %+v", updates)
	}
	if s := updates[1].Sender(); s == nil || s.ID != 9 {
		t.Fatalf("Sender() = %+v", s)
	}
	if updates[1].CallbackQuery.Data != "list" {
		t.Fatalf("callback data = %q", updates[1].CallbackQuery.Data)
	}
}

func TestGetUpdatesFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":409,"description":"Conflict: terminated by other getUpdates request"}`))
	}))
	defer srv.Close()

	c := New("TOKEN", Options{HTTPClient: srv.Client(), BaseURL: srv.URL})
	_, err := c.GetUpdates(context.Background(), 0, 1)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusConflict {
		t.Fatalf("GetUpdates() error = %v, want RequestError 409", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestTransportErrorRedactsToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New("123:SECRET", Options{BaseURL: url, Retry: &retryutil.Policy{}})
	err := c.AnswerCallbackQuery(context.Background(), "cb", "ok")
	if err == nil {
		t.Fatalf("AnswerCallbackQuery() error = nil, want transport error")
	}
	if strings.Contains(err.Error(), "SECRET") {
		t.Fatalf("error leaks token: %q", err.Error())
	}
}

func TestRequestErrorText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  *RequestError
		want string
	}{
		{err: &RequestError{StatusCode: 200, notOK: true}, want: "Telegram API request failed"},
		{err: &RequestError{StatusCode: 500, Body: "oops"}, want: "telegram http 500: oops"},
		{err: &RequestError{StatusCode: 403, Description: "Forbidden: bot was blocked"}, want: "telegram http 403: Forbidden: bot was blocked"},
		{err: nil, want: "Telegram API request failed"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("Error() = %q, want %q", got, tc.want)
		}
	}
}

func TestIsPollTimeout(t *testing.T) {
	t.Parallel()

	if !IsPollTimeout(context.DeadlineExceeded) {
		t.Fatalf("IsPollTimeout(DeadlineExceeded) = false")
	}
	if !IsPollTimeout(errors.New("Post \"x\": Client.Timeout exceeded while awaiting headers")) {
		t.Fatalf("IsPollTimeout(client timeout) = false")
	}
	if IsPollTimeout(errors.New("connection refused")) || IsPollTimeout(nil) {
		t.Fatalf("IsPollTimeout() matched a non-timeout")
	}
}

func TestPerChatRateLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("TOKEN", Options{HTTPClient: srv.Client(), BaseURL: srv.URL, RatePerChat: 0.001, BurstPerChat: 1})
	if err := c.SendMessage(context.Background(), 1, "first", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if err := c.SendMessage(context.Background(), 2, "other chat", nil); err != nil {
		t.Fatalf("SendMessage() other chat error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.SendMessage(ctx, 1, "second", nil); err == nil {
		t.Fatalf("SendMessage() second send in same chat should wait past the deadline")
	}
}
