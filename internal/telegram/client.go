// Package telegram is a small Bot API client: send messages with inline
// keyboards, long-poll updates and answer callback queries.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quailyquaily/tasknotify/internal/retryutil"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	defaultHTTPTimeout = 60 * time.Second
	pollGrace          = 10 * time.Second
)

// DefaultRetry is used for sends and callback answers. Polls never retry.
var DefaultRetry = retryutil.Policy{Retries: 2, Base: 750 * time.Millisecond}

var allowedUpdates = []string{"message", "callback_query"}

type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	Logger     *slog.Logger
	Retry      *retryutil.Policy

	// RatePerChat limits sends per chat in messages per second. Zero
	// disables limiting.
	RatePerChat  float64
	BurstPerChat int
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	logger  *slog.Logger
	retry   retryutil.Policy

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

func New(token string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := DefaultRetry
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	limit := rate.Inf
	burst := opts.BurstPerChat
	if opts.RatePerChat > 0 {
		limit = rate.Limit(opts.RatePerChat)
		if burst <= 0 {
			burst = 1
		}
	}
	return &Client{
		http:     httpClient,
		baseURL:  baseURL,
		token:    strings.TrimSpace(token),
		logger:   logger,
		retry:    retry,
		limit:    limit,
		burst:    burst,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// SendMessage sends plain text, optionally with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error {
	if err := c.limiter(chatID).Wait(ctx); err != nil {
		return err
	}
	req := sendMessageRequest{ChatID: chatID, Text: text, ReplyMarkup: markup}
	return retryutil.Do(ctx, c.logger, "telegram_send_message", c.retry, func(ctx context.Context) error {
		return c.Call(ctx, "sendMessage", req, nil)
	})
}

// AnswerCallbackQuery acknowledges a button press with a short toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	req := answerCallbackRequest{CallbackQueryID: callbackID, Text: text}
	return retryutil.Do(ctx, c.logger, "telegram_answer_callback", c.retry, func(ctx context.Context) error {
		return c.Call(ctx, "answerCallbackQuery", req, nil)
	})
}

// GetUpdates long-polls for message and callback updates starting at
// offset. A timeout below one second is raised to one.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	if timeoutSeconds < 1 {
		timeoutSeconds = 1
	}
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second+pollGrace)
	defer cancel()
	var out []Update
	req := getUpdatesRequest{Offset: offset, Timeout: timeoutSeconds, AllowedUpdates: allowedUpdates}
	if err := c.Call(reqCtx, "getUpdates", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Call posts payload as JSON to method and decodes the result field into
// out when out is non-nil.
func (c *Client) Call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &transportError{err: err, token: c.token}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err, token: c.token}
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var envelope struct {
		OK          bool            `json:"ok"`
		ErrorCode   int             `json:"error_code,omitempty"`
		Description string          `json:"description,omitempty"`
		Result      json.RawMessage `json:"result,omitempty"`
	}
	decodeErr := json.Unmarshal(raw, &envelope)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decodeErr != nil || !envelope.OK {
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   envelope.ErrorCode,
			Description: envelope.Description,
			Body:        strings.TrimSpace(string(raw)),
			notOK:       decodeErr == nil && !envelope.OK,
		}
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) limiter(chatID int64) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[chatID] = l
	}
	return l
}
