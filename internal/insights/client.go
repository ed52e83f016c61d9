package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cleared-dev/fpa/internal/config"
)

const (
	maxBodySize = 4 << 20 // 4 MB
	userAgent   = "fpa/1.0"
)

var (
	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("insights: unauthorized (API key missing or invalid)")
	// ErrRateLimited indicates the provider returned HTTP 429.
	ErrRateLimited = errors.New("insights: rate limited")
	// ErrEmptyResponse indicates a reply without any message content.
	ErrEmptyResponse = errors.New("insights: empty response")
	// ErrTransport marks network failures and per-attempt timeouts.
	ErrTransport = errors.New("insights: request failed")
)

// StatusError is a non-2xx reply from the provider.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("insights: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("insights: unexpected status %d: %s", e.Code, e.Message)
}

// Is maps auth and throttling statuses onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
	case ErrRateLimited:
		return e.Code == http.StatusTooManyRequests
	}
	return false
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	http       *http.Client
}

// NewClient builds a client from the AI config section and a resolved key.
func NewClient(cfg config.AIConfig, apiKey string) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), cfg.RequestsPerMinute)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    config.RetryBackoff,
		limiter:    limiter,
		http:       &http.Client{},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the messages and returns the first choice's content.
// Transport failures, 429 and 5xx are retried up to maxRetries times;
// anything else fails immediately.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("insights: encoding request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("insights: waiting for rate limiter: %w", err)
		}

		text, err := c.post(ctx, payload)
		if err == nil {
			return text, nil
		}
		if attempt >= c.maxRetries || !retryable(err) || ctx.Err() != nil {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.backoff):
		}
	}
}

func (c *Client) post(ctx context.Context, payload []byte) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("insights: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er errorResponse
		_ = json.Unmarshal(body, &er)
		return "", &StatusError{Code: resp.StatusCode, Message: er.Error.Message}
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("insights: parsing response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return cr.Choices[0].Message.Content, nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return false
}
