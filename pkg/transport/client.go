package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raiden-network/raiden-libs-go/pkg/messages"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence"
	"github.com/raiden-network/raiden-libs-go/pkg/server"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("message not found")

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// StatusError is returned for a response the server rejected
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// retryable reports whether repeating the request may succeed
func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to a message service
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *zap.Logger
}

// NewClient creates a new transport client
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return NewClientWithRetry(baseURL, DefaultRetryConfig, logger)
}

func NewClientWithRetry(baseURL string, retryConfig RetryConfig, logger *zap.Logger) *Client {
	if retryConfig.MaxAttempts < 1 {
		retryConfig.MaxAttempts = 1
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryConfig: retryConfig,
		logger:      logger,
	}
}

// SendMessage submits the transport form of msg
func (c *Client) SendMessage(ctx context.Context, msg messages.Message) (*server.SubmitResponse, error) {
	data, err := msg.SerializeFull()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", msg.Type(), err)
	}

	var resp server.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/messages", data, &resp); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", msg.Type(), err)
	}
	return &resp, nil
}

// FetchMessage loads a stored message by key
func (c *Client) FetchMessage(ctx context.Context, key string) (messages.Message, error) {
	var record persistence.StoredMessage
	if err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(key), nil, &record); err != nil {
		return nil, err
	}
	return record.Message()
}

// ListMessages lists stored records of msgType, or all records when empty
func (c *Client) ListMessages(ctx context.Context, msgType messages.MessageType) ([]*persistence.StoredMessage, error) {
	path := "/messages"
	if msgType != "" {
		path += "?type=" + url.QueryEscape(string(msgType))
	}

	var resp server.ListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Health returns nil when the service and its store are healthy
func (c *Client) Health(ctx context.Context) error {
	var resp server.HealthResponse
	return c.do(ctx, http.MethodGet, "/health", nil, &resp)
}

// do performs a request with retries and decodes a JSON response into out
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	backoff := c.retryConfig.InitialBackoff
	var lastErr error

	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		lastErr = c.doOnce(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && !statusErr.retryable() {
			return lastErr
		}
		if errors.Is(lastErr, ErrNotFound) || ctx.Err() != nil {
			return lastErr
		}

		if attempt < c.retryConfig.MaxAttempts-1 {
			c.logger.Sugar().Debugw("Request failed, retrying",
				"method", method,
				"path", path,
				"attempt", attempt+1,
				"backoff", backoff,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * c.retryConfig.BackoffMultiple)
			if backoff > c.retryConfig.MaxBackoff {
				backoff = c.retryConfig.MaxBackoff
			}
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet && strings.HasPrefix(path, "/messages/") {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return strings.TrimSpace(string(body))
}
