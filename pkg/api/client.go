package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// Config configures the backend client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zerolog.Logger
}

// Client talks to the supply-chain REST backend. Every call sends cookies from
// its jar and the viewer's bearer token when the session carries one.
type Client struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Description is the human-readable text shown in notifications.
func (e *Error) Description() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// IsStatus reports whether err is an *Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// New builds a client. A cookie jar is attached when the HTTP client has none.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
		logger:  logger.With().Str("component", "api").Logger(),
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, viewer dashboard.ViewerContext, method, path string, payload any, target any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("api: encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, viewer, target)
}

func (c *Client) send(req *http.Request, viewer dashboard.ViewerContext, target any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if viewer.Token != "" {
		req.Header.Set("Authorization", "Bearer "+viewer.Token)
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api: http request: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("backend call")
	if resp.StatusCode >= 300 {
		return decodeError(req, resp)
	}
	if target == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

func decodeError(req *http.Request, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &Error{Status: resp.StatusCode, Method: req.Method, Path: req.URL.Path}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// unwrap extracts a payload that may be bare or nested under one of keys.
func unwrap(raw json.RawMessage, keys ...string) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return trimmed
	}
	for _, key := range keys {
		if inner, ok := obj[key]; ok {
			return inner
		}
	}
	return trimmed
}
