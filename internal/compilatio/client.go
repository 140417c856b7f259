// Package compilatio provides an HTTP client for the Compilatio REST API.
package compilatio

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

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the production REST endpoint.
	DefaultBaseURL = "https://app.compilatio.net"

	authHeader  = "X-Auth-Token"
	recipeName  = "anasim"
	defaultUA   = "compilatio-connector/0.1"
	jsonContent = "application/json"
)

// Service is the subset of the client the rest of the module depends on.
// It is implemented by *Client and by fakes in tests.
type Service interface {
	SendDoc(ctx context.Context, title, filename, content string) (string, error)
	GetDoc(ctx context.Context, id string) (*Document, error)
	GetReportURL(ctx context.Context, id string) (string, error)
	DeleteDoc(ctx context.Context, id string) error
	StartAnalysis(ctx context.Context, id string) error
	GetIndexingState(ctx context.Context, id string) (bool, error)
	SetIndexingState(ctx context.Context, id string, indexed bool) error
	GetQuotas() AccountQuotas
	GetAccountExpirationDate(ctx context.Context) (string, error)
	PostConfiguration(ctx context.Context, cfg PluginConfiguration) error
	GetTechnicalNews(ctx context.Context) ([]ServiceInfo, error)
	GetAllowedFileMaxSize() FileMaxSize
	GetAllowedFileTypes(ctx context.Context) ([]FileType, error)
}

var _ Service = (*Client)(nil)

// Client talks to the Compilatio REST API. It holds no state besides the API key
// and base URL, so it is safe for concurrent use.
type Client struct {
	key     string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets a logger for request debug output.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Client for the given API key and REST base URL.
// An empty key is accepted; the service then answers every call with its own
// authentication error.
func NewClient(key, baseURL string, opts ...ClientOption) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		key:     key,
		baseURL: base,
		http:    &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Configured reports whether the client has an API key to authenticate with.
func (c *Client) Configured() bool {
	return c != nil && c.key != ""
}

// BaseURL returns the normalized REST base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

// call sends req, unwraps the status envelope and decodes data into dest when the
// status code equals want.
func (c *Client) call(ctx context.Context, req request, want int, dest any) error {
	raw, _, err := c.send(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", req.op, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Status == nil ||
		env.Status.Code == nil || env.Status.Message == nil {
		return fmt.Errorf("%s: %w", req.op, ErrStatusNotFound)
	}
	if *env.Status.Code != want {
		return &APIError{Op: req.op, Code: *env.Status.Code, Message: *env.Status.Message}
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("%s: decode response: %w", req.op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, r request) ([]byte, int, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if c.key != "" {
		req.Header.Set(authHeader, c.key)
	}
	contentType := r.contentType
	if contentType == "" {
		contentType = jsonContent
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", jsonContent)
	req.Header.Set("User-Agent", defaultUA)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("compilatio request",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("http_status", resp.StatusCode),
	)
	return body, resp.StatusCode, nil
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

func documentPath(id string, suffix string) string {
	return "/api/document/" + url.PathEscape(id) + suffix
}

func parseBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("compilatio base URL is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("parse base url %q: missing host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}
