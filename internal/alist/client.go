package alist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mikanarr/internal/services"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "mikanarr"
)

// Client talks to one Alist server.
type Client struct {
	baseURL    *url.URL
	token      string
	downloader Downloader
	userAgent  string
	timeout    time.Duration
	tempDir    string

	mu         sync.Mutex
	httpClient *http.Client

	versionMu sync.Mutex
	version   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient injects the HTTP client instead of creating one lazily.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the lazily created client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if agent = strings.TrimSpace(agent); agent != "" {
			c.userAgent = agent
		}
	}
}

// WithTempDir sets the parent directory for torrent conversion scratch
// space. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(c *Client) { c.tempDir = dir }
}

// New constructs a client. The HTTP session is created on first use.
func New(baseURL, token string, downloader Downloader, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: alist base url %q is not absolute", services.ErrConfiguration, baseURL)
	}
	if !downloader.Valid() {
		return nil, fmt.Errorf("%w: unsupported alist downloader %q", services.ErrConfiguration, downloader)
	}
	client := &Client{
		baseURL:    parsed,
		token:      strings.TrimSpace(token),
		downloader: downloader,
		userAgent:  defaultUserAgent,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Downloader returns the offline download tool tasks are submitted to.
func (c *Client) Downloader() Downloader {
	return c.downloader
}

// session returns the shared HTTP client, creating it on first use.
func (c *Client) session() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		c.httpClient = &http.Client{Timeout: c.timeout, Transport: transport}
	}
	return c.httpClient
}

// TransportError reports a non-2xx HTTP response.
type TransportError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("alist %s %s: http %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return services.ErrTransport }

// APIError reports an envelope whose code is not 200.
type APIError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alist %s: code %d: %s", e.Endpoint, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return services.ErrApplication }

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type request struct {
	method        string
	endpoint      string
	query         url.Values
	headers       map[string]string
	payload       any
	body          io.Reader
	contentLength int64
}

// call performs req and decodes the envelope's data into out (when non-nil).
func (c *Client) call(ctx context.Context, req request, out any) error {
	endpoint := c.baseURL.JoinPath(req.endpoint)
	if len(req.query) > 0 {
		endpoint.RawQuery = req.query.Encode()
	}

	body := req.body
	if req.payload != nil {
		encoded, err := json.Marshal(req.payload)
		if err != nil {
			return services.Wrap(services.ErrValidation, "alist", req.endpoint, "encode payload", err)
		}
		body = bytes.NewReader(encoded)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint.String(), body)
	if err != nil {
		return services.Wrap(services.ErrValidation, "alist", req.endpoint, "build request", err)
	}
	httpReq.Header.Set("Authorization", c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}
	if req.contentLength > 0 {
		httpReq.ContentLength = req.contentLength
	}

	resp, err := c.session().Do(httpReq)
	if err != nil {
		return services.Wrap(services.ErrTransport, "alist", req.endpoint, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransport, "alist", req.endpoint, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{
			Method:     req.method,
			Endpoint:   req.endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return services.Wrap(services.ErrApplication, "alist", req.endpoint, "decode envelope", err)
	}
	if env.Code != http.StatusOK {
		message := strings.TrimSpace(env.Message)
		if message == "" {
			message = "unknown error"
		}
		return &APIError{Endpoint: req.endpoint, Code: env.Code, Message: message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return services.Wrap(services.ErrApplication, "alist", req.endpoint, "decode data", err)
	}
	return nil
}

// Version returns the server version without its leading "v". The first
// successful check is cached.
func (c *Client) Version(ctx context.Context) (string, error) {
	c.versionMu.Lock()
	defer c.versionMu.Unlock()
	if c.version != "" {
		return c.version, nil
	}
	var settings struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, request{method: http.MethodGet, endpoint: "api/public/settings"}, &settings); err != nil {
		return "", err
	}
	c.version = strings.TrimPrefix(strings.TrimSpace(settings.Version), "v")
	return c.version, nil
}
