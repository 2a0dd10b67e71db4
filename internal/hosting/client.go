// Package hosting is a minimal client for the game server hosting REST API
// (exaroton-compatible surface): server status, power control and file access.
package hosting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/woozymasta/speedrun/internal/metrics"
)

// Server status codes reported by the hosting API.
const (
	StatusOffline    = 0
	StatusOnline     = 1
	StatusStarting   = 2
	StatusStopping   = 3
	StatusRestarting = 4
	StatusSaving     = 5
	StatusLoading    = 6
	StatusCrashed    = 7
	StatusPending    = 8
	StatusPreparing  = 10
)

var statusLabels = map[int]string{
	StatusOffline:    "OFFLINE",
	StatusOnline:     "ONLINE",
	StatusStarting:   "STARTING",
	StatusStopping:   "STOPPING",
	StatusRestarting: "RESTARTING",
	StatusSaving:     "SAVING",
	StatusLoading:    "LOADING",
	StatusCrashed:    "CRASHED",
	StatusPending:    "PENDING",
	StatusPreparing:  "PREPARING",
}

// StatusLabel returns the name of a status code, or "UNKNOWN".
func StatusLabel(code int) string {
	if label, ok := statusLabels[code]; ok {
		return label
	}

	return "UNKNOWN"
}

// maxErrorBody caps how much of a failed response body is kept in TransportError.
const maxErrorBody = 4096

// TransportError is returned when the remote answers with a non-success status.
type TransportError struct {
	Op         string
	Body       string
	StatusCode int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hosting %s: remote returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// Config holds connection settings for one hosted server.
type Config struct {
	URL      string        `long:"url" env:"URL" description:"Hosting API base URL" default:"https://api.exaroton.com/v1"`
	Token    string        `long:"token" env:"TOKEN" description:"Hosting API bearer token"`
	ServerID string        `long:"server-id" env:"SERVER_ID" description:"Hosted server identifier"`
	Timeout  time.Duration `long:"timeout" env:"TIMEOUT" description:"Hosting API request timeout" default:"15s"`
}

// Enabled reports whether enough settings are present to talk to the API.
func (c Config) Enabled() bool {
	return c.URL != "" && c.Token != "" && c.ServerID != ""
}

// Client talks to a single hosted server. Calls are not retried.
type Client struct {
	http     *http.Client
	metrics  *metrics.Metrics
	baseURL  string
	serverID string
	token    string
}

// New creates a client for cfg. m may be nil.
func New(cfg Config, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		http:     &http.Client{Timeout: timeout},
		metrics:  m,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		serverID: cfg.ServerID,
		token:    cfg.Token,
	}
}

// envelope is the JSON wrapper used by the API.
type envelope struct {
	Error   *string         `json:"error"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

// Status returns the numeric status code of the server.
func (c *Client) Status(ctx context.Context) (int, error) {
	body, err := c.do(ctx, "status", http.MethodGet, "", nil)
	if err != nil {
		return 0, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, fmt.Errorf("hosting status: decode response: %w", err)
	}
	if !env.Success {
		msg := "unsuccessful response"
		if env.Error != nil {
			msg = *env.Error
		}
		return 0, &TransportError{Op: "status", StatusCode: http.StatusOK, Body: msg}
	}

	var data struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return 0, fmt.Errorf("hosting status: decode data: %w", err)
	}

	return data.Status, nil
}

// Start powers the server on.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.do(ctx, "start", http.MethodPost, "start/", nil)
	return err
}

// Stop powers the server off.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.do(ctx, "stop", http.MethodPost, "stop/", nil)
	return err
}

// Restart restarts the server in place.
func (c *Client) Restart(ctx context.Context) error {
	_, err := c.do(ctx, "restart", http.MethodPost, "restart/", nil)
	return err
}

// ReadFile returns the text content of a file on the server disk.
func (c *Client) ReadFile(ctx context.Context, path string) (string, error) {
	body, err := c.do(ctx, "read_file", http.MethodGet, filePath(path), nil)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// WriteFile overwrites a file on the server disk with content.
func (c *Client) WriteFile(ctx context.Context, path, content string) error {
	_, err := c.do(ctx, "write_file", http.MethodPut, filePath(path), strings.NewReader(content))
	return err
}

// DeleteFile deletes a file or a directory tree on the server disk.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	_, err := c.do(ctx, "delete_file", http.MethodDelete, filePath(path), nil)
	return err
}

// filePath builds the files endpoint for a server-relative path, escaping each segment.
func filePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}

	return "files/data/" + strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader) ([]byte, error) {
	target := fmt.Sprintf("%s/servers/%s/%s", c.baseURL, url.PathEscape(c.serverID), endpoint)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, false)
		return nil, fmt.Errorf("hosting %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(op, false)
		return nil, fmt.Errorf("hosting %s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(op, false)
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	c.observe(op, true)
	return data, nil
}

func (c *Client) observe(op string, ok bool) {
	if c.metrics != nil {
		c.metrics.ObserveRemoteCall(op, ok)
	}
}
