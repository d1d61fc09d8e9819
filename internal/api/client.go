package api

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

	"github.com/gorilla/websocket"
	"github.com/muurk/wifiprov/internal/provision"
)

// DefaultPort is the agent's default API port.
const DefaultPort = 8470

// Client talks to a running agent.
type Client struct {
	// BaseURL is the agent address, e.g. "http://192.168.4.1:8470"
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// UserAgent is sent when set
	UserAgent string
}

// NewClient creates a client for the agent at addr. A bare host gets the
// http scheme and DefaultPort.
func NewClient(addr string) *Client {
	if !strings.Contains(addr, "://") {
		if !strings.Contains(addr, ":") {
			addr = fmt.Sprintf("%s:%d", addr, DefaultPort)
		}
		addr = "http://" + addr
	}
	return &Client{
		BaseURL:    strings.TrimRight(addr, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is a non-2xx reply from the agent.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("agent returned %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("agent returned %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is the agent refusing a second test.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to agent failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e ErrorResponse
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error, Type: e.Type}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Status fetches GET /api/status.
func (c *Client) Status(ctx context.Context) (provision.Status, error) {
	var st provision.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// Result fetches GET /api/result.
func (c *Client) Result(ctx context.Context) (provision.Result, error) {
	var r provision.Result
	err := c.do(ctx, http.MethodGet, "/api/result", nil, &r)
	return r, err
}

// Test starts a test. With wait set the call blocks until the agent
// reports the result, so ctx and HTTPClient.Timeout should allow for it.
func (c *Client) Test(ctx context.Context, req TestRequest, wait bool) (TestResponse, error) {
	path := "/api/test"
	if wait {
		path += "?wait=true"
	}
	var resp TestResponse
	err := c.do(ctx, http.MethodPost, path, req, &resp)
	return resp, err
}

// Action runs one of the station or boot actions, e.g. "sta/connect" or
// "boot/enable".
func (c *Client) Action(ctx context.Context, action string) error {
	return c.do(ctx, http.MethodPost, "/api/"+strings.TrimPrefix(action, "/"), nil, nil)
}

// Stream is an open /api/ws connection.
type Stream struct {
	conn *websocket.Conn
}

// Watch opens the event and result stream.
func (c *Client) Watch(ctx context.Context) (*Stream, error) {
	u, err := url.Parse(c.BaseURL + "/api/ws")
	if err != nil {
		return nil, fmt.Errorf("invalid agent URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.UserAgent != "" {
		header.Set("User-Agent", c.UserAgent)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next message.
func (s *Stream) Next() (Message, error) {
	var msg Message
	err := s.conn.ReadJSON(&msg)
	return msg, err
}

// Close sends a close frame and closes the connection.
func (s *Stream) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
