// pattern: Imperative Shell

package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"shellflow/internal/events"
)

// Client is a thin HTTP client for communicating with a running shellflow instance.
// Methods return the raw JSON response body.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given base URL.
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, 10*time.Second)
}

// NewClientWithTimeout creates a Client with a custom timeout. Workspace
// creation can take a while on large repositories.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListProjects fetches GET /api/projects.
func (c *Client) ListProjects() ([]byte, error) {
	return c.do(http.MethodGet, "/api/projects", nil)
}

// DiscoverRepositories fetches GET /api/discover.
func (c *Client) DiscoverRepositories() ([]byte, error) {
	return c.do(http.MethodGet, "/api/discover", nil)
}

// GetProject fetches one project.
func (c *Client) GetProject(id string) ([]byte, error) {
	return c.do(http.MethodGet, "/api/projects/"+url.PathEscape(id), nil)
}

// OpenProject registers the repository at path.
func (c *Client) OpenProject(path string) ([]byte, error) {
	return c.do(http.MethodPost, "/api/projects", map[string]string{"path": path})
}

// CloseProject forgets a project without touching its worktrees.
func (c *Client) CloseProject(id string) error {
	_, err := c.do(http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil)
	return err
}

// CreateWorkspace creates a workspace. An empty name asks the server to
// generate one.
func (c *Client) CreateWorkspace(projectID, name string) ([]byte, error) {
	return c.do(http.MethodPost, workspacesPath(projectID), map[string]string{"name": name})
}

// DeleteWorkspace removes a workspace, its worktree and its branch.
func (c *Client) DeleteWorkspace(projectID, workspaceID string) error {
	_, err := c.do(http.MethodDelete, workspacesPath(projectID)+"/"+url.PathEscape(workspaceID), nil)
	return err
}

// ChangedFiles fetches the current changed-file set of a workspace.
func (c *Client) ChangedFiles(projectID, workspaceID string) ([]byte, error) {
	return c.do(http.MethodGet, workspacesPath(projectID)+"/"+url.PathEscape(workspaceID)+"/changes", nil)
}

// Watch streams event envelopes over the websocket endpoint, calling fn for
// each, until ctx ends, the server closes the stream or fn returns an error.
// An empty workspaceID streams every workspace.
func (c *Client) Watch(ctx context.Context, workspaceID string, fn func(events.Envelope) error) error {
	wsURL, err := c.wsURL(workspaceID)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to shellflow: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()

	for {
		var env events.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("event stream: %w", err)
		}
		if err := fn(env); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return err
		}
	}
}

func (c *Client) wsURL(workspaceID string) (string, error) {
	u, err := url.Parse(c.baseURL + "/api/ws")
	if err != nil {
		return "", fmt.Errorf("invalid instance URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if workspaceID != "" {
		u.RawQuery = url.Values{"workspace": {workspaceID}}.Encode()
	}
	return u.String(), nil
}

func workspacesPath(projectID string) string {
	return "/api/projects/" + url.PathEscape(projectID) + "/workspaces"
}

// do sends a request with an optional JSON body and returns the response
// body. Non-2xx responses become errors carrying the server's message.
func (c *Client) do(method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to shellflow: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Message: extractErrorMessage(respBody)}
	}
	return respBody, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shellflow returned status %d: %s", e.Code, e.Message)
}

// extractErrorMessage attempts to extract the error message from a JSON response body.
// If the body is not valid JSON or doesn't have an "error" field, returns the raw body string.
func extractErrorMessage(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return strings.TrimSpace(string(body))
}
