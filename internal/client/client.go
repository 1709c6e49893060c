// Package client speaks to the session backend: JSON commands over HTTP
// and a push event stream over a websocket. It owns no state beyond the
// connection details; callers apply responses to the store.
package client

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

	"github.com/nurdwerks/jules-interface/internal/types"
)

const defaultBaseURL = "http://127.0.0.1:3000"

type Client struct {
	baseURL string
	wsURL   string
	apiKey  string
	http    *http.Client
}

func New(baseURL, wsURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if wsURL == "" {
		wsURL = "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	}
	return &Client{
		baseURL: baseURL,
		wsURL:   wsURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) ListSessions(ctx context.Context) ([]*types.Session, error) {
	var resp SessionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) GetSession(ctx context.Context, name string) (*types.Session, error) {
	var session types.Session
	path := "/sessions/" + types.ShortSessionID(name)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) GetActivities(ctx context.Context, name string) ([]*types.Activity, error) {
	var resp ActivitiesResponse
	path := fmt.Sprintf("/sessions/%s/activities", types.ShortSessionID(name))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Activities, nil
}

func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*types.Session, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}
	var session types.Session
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) SendMessage(ctx context.Context, name, prompt string) error {
	path := fmt.Sprintf("/sessions/%s/sendMessage", types.ShortSessionID(name))
	return c.doJSON(ctx, http.MethodPost, path, SendMessageRequest{Prompt: prompt}, nil)
}

func (c *Client) ApprovePlan(ctx context.Context, name string) error {
	path := fmt.Sprintf("/sessions/%s/approvePlan", types.ShortSessionID(name))
	return c.doJSON(ctx, http.MethodPost, path, struct{}{}, nil)
}

func (c *Client) RefreshSession(ctx context.Context, name string) error {
	path := fmt.Sprintf("/sessions/%s/refresh", types.ShortSessionID(name))
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) ListSources(ctx context.Context) ([]*types.Source, error) {
	var resp SourcesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sources", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// The backend serves two error shapes: its own routes return
// {"error":"..."} while proxied upstream failures arrive as
// {"error":{"message":"..."}}.
func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if len(payload.Error) > 0 {
		var msg string
		if err := json.Unmarshal(payload.Error, &msg); err == nil && msg != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: msg}
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: nested.Message}
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
