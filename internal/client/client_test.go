package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nurdwerks/jules-interface/internal/types"
)

func newTestClient(serverURL string) *Client {
	return New(serverURL, "ws://unused/ws", "")
}

func sourceContext(source, branch string) *types.SourceContext {
	return &types.SourceContext{
		Source:            source,
		GitHubRepoContext: &types.GitHubRepoContext{StartingBranch: branch},
	}
}

func TestClientListSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sessions":[{"name":"sessions/1","prompt":"p","state":"QUEUED","createTime":"2026-01-02T03:04:05Z","updateTime":"2026-01-02T03:04:05Z"}]}`))
	}))
	defer server.Close()

	sessions, err := newTestClient(server.URL).ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Name != "sessions/1" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestClientActionRoutesUseShortID(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	ctx := context.Background()
	if err := c.SendMessage(ctx, "sessions/abc", "hello"); err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}
	if err := c.ApprovePlan(ctx, "sessions/abc"); err != nil {
		t.Fatalf("ApprovePlan error: %v", err)
	}
	if err := c.RefreshSession(ctx, "sessions/abc"); err != nil {
		t.Fatalf("RefreshSession error: %v", err)
	}
	if _, err := c.GetActivities(ctx, "sessions/abc"); err != nil {
		t.Fatalf("GetActivities error: %v", err)
	}

	want := []string{
		"POST /sessions/abc/sendMessage",
		"POST /sessions/abc/approvePlan",
		"POST /sessions/abc/refresh",
		"GET /sessions/abc/activities",
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("route %d: got %s want %s", i, paths[i], want[i])
		}
	}
}

func TestClientCreateSessionSendsSourceContext(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"sessions/new","id":"new","prompt":"do it","state":"QUEUED","createTime":"2026-01-02T03:04:05Z","updateTime":"2026-01-02T03:04:05Z"}`))
	}))
	defer server.Close()

	req := CreateSessionRequest{Prompt: "do it"}
	req.SourceContext = sourceContext("sources/github/example/repo", "main")
	session, err := newTestClient(server.URL).CreateSession(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if session.Name != "sessions/new" {
		t.Fatalf("unexpected session: %+v", session)
	}
	sc, ok := body["sourceContext"].(map[string]any)
	if !ok || sc["source"] != "sources/github/example/repo" {
		t.Fatalf("source context not sent: %v", body)
	}
	repo, ok := sc["githubRepoContext"].(map[string]any)
	if !ok || repo["startingBranch"] != "main" {
		t.Fatalf("starting branch not sent: %v", sc)
	}
}

func TestClientCreateSessionRequiresPrompt(t *testing.T) {
	if _, err := newTestClient("http://127.0.0.1:0").CreateSession(context.Background(), CreateSessionRequest{}); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}

func TestDecodeAPIErrorShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"plain string", `{"error":"Not found"}`, "Not found"},
		{"nested message", `{"error":{"message":"quota exceeded"}}`, "quota exceeded"},
		{"garbage", `<html>`, "500 Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).ListSessions(context.Background())
			apiErr := AsAPIError(err)
			if apiErr == nil {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Message != tc.want {
				t.Fatalf("got %q want %q", apiErr.Message, tc.want)
			}
		})
	}
}

func TestClientSendsAPIKeyHeader(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Goog-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sessions":[]}`))
	}))
	defer server.Close()

	c := New(server.URL, "ws://unused/ws", "key-123")
	if _, err := c.ListSessions(context.Background()); err != nil {
		t.Fatalf("ListSessions error: %v", err)
	}
	if gotKey != "key-123" {
		t.Fatalf("api key header not sent, got %q", gotKey)
	}
}
