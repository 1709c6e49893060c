package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nurdwerks/jules-interface/internal/logging"
	"github.com/nurdwerks/jules-interface/internal/types"
)

func streamServer(t *testing.T, frames []string) (*Client, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Hold the connection open briefly so the reader drains the frames.
		time.Sleep(200 * time.Millisecond)
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	return New(server.URL, wsURL, ""), server.Close
}

func TestEventsDeliversSessionAndActivityUpdates(t *testing.T) {
	frames := []string{
		`{"type":"sessionUpdate","session":{"name":"sessions/1","state":"IN_PROGRESS","createTime":"2026-01-02T03:04:05Z","updateTime":"2026-01-02T03:05:05Z"}}`,
		`{"type":"activitiesUpdate","sessionId":"1","activities":[{"createTime":"2026-01-02T03:05:00Z","agentMessaged":{"agentMessage":"working"}}]}`,
	}
	c, closeServer := streamServer(t, frames)
	defer closeServer()

	events, cancel, err := c.Events(context.Background(), logging.Nop())
	if err != nil {
		t.Fatalf("Events error: %v", err)
	}
	defer cancel()

	first := recvEvent(t, events)
	if first.Type != types.StreamEventSessionUpdate || first.Session == nil || first.Session.Name != "sessions/1" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	second := recvEvent(t, events)
	if second.Type != types.StreamEventActivitiesUpdate || second.SessionID != "1" {
		t.Fatalf("unexpected second event: %+v", second)
	}
	if len(second.Activities) != 1 || second.Activities[0].AgentMessaged == nil {
		t.Fatalf("activities not decoded: %+v", second.Activities)
	}
}

func TestEventsDropsMalformedFrames(t *testing.T) {
	frames := []string{
		`this is not json`,
		`{"no_type_field":true}`,
		`{"type":"sessionUpdate","session":{"name":"sessions/2","createTime":"2026-01-02T03:04:05Z","updateTime":"2026-01-02T03:04:05Z"}}`,
	}
	c, closeServer := streamServer(t, frames)
	defer closeServer()

	events, cancel, err := c.Events(context.Background(), logging.Nop())
	if err != nil {
		t.Fatalf("Events error: %v", err)
	}
	defer cancel()

	got := recvEvent(t, events)
	if got.Type != types.StreamEventSessionUpdate || got.Session == nil || got.Session.Name != "sessions/2" {
		t.Fatalf("malformed frames should be skipped, got %+v", got)
	}
}

func TestEventsChannelClosesOnDisconnect(t *testing.T) {
	c, closeServer := streamServer(t, nil)
	defer closeServer()

	events, cancel, err := c.Events(context.Background(), logging.Nop())
	if err != nil {
		t.Fatalf("Events error: %v", err)
	}
	defer cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("channel did not close after server disconnect")
		}
	}
}

func recvEvent(t *testing.T, events <-chan types.StreamEvent) types.StreamEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		if !ok {
			t.Fatalf("event channel closed early")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return types.StreamEvent{}
	}
}
