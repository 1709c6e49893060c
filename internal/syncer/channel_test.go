package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nurdwerks/jules-interface/internal/client"
	"github.com/nurdwerks/jules-interface/internal/logging"
	"github.com/nurdwerks/jules-interface/internal/store"
	"github.com/nurdwerks/jules-interface/internal/types"
	"github.com/nurdwerks/jules-interface/internal/view"
)

type stubAPI struct {
	mu                sync.Mutex
	calls             []string
	sessions          []*types.Session
	session           *types.Session
	activities        map[string][]*types.Activity
	activityDeadlines []time.Time
	listDeadline      time.Time
	listDelay         time.Duration
	createErr         error
	sendErr           error
	approveErr        error
	refreshErr        error
	getErr            error
	created           *types.Session
}

func newStubAPI() *stubAPI {
	return &stubAPI{activities: map[string][]*types.Activity{}}
}

func (a *stubAPI) record(call string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
}

func (a *stubAPI) callLog() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.calls...)
}

func (a *stubAPI) ListSessions(ctx context.Context) ([]*types.Session, error) {
	a.record("list")
	if deadline, ok := ctx.Deadline(); ok {
		a.mu.Lock()
		a.listDeadline = deadline
		a.mu.Unlock()
	}
	if a.listDelay > 0 {
		time.Sleep(a.listDelay)
	}
	return a.sessions, nil
}

func (a *stubAPI) GetSession(ctx context.Context, name string) (*types.Session, error) {
	a.record("get " + name)
	if a.getErr != nil {
		return nil, a.getErr
	}
	return a.session, nil
}

func (a *stubAPI) GetActivities(ctx context.Context, name string) ([]*types.Activity, error) {
	a.record("activities " + name)
	if deadline, ok := ctx.Deadline(); ok {
		a.mu.Lock()
		a.activityDeadlines = append(a.activityDeadlines, deadline)
		a.mu.Unlock()
	}
	return a.activities[name], nil
}

func (a *stubAPI) CreateSession(ctx context.Context, req client.CreateSessionRequest) (*types.Session, error) {
	a.record("create")
	if a.createErr != nil {
		return nil, a.createErr
	}
	return a.created, nil
}

func (a *stubAPI) SendMessage(ctx context.Context, name, prompt string) error {
	a.record("send " + name)
	return a.sendErr
}

func (a *stubAPI) ApprovePlan(ctx context.Context, name string) error {
	a.record("approve " + name)
	return a.approveErr
}

func (a *stubAPI) RefreshSession(ctx context.Context, name string) error {
	a.record("refresh " + name)
	return a.refreshErr
}

func (a *stubAPI) Events(ctx context.Context, log logging.Logger) (<-chan types.StreamEvent, func(), error) {
	a.record("events")
	ch := make(chan types.StreamEvent)
	close(ch)
	return ch, func() {}, nil
}

func newTestChannel(api API) (*Channel, *store.Store) {
	st := store.New()
	return New(api, st, logging.Nop()), st
}

func TestCreateSessionFailureLeavesListUnchanged(t *testing.T) {
	api := newStubAPI()
	api.createErr = &client.APIError{StatusCode: 400, Message: "no source"}
	c, st := newTestChannel(api)

	now := time.Now().UTC()
	st.UpsertSession(&types.Session{Name: "sessions/1", CreateTime: now, UpdateTime: now})
	before := len(st.Sessions())

	_, err := c.CreateSession(context.Background(), "do the thing", "sources/github/example/repo", "main")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if got := len(st.Sessions()); got != before {
		t.Fatalf("session list changed after failed create: %d != %d", got, before)
	}
}

func TestCreateSessionReplacesPlaceholderWithAuthoritativeRecord(t *testing.T) {
	api := newStubAPI()
	now := time.Now().UTC()
	api.created = &types.Session{
		Name:       "sessions/real-1",
		ID:         "real-1",
		Prompt:     "do the thing",
		State:      types.SessionStateQueued,
		CreateTime: now,
		UpdateTime: now,
	}
	c, st := newTestChannel(api)

	session, err := c.CreateSession(context.Background(), "do the thing", "sources/github/example/repo", "")
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if session.Name != "sessions/real-1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	sessions := st.Sessions()
	if len(sessions) != 1 || sessions[0].Name != "sessions/real-1" || sessions[0].Pending {
		t.Fatalf("placeholder not replaced: %+v", sessions)
	}
}

func TestSendMessageOptimisticThenEchoStaysSingle(t *testing.T) {
	api := newStubAPI()
	c, st := newTestChannel(api)
	now := time.Now().UTC()
	st.UpsertSession(&types.Session{Name: "sessions/1", ID: "1", CreateTime: now, UpdateTime: now})

	if err := c.SendMessage(context.Background(), "sessions/1", "hello there"); err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}
	if got := st.Activities("sessions/1"); len(got) != 1 {
		t.Fatalf("expected one visible message immediately, got %d", len(got))
	}

	// Backend echoes the message with its own name and timestamp.
	c.Apply(types.StreamEvent{
		Type:      types.StreamEventActivitiesUpdate,
		SessionID: "1",
		Activities: []*types.Activity{{
			Name:         "sessions/1/activities/1",
			CreateTime:   now.Add(time.Second),
			UserMessaged: &types.UserMessaged{UserMessage: "hello there"},
		}},
	})

	got := st.Activities("sessions/1")
	if len(got) != 1 {
		t.Fatalf("echo duplicated the message: %d entries", len(got))
	}
	if got[0].Local || got[0].Name != "sessions/1/activities/1" {
		t.Fatalf("echo should replace the optimistic entry: %+v", got[0])
	}
}

func TestSendMessageFailureRollsBack(t *testing.T) {
	api := newStubAPI()
	api.sendErr = &client.APIError{StatusCode: 500, Message: "backend down"}
	c, st := newTestChannel(api)
	now := time.Now().UTC()
	st.UpsertSession(&types.Session{Name: "sessions/1", CreateTime: now, UpdateTime: now})

	err := c.SendMessage(context.Background(), "sessions/1", "will fail")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := st.Activities("sessions/1"); len(got) != 0 {
		t.Fatalf("optimistic message not rolled back: %d entries", len(got))
	}
}

func TestApprovePlanHidesAffordanceImmediately(t *testing.T) {
	api := newStubAPI()
	c, st := newTestChannel(api)
	now := time.Now().UTC()
	st.UpsertSession(&types.Session{Name: "sessions/1", CreateTime: now, UpdateTime: now})
	st.AppendActivity("sessions/1", &types.Activity{
		CreateTime:    now,
		PlanGenerated: &types.PlanGenerated{Plan: &types.Plan{ID: "plan-1"}},
	})
	if !view.ApprovalVisible(st.Activities("sessions/1")) {
		t.Fatalf("precondition: affordance should be visible")
	}

	if err := c.ApprovePlan(context.Background(), "sessions/1"); err != nil {
		t.Fatalf("ApprovePlan error: %v", err)
	}
	if view.ApprovalVisible(st.Activities("sessions/1")) {
		t.Fatalf("affordance should disappear on optimistic approval")
	}
}

func TestApprovePlanFailureRestoresAffordance(t *testing.T) {
	api := newStubAPI()
	api.approveErr = &client.APIError{StatusCode: 409, Message: "already decided"}
	c, st := newTestChannel(api)
	now := time.Now().UTC()
	st.UpsertSession(&types.Session{Name: "sessions/1", CreateTime: now, UpdateTime: now})
	st.AppendActivity("sessions/1", &types.Activity{
		CreateTime:    now,
		PlanGenerated: &types.PlanGenerated{Plan: &types.Plan{ID: "plan-1"}},
	})

	if err := c.ApprovePlan(context.Background(), "sessions/1"); err == nil {
		t.Fatalf("expected error")
	}
	if !view.ApprovalVisible(st.Activities("sessions/1")) {
		t.Fatalf("rejected approval must roll back to proposed")
	}
}

func TestApplySessionUpdateUpserts(t *testing.T) {
	api := newStubAPI()
	c, st := newTestChannel(api)
	now := time.Now().UTC()

	c.Apply(types.StreamEvent{
		Type: types.StreamEventSessionUpdate,
		Session: &types.Session{
			Name:       "sessions/1",
			State:      types.SessionStateInProgress,
			CreateTime: now,
			UpdateTime: now,
		},
	})
	got, ok := st.Session("sessions/1")
	if !ok || got.State != types.SessionStateInProgress {
		t.Fatalf("session update not applied: %+v", got)
	}

	// Unknown event types are dropped without effect.
	before := st.Version()
	c.Apply(types.StreamEvent{Type: "somethingNew"})
	if st.Version() != before {
		t.Fatalf("unknown event mutated the store")
	}
}

func TestRefreshAppliesIdempotentUpserts(t *testing.T) {
	api := newStubAPI()
	c, st := newTestChannel(api)
	now := time.Now().UTC()
	st.UpsertSession(&types.Session{Name: "sessions/1", CreateTime: now, UpdateTime: now})
	existing := &types.Activity{
		CreateTime:   now,
		UserMessaged: &types.UserMessaged{UserMessage: "already here"},
	}
	st.AppendActivity("sessions/1", existing)
	api.activities["sessions/1"] = []*types.Activity{
		existing,
		{
			CreateTime:    now.Add(time.Minute),
			AgentMessaged: &types.AgentMessaged{AgentMessage: "new reply"},
		},
	}

	if err := c.Refresh(context.Background(), "sessions/1"); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	got := st.Activities("sessions/1")
	if len(got) != 2 {
		t.Fatalf("expected 2 activities after refresh, got %d", len(got))
	}
}

func TestLoadTimelineFetchesSessionAndActivities(t *testing.T) {
	api := newStubAPI()
	now := time.Now().UTC()
	api.session = &types.Session{
		Name:       "sessions/1",
		Prompt:     "do the thing",
		State:      types.SessionStateInProgress,
		CreateTime: now,
		UpdateTime: now.Add(time.Minute),
	}
	api.activities["sessions/1"] = []*types.Activity{{
		CreateTime:    now,
		AgentMessaged: &types.AgentMessaged{AgentMessage: "working on it"},
	}}
	c, st := newTestChannel(api)

	if err := c.LoadTimeline(context.Background(), "sessions/1"); err != nil {
		t.Fatalf("LoadTimeline error: %v", err)
	}
	session, ok := st.Session("sessions/1")
	if !ok || session.State != types.SessionStateInProgress {
		t.Fatalf("session record not refreshed: %+v", session)
	}
	if got := st.Activities("sessions/1"); len(got) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(got))
	}

	// Loading again re-delivers the same activity; the store absorbs it.
	if err := c.LoadTimeline(context.Background(), "sessions/1"); err != nil {
		t.Fatalf("second LoadTimeline error: %v", err)
	}
	if got := st.Activities("sessions/1"); len(got) != 1 {
		t.Fatalf("repeat load duplicated the timeline: %d entries", len(got))
	}
}

func TestLoadTimelineFailureSurfacesCommandError(t *testing.T) {
	api := newStubAPI()
	api.getErr = &client.APIError{StatusCode: 404, Message: "not found"}
	c, st := newTestChannel(api)

	err := c.LoadTimeline(context.Background(), "sessions/missing")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if len(st.Sessions()) != 0 {
		t.Fatalf("failed load must not touch the store")
	}
}

func TestResyncUsesFreshTimeoutPerRequest(t *testing.T) {
	api := newStubAPI()
	api.listDelay = 10 * time.Millisecond
	c, st := newTestChannel(api)
	now := time.Now().UTC()
	for _, name := range []string{"sessions/1", "sessions/2"} {
		st.UpsertSession(&types.Session{Name: name, CreateTime: now, UpdateTime: now})
		st.AppendActivity(name, &types.Activity{
			CreateTime:   now,
			UserMessaged: &types.UserMessaged{UserMessage: "seed " + name},
		})
	}

	if err := c.Resync(context.Background()); err != nil {
		t.Fatalf("Resync error: %v", err)
	}
	if len(api.activityDeadlines) != 2 {
		t.Fatalf("expected 2 timeline fetches, got %d", len(api.activityDeadlines))
	}
	// Each timeline fetch must carry its own deadline, set after the list
	// call returned, not the remainder of a budget shared with it.
	for i, deadline := range api.activityDeadlines {
		if !deadline.After(api.listDeadline) {
			t.Fatalf("fetch %d reused the list deadline: %v <= %v", i, deadline, api.listDeadline)
		}
	}
}

func TestRunResyncsBeforeTrustingStream(t *testing.T) {
	api := newStubAPI()
	c, _ := newTestChannel(api)
	c.retry = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		calls := api.callLog()
		listSeen := 0
		ordered := true
		for _, call := range calls {
			if call == "list" {
				listSeen++
			}
			if call == "events" && listSeen == 0 {
				ordered = false
			}
		}
		if listSeen >= 2 && ordered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated resync-then-stream cycles, got %v", calls)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}
