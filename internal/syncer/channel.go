// Package syncer owns the single channel to the backend: it applies push
// deltas to the store and funnels every outbound command through one
// place, with optimistic local writes rolled back on failure.
package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nurdwerks/jules-interface/internal/client"
	"github.com/nurdwerks/jules-interface/internal/logging"
	"github.com/nurdwerks/jules-interface/internal/store"
	"github.com/nurdwerks/jules-interface/internal/types"
	"github.com/nurdwerks/jules-interface/internal/view"
)

const (
	commandTimeout = 4 * time.Second
	reconnectDelay = 3 * time.Second
)

// API is the slice of the backend client the channel needs.
type API interface {
	ListSessions(ctx context.Context) ([]*types.Session, error)
	GetSession(ctx context.Context, name string) (*types.Session, error)
	GetActivities(ctx context.Context, name string) ([]*types.Activity, error)
	CreateSession(ctx context.Context, req client.CreateSessionRequest) (*types.Session, error)
	SendMessage(ctx context.Context, name, prompt string) error
	ApprovePlan(ctx context.Context, name string) error
	RefreshSession(ctx context.Context, name string) error
	Events(ctx context.Context, log logging.Logger) (<-chan types.StreamEvent, func(), error)
}

type Channel struct {
	api     API
	store   *store.Store
	log     logging.Logger
	timeout time.Duration
	retry   time.Duration
}

func New(api API, st *store.Store, log logging.Logger) *Channel {
	if log == nil {
		log = logging.Nop()
	}
	return &Channel{
		api:     api,
		store:   st,
		log:     log,
		timeout: commandTimeout,
		retry:   reconnectDelay,
	}
}

// Run keeps the event stream alive until ctx is cancelled. Deltas missed
// while disconnected are silently lost, so every (re)connect resyncs
// before trusting the stream again.
func (c *Channel) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Resync(ctx); err != nil {
			c.log.Warn("resync failed", logging.F("err", err))
			if !c.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		events, cancel, err := c.api.Events(ctx, c.log)
		if err != nil {
			c.log.Warn("event stream unavailable", logging.F("err", err))
			if !c.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		c.consume(ctx, events)
		cancel()
		c.log.Info("event stream closed, reconnecting")
		if !c.sleep(ctx) {
			return ctx.Err()
		}
	}
}

func (c *Channel) consume(ctx context.Context, events <-chan types.StreamEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.Apply(event)
		}
	}
}

// Apply folds one push event into the store. Events for a session arrive
// and apply in order; the store's idempotence absorbs duplicates.
func (c *Channel) Apply(event types.StreamEvent) {
	switch event.Type {
	case types.StreamEventSessionUpdate:
		if event.Session == nil {
			c.log.Warn("session update without session")
			return
		}
		c.store.UpsertSession(event.Session)
	case types.StreamEventActivitiesUpdate:
		name := "sessions/" + event.SessionID
		if session, ok := c.store.SessionByShortID(event.SessionID); ok {
			name = session.Name
		}
		for _, activity := range event.Activities {
			c.store.AppendActivity(name, activity)
		}
	default:
		c.log.Warn("dropping unknown event", logging.F("type", event.Type))
	}
}

// Resync pulls the full session list and the timelines we already track.
// Each request runs under its own timeout so a long tail of tracked
// timelines cannot starve the later fetches.
func (c *Channel) Resync(ctx context.Context) error {
	sessions, err := c.listSessions(ctx)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		c.store.UpsertSession(session)
	}
	for _, session := range c.store.Sessions() {
		if session.Pending || len(c.store.Activities(session.Name)) == 0 {
			continue
		}
		activities, err := c.getActivities(ctx, session.Name)
		if err != nil {
			c.log.Warn("activity resync failed",
				logging.F("session", session.Name), logging.F("err", err))
			continue
		}
		for _, activity := range activities {
			c.store.AppendActivity(session.Name, activity)
		}
	}
	return nil
}

func (c *Channel) listSessions(ctx context.Context) ([]*types.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.api.ListSessions(ctx)
}

func (c *Channel) getActivities(ctx context.Context, name string) ([]*types.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.api.GetActivities(ctx, name)
}

// CreateSession inserts an optimistic placeholder keyed by a client
// correlation token, then swaps in the authoritative record. The server
// assigns the real name, so the placeholder is matched by token alone.
func (c *Channel) CreateSession(ctx context.Context, prompt, source, branch string) (*types.Session, error) {
	token := uuid.NewString()
	now := time.Now().UTC()
	provisional := &types.Session{
		Name:       "pending/" + token,
		Prompt:     prompt,
		State:      types.SessionStateQueued,
		CreateTime: now,
		UpdateTime: now,
		Pending:    true,
	}
	req := client.CreateSessionRequest{Prompt: prompt}
	if source != "" {
		sc := &types.SourceContext{Source: source}
		if branch != "" {
			sc.GitHubRepoContext = &types.GitHubRepoContext{StartingBranch: branch}
		}
		provisional.SourceContext = sc
		req.SourceContext = sc
	}
	c.store.UpsertSession(provisional)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	session, err := c.api.CreateSession(ctx, req)
	if err != nil {
		c.store.RemoveSession(provisional.Name)
		return nil, &CommandError{Op: "create session", Err: err}
	}
	c.store.RemoveSession(provisional.Name)
	c.store.UpsertSession(session)
	return session, nil
}

// SendMessage appends the message locally first; the backend's echo
// collapses onto it instead of duplicating (store reconciliation).
func (c *Channel) SendMessage(ctx context.Context, name, text string) error {
	activity := &types.Activity{
		CreateTime:   time.Now().UTC(),
		UserMessaged: &types.UserMessaged{UserMessage: text},
		Local:        true,
	}
	c.store.AppendActivity(name, activity)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.api.SendMessage(ctx, name, text); err != nil {
		c.store.RemoveActivity(name, activity.Identity())
		return &CommandError{Op: "send message", Err: err}
	}
	return nil
}

// ApprovePlan optimistically records the approval, hiding the affordance
// immediately, and rolls back to proposed if the backend declines.
func (c *Channel) ApprovePlan(ctx context.Context, name string) error {
	planID := ""
	if state := view.LatestPlan(c.store.Activities(name)); state != nil &&
		state.Plan.PlanGenerated != nil && state.Plan.PlanGenerated.Plan != nil {
		planID = state.Plan.PlanGenerated.Plan.ID
	}
	activity := &types.Activity{
		CreateTime:   time.Now().UTC(),
		PlanApproved: &types.PlanApproved{PlanID: planID},
		Local:        true,
	}
	c.store.AppendActivity(name, activity)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.api.ApprovePlan(ctx, name); err != nil {
		c.store.RemoveActivity(name, activity.Identity())
		return &CommandError{Op: "approve plan", Err: err}
	}
	return nil
}

// Refresh asks the backend to re-pull the session upstream, then applies
// the full activity list as idempotent upserts.
func (c *Channel) Refresh(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.api.RefreshSession(ctx, name); err != nil {
		return &CommandError{Op: "refresh session", Err: err}
	}
	activities, err := c.api.GetActivities(ctx, name)
	if err != nil {
		return &CommandError{Op: "refresh session", Err: err}
	}
	for _, activity := range activities {
		c.store.AppendActivity(name, activity)
	}
	return nil
}

// LoadTimeline fetches a session's current record and activity list on
// demand, typically when the user first opens the session. The session
// fetch keeps the detail header fresh even when no push event has
// arrived since the last list sync.
func (c *Channel) LoadTimeline(ctx context.Context, name string) error {
	session, err := c.getSession(ctx, name)
	if err != nil {
		return &CommandError{Op: "load timeline", Err: err}
	}
	c.store.UpsertSession(session)
	activities, err := c.getActivities(ctx, name)
	if err != nil {
		return &CommandError{Op: "load timeline", Err: err}
	}
	for _, activity := range activities {
		c.store.AppendActivity(name, activity)
	}
	return nil
}

func (c *Channel) getSession(ctx context.Context, name string) (*types.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.api.GetSession(ctx, name)
}

func (c *Channel) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retry):
		return true
	}
}
