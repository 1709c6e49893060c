// Package view derives presentation state from the session store:
// the filtered, ordered sidebar list and the plan-approval status of a
// timeline. Everything here is pure and cheap enough for the UI path.
package view

import (
	"sort"
	"sync"
	"time"

	"github.com/nurdwerks/jules-interface/internal/types"
)

// SourceAll is the sentinel for "no source filter".
const SourceAll = "all"

// RecentWindow bounds the recency filter; a session updated exactly this
// long ago is already excluded.
const RecentWindow = 24 * time.Hour

type FilterState struct {
	RecentOnly bool
	Source     string
}

func DefaultFilterState() FilterState {
	return FilterState{RecentOnly: true, Source: SourceAll}
}

func (f FilterState) matchesSource(session *types.Session) bool {
	if f.Source == "" || f.Source == SourceAll {
		return true
	}
	if session.SourceContext == nil {
		return false
	}
	return session.SourceContext.Source == f.Source
}

// VisibleSessions filters and orders sessions for the sidebar. The order
// is always updateTime descending with name ascending on ties; recency is
// purely a filter, so toggling it never reorders surviving entries.
func VisibleSessions(sessions []*types.Session, filter FilterState, now time.Time) []*types.Session {
	out := make([]*types.Session, 0, len(sessions))
	for _, session := range sessions {
		if session == nil || !filter.matchesSource(session) {
			continue
		}
		if filter.RecentOnly && now.Sub(session.UpdateTime) >= RecentWindow {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdateTime.Equal(out[j].UpdateTime) {
			return out[i].UpdateTime.After(out[j].UpdateTime)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Engine memoizes the last computed view until the store version or the
// filter state changes.
type Engine struct {
	mu            sync.Mutex
	cached        []*types.Session
	cachedVersion uint64
	cachedFilter  FilterState
	valid         bool
}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) View(sessions []*types.Session, version uint64, filter FilterState, now time.Time) []*types.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.valid && e.cachedVersion == version && e.cachedFilter == filter {
		return e.cached
	}
	e.cached = VisibleSessions(sessions, filter, now)
	e.cachedVersion = version
	e.cachedFilter = filter
	e.valid = true
	return e.cached
}

func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.valid = false
}
