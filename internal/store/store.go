// Package store holds the client's in-memory authoritative view of
// sessions and their activity timelines. It is mutated only by sync
// events and local optimistic writes; it performs no I/O of its own.
package store

import (
	"sort"
	"sync"

	"github.com/nurdwerks/jules-interface/internal/types"
)

type Store struct {
	mu         sync.Mutex
	sessions   map[string]*types.Session
	activities map[string][]*types.Activity
	seen       map[string]map[string]struct{}
	version    uint64
	subs       []chan struct{}
}

func New() *Store {
	return &Store{
		sessions:   map[string]*types.Session{},
		activities: map[string][]*types.Activity{},
		seen:       map[string]map[string]struct{}{},
	}
}

// UpsertSession inserts or merges a session record by name. Fields the
// caller did not supply keep their current values, and UpdateTime never
// moves backwards.
func (s *Store) UpsertSession(record *types.Session) {
	if record == nil || record.Name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := record.Clone()
	existing, ok := s.sessions[incoming.Name]
	if !ok {
		if incoming.UpdateTime.Before(incoming.CreateTime) {
			incoming.UpdateTime = incoming.CreateTime
		}
		s.sessions[incoming.Name] = incoming
		s.bumpLocked()
		return
	}

	merged := existing.Clone()
	if incoming.ID != "" {
		merged.ID = incoming.ID
	}
	if incoming.Prompt != "" {
		merged.Prompt = incoming.Prompt
	}
	if incoming.State != "" {
		merged.State = incoming.State
	}
	if !incoming.CreateTime.IsZero() {
		merged.CreateTime = incoming.CreateTime
	}
	if incoming.UpdateTime.After(merged.UpdateTime) {
		merged.UpdateTime = incoming.UpdateTime
	}
	if incoming.SourceContext != nil {
		merged.SourceContext = incoming.SourceContext
	}
	merged.Pending = incoming.Pending
	if merged.UpdateTime.Before(merged.CreateTime) {
		merged.UpdateTime = merged.CreateTime
	}
	s.sessions[merged.Name] = merged
	s.bumpLocked()
}

// RemoveSession drops a session and its timeline. Only optimistic
// placeholders are ever removed; confirmed sessions stay for their
// whole life and are retired through State instead.
func (s *Store) RemoveSession(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[name]; !ok {
		return
	}
	delete(s.sessions, name)
	delete(s.activities, name)
	delete(s.seen, name)
	s.bumpLocked()
}

// AppendActivity adds an activity to a session's timeline, keeping the
// timeline ordered by timestamp with arrival order on ties. Delivering
// the same activity twice (same kind, timestamp and payload) is a no-op.
// An authoritative copy of a Local optimistic append replaces it in
// place even when the backend stamped a different time. Reports whether
// the timeline changed.
func (s *Store) AppendActivity(sessionName string, activity *types.Activity) bool {
	if sessionName == "" || activity == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	identity := activity.Identity()
	seen, ok := s.seen[sessionName]
	if !ok {
		seen = map[string]struct{}{}
		s.seen[sessionName] = seen
	}
	if _, dup := seen[identity]; dup {
		return false
	}

	entry := *activity
	timeline := s.activities[sessionName]

	if !entry.Local {
		// The authoritative echo of an optimistic append replaces it;
		// drop the local copy, then insert at the echo's timestamp.
		if idx := s.localMatchLocked(timeline, &entry); idx >= 0 {
			delete(seen, timeline[idx].Identity())
			timeline = append(timeline[:idx], timeline[idx+1:]...)
		}
	}

	// Binary search keeps ties in arrival order: insert after the last
	// entry with an equal timestamp.
	pos := sort.Search(len(timeline), func(i int) bool {
		return timeline[i].CreateTime.After(entry.CreateTime)
	})
	timeline = append(timeline, nil)
	copy(timeline[pos+1:], timeline[pos:])
	timeline[pos] = &entry
	s.activities[sessionName] = timeline
	seen[identity] = struct{}{}
	s.bumpLocked()
	return true
}

func (s *Store) localMatchLocked(timeline []*types.Activity, incoming *types.Activity) int {
	key := incoming.PayloadKey()
	for i, existing := range timeline {
		if existing.Local && existing.PayloadKey() == key {
			return i
		}
	}
	return -1
}

// RemoveActivity rolls back an optimistic append by identity.
func (s *Store) RemoveActivity(sessionName, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	timeline := s.activities[sessionName]
	for i, existing := range timeline {
		if existing.Identity() == identity {
			s.activities[sessionName] = append(timeline[:i], timeline[i+1:]...)
			delete(s.seen[sessionName], identity)
			s.bumpLocked()
			return
		}
	}
}

func (s *Store) Sessions() []*types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) Session(name string) (*types.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[name]
	if !ok {
		return nil, false
	}
	return session.Clone(), true
}

// SessionByShortID resolves a route id ("mock-session-123") back to the
// stored record; push events for activities identify sessions this way.
func (s *Store) SessionByShortID(id string) (*types.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.ShortID() == id {
			return session.Clone(), true
		}
	}
	return nil, false
}

func (s *Store) Activities(sessionName string) []*types.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	timeline := s.activities[sessionName]
	out := make([]*types.Activity, len(timeline))
	for i, activity := range timeline {
		entry := *activity
		out[i] = &entry
	}
	return out
}

// Version increases on every mutation; consumers compare it against the
// version of their last computed view to decide whether to recompute.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Subscribe returns a coalesced change notification channel: at most one
// pending signal regardless of how many mutations occurred.
func (s *Store) Subscribe() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Store) bumpLocked() {
	s.version++
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
