package types

import "time"

type SessionState string

const (
	SessionStateQueued           SessionState = "QUEUED"
	SessionStatePlanning         SessionState = "PLANNING"
	SessionStateAwaitingApproval SessionState = "AWAITING_PLAN_APPROVAL"
	SessionStateInProgress       SessionState = "IN_PROGRESS"
	SessionStateCompleted        SessionState = "COMPLETED"
	SessionStateFailed           SessionState = "FAILED"
)

// Session is the backend's unit of work. Name is the primary key
// (server-assigned, "sessions/<id>"); Pending marks a local optimistic
// placeholder that has not been confirmed by the backend yet.
type Session struct {
	Name          string         `json:"name"`
	ID            string         `json:"id,omitempty"`
	Prompt        string         `json:"prompt,omitempty"`
	State         SessionState   `json:"state,omitempty"`
	CreateTime    time.Time      `json:"createTime"`
	UpdateTime    time.Time      `json:"updateTime"`
	SourceContext *SourceContext `json:"sourceContext,omitempty"`
	Pending       bool           `json:"-"`
}

type SourceContext struct {
	Source            string             `json:"source"`
	GitHubRepoContext *GitHubRepoContext `json:"githubRepoContext,omitempty"`
}

type GitHubRepoContext struct {
	StartingBranch string `json:"startingBranch,omitempty"`
}

// ShortID returns the route identifier for a session name, the part
// after the final slash.
func (s *Session) ShortID() string {
	if s == nil {
		return ""
	}
	return ShortSessionID(s.Name)
}

func ShortSessionID(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}

// Clone returns a shallow copy with its own SourceContext.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.SourceContext != nil {
		sc := *s.SourceContext
		if s.SourceContext.GitHubRepoContext != nil {
			repo := *s.SourceContext.GitHubRepoContext
			sc.GitHubRepoContext = &repo
		}
		out.SourceContext = &sc
	}
	return &out
}
