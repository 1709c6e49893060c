package types

import (
	"strings"
	"time"
)

type ActivityKind string

const (
	ActivityKindMessage  ActivityKind = "MESSAGE"
	ActivityKindPlan     ActivityKind = "PLAN"
	ActivityKindApproval ActivityKind = "APPROVAL"
	ActivityKindSystem   ActivityKind = "SYSTEM"
	ActivityKindUnknown  ActivityKind = "UNKNOWN"
)

// Activity is one entry in a session's timeline. Exactly one of the
// payload fields is set; the wire shape mirrors the backend's oneof
// encoding. Local marks an optimistic append awaiting the backend echo.
type Activity struct {
	Name             string            `json:"name,omitempty"`
	CreateTime       time.Time         `json:"createTime"`
	UserMessaged     *UserMessaged     `json:"userMessaged,omitempty"`
	AgentMessaged    *AgentMessaged    `json:"agentMessaged,omitempty"`
	PlanGenerated    *PlanGenerated    `json:"planGenerated,omitempty"`
	PlanApproved     *PlanApproved     `json:"planApproved,omitempty"`
	PlanRejected     *PlanRejected     `json:"planRejected,omitempty"`
	ProgressUpdated  *ProgressUpdated  `json:"progressUpdated,omitempty"`
	SessionCompleted *SessionCompleted `json:"sessionCompleted,omitempty"`
	SessionFailed    *SessionFailed    `json:"sessionFailed,omitempty"`
	Local            bool              `json:"-"`
}

type UserMessaged struct {
	UserMessage string `json:"userMessage"`
}

type AgentMessaged struct {
	AgentMessage string `json:"agentMessage"`
}

type PlanGenerated struct {
	Plan *Plan `json:"plan,omitempty"`
}

type Plan struct {
	ID    string     `json:"id,omitempty"`
	Steps []PlanStep `json:"steps,omitempty"`
}

type PlanStep struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// PlanApproved and PlanRejected reference the plan they decide; an empty
// PlanID pairs with the latest generated plan.
type PlanApproved struct {
	PlanID string `json:"planId,omitempty"`
}

type PlanRejected struct {
	PlanID string `json:"planId,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type ProgressUpdated struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type SessionCompleted struct{}

type SessionFailed struct {
	Reason string `json:"reason,omitempty"`
}

func (a *Activity) Kind() ActivityKind {
	switch {
	case a == nil:
		return ActivityKindUnknown
	case a.UserMessaged != nil, a.AgentMessaged != nil:
		return ActivityKindMessage
	case a.PlanGenerated != nil:
		return ActivityKindPlan
	case a.PlanApproved != nil, a.PlanRejected != nil:
		return ActivityKindApproval
	case a.ProgressUpdated != nil, a.SessionCompleted != nil, a.SessionFailed != nil:
		return ActivityKindSystem
	default:
		return ActivityKindUnknown
	}
}

// Identity is the dedup key for an activity: kind, timestamp and payload.
// A duplicate delivery (echo of an optimistic append, repeated push event)
// produces the same identity and collapses to one visible entry.
func (a *Activity) Identity() string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(a.Kind()))
	b.WriteByte('|')
	b.WriteString(a.CreateTime.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(a.payloadKey())
	return b.String()
}

// PayloadKey identifies an activity by kind and payload alone, ignoring
// timestamps. The backend assigns its own createTime when echoing an
// optimistic append, so reconciliation matches on this weaker key.
func (a *Activity) PayloadKey() string {
	if a == nil {
		return ""
	}
	return string(a.Kind()) + "|" + a.payloadKey()
}

func (a *Activity) payloadKey() string {
	switch {
	case a.UserMessaged != nil:
		return "user:" + a.UserMessaged.UserMessage
	case a.AgentMessaged != nil:
		return "agent:" + a.AgentMessaged.AgentMessage
	case a.PlanGenerated != nil:
		if a.PlanGenerated.Plan != nil {
			return "plan:" + a.PlanGenerated.Plan.ID
		}
		return "plan:"
	case a.PlanApproved != nil:
		return "approved:" + a.PlanApproved.PlanID
	case a.PlanRejected != nil:
		return "rejected:" + a.PlanRejected.PlanID
	case a.ProgressUpdated != nil:
		return "progress:" + a.ProgressUpdated.Title + ":" + a.ProgressUpdated.Description
	case a.SessionCompleted != nil:
		return "completed"
	case a.SessionFailed != nil:
		return "failed:" + a.SessionFailed.Reason
	default:
		return "unknown:" + a.Name
	}
}
