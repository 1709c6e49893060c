package types

const (
	StreamEventSessionUpdate    = "sessionUpdate"
	StreamEventActivitiesUpdate = "activitiesUpdate"
)

// StreamEvent is one push message from the backend's event channel.
// sessionUpdate carries a full session record; activitiesUpdate carries
// the session's route id and its current activity list.
type StreamEvent struct {
	Type       string      `json:"type"`
	Session    *Session    `json:"session,omitempty"`
	SessionID  string      `json:"sessionId,omitempty"`
	Activities []*Activity `json:"activities,omitempty"`
}
