package client

import "github.com/nurdwerks/jules-interface/internal/types"

type SessionsResponse struct {
	Sessions []*types.Session `json:"sessions"`
}

type ActivitiesResponse struct {
	Activities []*types.Activity `json:"activities"`
}

type SourcesResponse struct {
	Sources []*types.Source `json:"sources"`
}

type CreateSessionRequest struct {
	Prompt        string               `json:"prompt"`
	SourceContext *types.SourceContext `json:"sourceContext,omitempty"`
}

type SendMessageRequest struct {
	Prompt string `json:"prompt"`
}
