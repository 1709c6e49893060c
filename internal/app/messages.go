package app

import (
	"time"

	"github.com/nurdwerks/jules-interface/internal/types"
)

type tickMsg time.Time

type sourcesMsg struct {
	sources []*types.Source
	err     error
}

type sessionCreatedMsg struct {
	session *types.Session
	err     error
}

type messageSentMsg struct {
	session string
	err     error
}

type planApprovedMsg struct {
	session string
	err     error
}

type sessionRefreshedMsg struct {
	session string
	err     error
}
