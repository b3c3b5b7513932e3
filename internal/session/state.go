package session

import (
	"slices"
	"time"

	"github.com/dgellow/twitch-login/internal/twitch"
	"golang.org/x/oauth2"
)

// Status is the operation the Manager is currently running.
type Status int

const (
	StatusIdle Status = iota
	StatusSigningIn
	StatusSigningOut
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSigningIn:
		return "signing-in"
	case StatusSigningOut:
		return "signing-out"
	default:
		return "unknown"
	}
}

// Session is an authenticated user with the token that proves it.
type Session struct {
	User       twitch.User
	Token      *oauth2.Token
	Scopes     []string
	SignedInAt time.Time
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Token != nil {
		tok := *s.Token
		c.Token = &tok
	}
	c.Scopes = slices.Clone(s.Scopes)
	return &c
}

// State is a snapshot of the Manager. Session is nil when signed out.
type State struct {
	Session *Session
	Status  Status
}

// SignedIn reports whether the snapshot holds a session.
func (s State) SignedIn() bool {
	return s.Session != nil
}

func (s State) IsLoggingIn() bool {
	return s.Status == StatusSigningIn
}

func (s State) IsLoggingOut() bool {
	return s.Status == StatusSigningOut
}
