package session

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgellow/twitch-login/internal/browserauth"
	"github.com/dgellow/twitch-login/internal/crypto"
	"github.com/dgellow/twitch-login/internal/log"
	"github.com/dgellow/twitch-login/internal/twitch"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"
)

// Provider is the identity provider the Manager signs in against.
// *twitch.Client implements it.
type Provider interface {
	AuthURL(redirectURI, state string) string
	CurrentUser(ctx context.Context, token *oauth2.Token) (*twitch.User, error)
	Revoke(ctx context.Context, token *oauth2.Token) error
	Client(src oauth2.TokenSource) *http.Client
}

// Manager owns the signed-in session and runs sign in and sign out. At most one
// of the two runs at a time; a second call while one is in flight fails with
// ErrOperationInProgress.
type Manager struct {
	provider Provider
	launcher browserauth.Launcher

	stateLength int
	now         func() time.Time

	slot *semaphore.Weighted

	mu          sync.RWMutex
	session     *Session
	status      Status
	subscribers []subscriber
	nextSubID   int
}

type subscriber struct {
	id int
	fn func(State)
}

// Option configures a Manager.
type Option func(*Manager)

// WithStateLength sets the length of the state nonce.
func WithStateLength(n int) Option {
	return func(m *Manager) {
		m.stateLength = n
	}
}

// WithClock sets the time source used for SignedInAt and token expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a signed-out Manager.
func NewManager(provider Provider, launcher browserauth.Launcher, opts ...Option) *Manager {
	m := &Manager{
		provider:    provider,
		launcher:    launcher,
		stateLength: crypto.StateLength,
		now:         time.Now,
		slot:        semaphore.NewWeighted(1),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// State returns a snapshot of the session and current status.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	return State{Session: m.session.clone(), Status: m.status}
}

// Session returns a copy of the current session, or nil when signed out.
func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.clone()
}

// IsLoggingIn reports whether a sign in is in flight.
func (m *Manager) IsLoggingIn() bool {
	return m.State().IsLoggingIn()
}

// IsLoggingOut reports whether a sign out is in flight.
func (m *Manager) IsLoggingOut() bool {
	return m.State().IsLoggingOut()
}

// Subscribe registers fn to be called with a snapshot after every state change.
// Listeners run synchronously in registration order, outside the Manager's lock.
// The returned func unregisters fn.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.subscribers = slices.DeleteFunc(m.subscribers, func(s subscriber) bool {
			return s.id == id
		})
	}
}

// update applies fn under the lock, then notifies subscribers.
func (m *Manager) update(fn func()) {
	m.mu.Lock()
	fn()
	st := m.stateLocked()
	subs := slices.Clone(m.subscribers)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(st)
	}
}

// Token returns the current access token. It implements oauth2.TokenSource, so
// clients built on the Manager stop authenticating once it signs out.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil || m.session.Token == nil || m.session.Token.AccessToken == "" {
		return nil, ErrNotSignedIn
	}
	tok := *m.session.Token
	return &tok, nil
}

// HTTPClient returns a client that authenticates every request with the current
// session's token and fails with ErrNotSignedIn when there is none.
func (m *Manager) HTTPClient() *http.Client {
	return m.provider.Client(m)
}

// SignIn runs the consent flow and, on success, replaces the session. A flow that
// is cancelled, dismissed or denied by the user returns nil and leaves the session
// as it was. Every other failure is a *SignInError.
func (m *Manager) SignIn(ctx context.Context) error {
	if !m.slot.TryAcquire(1) {
		return ErrOperationInProgress
	}
	defer m.slot.Release(1)

	m.update(func() { m.status = StatusSigningIn })

	var sess *Session
	defer m.update(func() {
		if sess != nil {
			m.session = sess
		}
		m.status = StatusIdle
	})

	// attempt correlates the log lines of one sign in
	attempt := uuid.NewString()

	sess, err := m.signIn(ctx, attempt)
	if err != nil {
		log.LogErrorWithFields("session", "Sign in failed", map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		})
		return &SignInError{Cause: err}
	}
	if sess != nil {
		log.LogInfoWithFields("session", "Signed in", map[string]any{
			"attempt": attempt,
			"user_id": sess.User.ID,
			"login":   sess.User.Login,
		})
	}
	return nil
}

func (m *Manager) signIn(ctx context.Context, attempt string) (*Session, error) {
	flow, err := m.launcher.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start consent flow: %w", err)
	}
	defer func() {
		if err := flow.Close(); err != nil {
			log.LogWarnWithFields("session", "Failed to close consent flow", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	state, err := crypto.GenerateState(m.stateLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	redirectURI := flow.RedirectURI()
	authURL := m.provider.AuthURL(redirectURI, state)
	log.LogDebugWithFields("session", "Sign in started", map[string]any{
		"attempt":      attempt,
		"redirect_uri": redirectURI,
	})

	result, err := flow.Run(ctx, authURL)
	if err != nil {
		return nil, fmt.Errorf("consent flow failed: %w", err)
	}
	if result == nil {
		result = &browserauth.Result{Type: browserauth.ResultDismiss}
	}

	if result.Type != browserauth.ResultSuccess {
		log.LogInfoWithFields("session", "Consent flow did not complete", map[string]any{
			"attempt": attempt,
			"result":  string(result.Type),
		})
		return nil, nil
	}
	if result.Param("error") == "access_denied" {
		log.LogInfoWithFields("session", "User denied access", map[string]any{
			"attempt": attempt,
		})
		return nil, nil
	}

	if !crypto.EqualState(state, result.Param("state")) {
		return nil, ErrInvalidState
	}
	if code := result.Param("error"); code != "" {
		return nil, &ProviderError{Code: code, Description: result.Param("error_description")}
	}

	now := m.now()
	token := tokenFromResult(result, now)
	if token.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	user, err := m.provider.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	scopes := strings.Fields(result.Param("scope"))
	if len(scopes) == 0 {
		scopes = slices.Clone(twitch.Scopes)
	}

	return &Session{
		User:       *user,
		Token:      token,
		Scopes:     scopes,
		SignedInAt: now,
	}, nil
}

func tokenFromResult(result *browserauth.Result, now time.Time) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken: result.Param("access_token"),
		TokenType:   result.Param("token_type"),
	}
	if token.TokenType == "" {
		token.TokenType = "bearer"
	}
	if secs, err := strconv.ParseInt(result.Param("expires_in"), 10, 64); err == nil && secs > 0 {
		token.Expiry = now.Add(time.Duration(secs) * time.Second)
	}
	return token
}

// SignOut revokes the session's token with the provider and clears the session.
// Revocation failures are logged, not returned; the session is cleared regardless.
func (m *Manager) SignOut(ctx context.Context) error {
	if !m.slot.TryAcquire(1) {
		return ErrOperationInProgress
	}
	defer m.slot.Release(1)

	m.update(func() { m.status = StatusSigningOut })
	defer m.update(func() {
		m.session = nil
		m.status = StatusIdle
	})

	sess := m.Session()
	if sess == nil {
		log.LogDebugWithFields("session", "Sign out without a session", nil)
		return nil
	}

	if err := m.provider.Revoke(ctx, sess.Token); err != nil {
		log.LogWarnWithFields("session", "Failed to revoke token", map[string]any{
			"error": err.Error(),
		})
	} else {
		log.LogDebugWithFields("session", "Token revoked", nil)
	}

	log.LogInfoWithFields("session", "Signed out", map[string]any{
		"user_id": sess.User.ID,
	})
	return nil
}
