package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgellow/twitch-login/internal/json"
	"github.com/dgellow/twitch-login/internal/log"
	"github.com/dgellow/twitch-login/internal/urlutil"
	"golang.org/x/oauth2"
	oauth2twitch "golang.org/x/oauth2/twitch"
)

const (
	// DefaultAPIBaseURL is the Helix API root.
	DefaultAPIBaseURL = "https://api.twitch.tv/helix"

	// DefaultRevokeURL is the token revocation endpoint.
	DefaultRevokeURL = "https://id.twitch.tv/oauth2/revoke"

	defaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
	maxErrorBytes    = 1024
)

// Scopes requested on every sign in.
var Scopes = []string{"openid", "user:read:email", "user:read:follows"}

// ErrNoUser is returned when GET /users succeeds but contains no records.
var ErrNoUser = errors.New("no user returned for token")

// Client talks to Twitch's identity and Helix endpoints for an implicit-grant application.
type Client struct {
	config     oauth2.Config
	apiBaseURL string
	revokeURL  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAuthURL overrides the authorization endpoint.
func WithAuthURL(authURL string) Option {
	return func(c *Client) {
		c.config.Endpoint.AuthURL = authURL
	}
}

// WithAPIBaseURL overrides the Helix API root (for testing).
func WithAPIBaseURL(apiBaseURL string) Option {
	return func(c *Client) {
		c.apiBaseURL = apiBaseURL
	}
}

// WithRevokeURL overrides the revocation endpoint (for testing).
func WithRevokeURL(revokeURL string) Option {
	return func(c *Client) {
		c.revokeURL = revokeURL
	}
}

// WithHTTPClient sets the base client. Its transport gets the Client-Id header and
// tracing layered on top.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Twitch client for the given application client id.
func NewClient(clientID string, opts ...Option) *Client {
	c := &Client{
		config: oauth2.Config{
			ClientID: clientID,
			Scopes:   Scopes,
			Endpoint: oauth2twitch.Endpoint,
		},
		apiBaseURL: DefaultAPIBaseURL,
		revokeURL:  DefaultRevokeURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	base := *c.httpClient
	base.Transport = newTransport(clientID, c.httpClient.Transport)
	c.httpClient = &base

	return c
}

// AuthURL builds the implicit-grant authorization URL. Consent is forced on every
// login so the user can switch accounts.
func (c *Client) AuthURL(redirectURI, state string) string {
	cfg := c.config
	cfg.RedirectURL = redirectURI

	authURL := cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("force_verify", "true"),
	)

	// Twitch documents scopes as %20-separated; url.Values encodes spaces as '+'.
	// Literal '+' in values is already escaped as %2B, so this only touches spaces.
	return strings.ReplaceAll(authURL, "+", "%20")
}

// Client returns an HTTP client that asks src for a token on every request, so a
// source that stops issuing tokens stops the client from sending credentials.
func (c *Client) Client(src oauth2.TokenSource) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: src,
			Base:   c.httpClient.Transport,
		},
		Timeout: c.httpClient.Timeout,
	}
}

// CurrentUser fetches the profile of the user that owns token.
func (c *Client) CurrentUser(ctx context.Context, token *oauth2.Token) (*User, error) {
	usersURL, err := urlutil.JoinPath(c.apiBaseURL, "users")
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, usersURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client(oauth2.StaticTokenSource(token))
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user: status %d: %s", resp.StatusCode, json.ReadLimited(resp.Body, maxErrorBytes))
	}

	var users usersResponse
	if err := json.DecodeLimited(resp.Body, maxResponseBytes, &users); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if len(users.Data) == 0 {
		return nil, ErrNoUser
	}

	user := users.Data[0]
	log.LogDebugWithFields("twitch", "Fetched user profile", map[string]any{
		"user_id": user.ID,
		"login":   user.Login,
	})
	return &user, nil
}

// Revoke invalidates token with Twitch.
func (c *Client) Revoke(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("no access token to revoke")
	}

	form := url.Values{}
	form.Set("client_id", c.config.ClientID)
	form.Set("token", token.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token: status %d: %s", resp.StatusCode, json.ReadLimited(resp.Body, maxErrorBytes))
	}

	return nil
}
