// Package redditapi is the client for the delegated identity provider. It
// drives the OAuth code flow and fetches the caller's profile; the chat
// engine only ever sees the resulting Verification, never provider errors.
package redditapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://www.reddit.com/api/v1/authorize"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	defaultAPIBase  = "https://oauth.reddit.com"

	userAgent = "lounge/1.0"
)

// Client wraps the provider's OAuth endpoints and identity API.
type Client struct {
	oauth   *oauth2.Config
	apiBase string
	http    *http.Client
}

// New builds a client from app credentials. scopes is a space-separated
// list; at minimum "identity" is required to resolve the profile.
func New(clientID, clientSecret, redirectURI, scopes string) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       splitScopes(scopes),
			Endpoint: oauth2.Endpoint{
				AuthURL:   defaultAuthURL,
				TokenURL:  defaultTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiBase: defaultAPIBase,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Override repoints the provider endpoints, for tests that stand in a stub
// provider with httptest.
func (c *Client) Override(authURL, tokenURL, apiBase string) {
	c.oauth.Endpoint.AuthURL = authURL
	c.oauth.Endpoint.TokenURL = tokenURL
	c.apiBase = apiBase
}

// Configured reports whether app credentials are present.
func (c *Client) Configured() bool {
	return c.oauth.ClientID != "" && c.oauth.ClientSecret != "" && c.oauth.RedirectURL != ""
}

// AuthCodeURL returns the provider authorization URL bound to state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("duration", "temporary"))
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}
	return tok, nil
}

// Profile is the subset of the provider's identity response the engine
// consumes.
type Profile struct {
	Name       string  `json:"name"`
	CreatedUTC float64 `json:"created_utc"`
	TotalKarma int     `json:"total_karma"`
	Suspended  bool    `json:"is_suspended"`
}

// CreatedAt returns the account creation time.
func (p *Profile) CreatedAt() time.Time {
	return time.Unix(int64(p.CreatedUTC), 0).UTC()
}

// FetchProfile resolves the authenticated account behind tok.
func (c *Client) FetchProfile(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/api/v1/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile fetch: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("profile fetch failed: %s: %s", resp.Status, string(b))
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("profile decode: %w", err)
	}
	if p.Name == "" {
		return nil, errors.New("profile missing account name")
	}
	return &p, nil
}

func splitScopes(scopes string) []string {
	return strings.Fields(strings.ReplaceAll(scopes, ",", " "))
}
