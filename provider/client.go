// Package provider wraps the Microsoft Entra ID authorization-code grant:
// building the authorization URL, exchanging a code for tokens, and fetching
// the signed-in user's Graph profile.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	// DefaultLoginBase is the Entra ID login host all tenant endpoints hang off.
	DefaultLoginBase = "https://login.microsoftonline.com"
	// DefaultGraphBase is the Microsoft Graph API root.
	DefaultGraphBase = "https://graph.microsoft.com"

	defaultTimeout = 10 * time.Second
)

// DefaultScopes are requested when the caller does not override them. User.Read
// covers the profile lookup, Mail.Send covers the mail relay.
var DefaultScopes = []string{
	"openid",
	"profile",
	"email",
	"offline_access",
	"https://graph.microsoft.com/User.Read",
	"https://graph.microsoft.com/Mail.Send",
}

// Config holds everything needed to talk to one tenant's endpoints. A Client is
// built from it per request; there is no shared instance.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
	Scopes       []string
}

// Token is the usable subset of a successful code exchange.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Client performs the synchronous network calls of the authorization-code flow.
// No retries: a failed exchange cannot be resumed with a stale code.
type Client struct {
	cfg           Config
	loginBase     string
	graphBase     string
	httpClient    *http.Client
	verifyIDToken bool
	oauth         *oauth2.Config
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, usually to set the upstream timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLoginBase overrides the login host base URL (tests).
func WithLoginBase(base string) Option {
	return func(c *Client) {
		c.loginBase = base
	}
}

// WithGraphBase overrides the Graph API base URL (tests).
func WithGraphBase(base string) Option {
	return func(c *Client) {
		c.graphBase = base
	}
}

// WithIDTokenVerification makes Exchange verify the id_token returned alongside
// the access token against the tenant's OIDC metadata.
func WithIDTokenVerification() Option {
	return func(c *Client) {
		c.verifyIDToken = true
	}
}

// New builds a client for one tenant. Endpoints are derived from the tenant ID
// the same way the Entra v2.0 documentation spells them.
func New(cfg Config, options ...Option) *Client {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}

	c := &Client{
		cfg:        cfg,
		loginBase:  DefaultLoginBase,
		graphBase:  DefaultGraphBase,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, option := range options {
		option(c)
	}

	c.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", c.loginBase, cfg.TenantID),
			TokenURL:  fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginBase, cfg.TenantID),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return c
}

// AuthorizationURL builds the provider redirect URL carrying the given state.
func (c *Client) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange swaps an authorization code for tokens. A response without a usable
// access token is an error even when the HTTP call succeeded.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("no access token received from provider")
	}

	if c.verifyIDToken {
		if err := c.verifyRawIDToken(ctx, tok); err != nil {
			return nil, fmt.Errorf("verify id_token: %w", err)
		}
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

func (c *Client) verifyRawIDToken(ctx context.Context, tok *oauth2.Token) error {
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return errors.New("no id_token in token response")
	}

	issuer := fmt.Sprintf("%s/%s/v2.0", c.loginBase, c.cfg.TenantID)
	p, err := oidc.NewProvider(oidc.ClientContext(ctx, c.httpClient), issuer)
	if err != nil {
		return fmt.Errorf("discover issuer: %w", err)
	}

	_, err = p.Verifier(&oidc.Config{ClientID: c.cfg.ClientID}).Verify(ctx, rawIDToken)
	return err
}

// FetchProfile retrieves the resource owner's profile from Graph /v1.0/me as a
// raw key/value map; callers pick the claims they care about.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphBase+"/v1.0/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("profile endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var profile map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	return profile, nil
}
