// Package flow implements the two-step authorization relay: Initiate sends the
// browser to the identity provider, Complete turns the provider's callback into
// tokens and a redirect back to the origin. All state between the two steps
// lives in a flowsession.Repo; the controller itself is stateless.
package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/softcodex/go-oidc-relay/flow/flowsession"
	"github.com/softcodex/go-oidc-relay/provider"
)

// ProviderClient is the slice of the identity-provider adapter the controller
// needs. provider.Client satisfies it; tests substitute fakes.
type ProviderClient interface {
	Exchange(ctx context.Context, code string) (*provider.Token, error)
	FetchProfile(ctx context.Context, accessToken string) (map[string]any, error)
}

// ClientFactory builds a provider client from the configuration stored at
// initiate time. A fresh client is constructed per callback; nothing is shared.
type ClientFactory func(cfg flowsession.ClientConfig, redirectURI string) ProviderClient

// InitiateRequest carries the caller-supplied inputs of the initiate step.
// Domain lists are comma-separated strings, both optional.
type InitiateRequest struct {
	TenantID             string
	Origin               string
	AuthURL              string
	AllowedEmailDomains  string
	ExcludedEmailDomains string
}

// CallbackRequest carries the query parameters of the provider's redirect plus
// the redirect URI this deployment registered with the provider.
type CallbackRequest struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
	RedirectURI      string
}

// CallbackResult is the terminal outcome of a successful Complete. Email is
// never empty; a profile without a resolvable email fails the flow instead.
type CallbackResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Email        string
	DisplayName  string
	Origin       string
	RedirectURL  string
}

// Controller orchestrates the two flow steps. The ambient client credentials
// are injected at construction so tests can substitute them.
type Controller struct {
	clientID     string
	clientSecret string
	loginHost    string
	sessions     flowsession.Repo
	buildClient  ClientFactory
	nowTime      func() time.Time
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// NewController initializes a Controller with its required dependencies.
// clientID/clientSecret may be empty; Initiate then fails with ErrMisconfigured
// rather than at construction, mirroring how the service is deployed.
func NewController(
	clientID, clientSecret, loginHost string,
	sessions flowsession.Repo,
	buildClient ClientFactory,
	options ...ControllerOption,
) (*Controller, error) {
	if loginHost == "" {
		return nil, errors.New("[NewController] login host is required")
	}
	if sessions == nil {
		return nil, errors.New("[NewController] sessions repo is required")
	}
	if buildClient == nil {
		return nil, errors.New("[NewController] client factory is required")
	}

	c := &Controller{
		clientID:     clientID,
		clientSecret: clientSecret,
		loginHost:    loginHost,
		sessions:     sessions,
		buildClient:  buildClient,
		nowTime:      time.Now,
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// Initiate validates the request, injects the ambient client_id into the
// caller-supplied authorization URL, persists the flow session under sessionKey
// and returns the URL the browser must be redirected to.
//
// Validation fails fast with the first matching error; no session is created on
// any failure path.
func (c *Controller) Initiate(ctx context.Context, sessionKey string, req InitiateRequest) (string, error) {
	if req.TenantID == "" || req.Origin == "" || req.AuthURL == "" {
		return "", fmt.Errorf("%w: missing parameters", ErrInvalidRequest)
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", ErrMisconfigured
	}
	if !validAbsoluteURL(req.Origin) {
		return "", fmt.Errorf("%w: invalid origin URL", ErrInvalidRequest)
	}

	authURL, err := url.Parse(req.AuthURL)
	if err != nil || authURL.Scheme != "https" || authURL.Host != c.loginHost {
		return "", fmt.Errorf("%w: invalid authorization URL", ErrInvalidRequest)
	}

	// Overwrite client_id so the browser can never pick the provider client;
	// everything else the caller supplied, state included, passes through.
	query := authURL.Query()
	query.Set("client_id", c.clientID)
	authURL.RawQuery = query.Encode()
	state := query.Get("state")

	session := &flowsession.Session{
		State:  state,
		Origin: req.Origin,
		ClientConfig: flowsession.ClientConfig{
			ClientID:             c.clientID,
			ClientSecret:         c.clientSecret,
			TenantID:             req.TenantID,
			AllowedEmailDomains:  req.AllowedEmailDomains,
			ExcludedEmailDomains: req.ExcludedEmailDomains,
		},
		CreatedAt: c.nowTime(),
	}
	if err := c.sessions.Upsert(ctx, sessionKey, session); err != nil {
		return "", fmt.Errorf("store flow session: %w", err)
	}

	return authURL.String(), nil
}

// Complete consumes the flow session, validates the anti-forgery state,
// exchanges the code, resolves the resource owner's email and applies the
// domain policy. The session is destroyed on the first read, so replaying the
// same callback observes ErrInvalidOrExpiredState.
func (c *Controller) Complete(ctx context.Context, sessionKey string, req CallbackRequest) (*CallbackResult, error) {
	if req.Error != "" {
		msg := req.Error
		if req.ErrorDescription != "" {
			msg += " - " + req.ErrorDescription
		}
		return nil, fmt.Errorf("%w: %s", ErrProvider, msg)
	}

	session, err := c.sessions.Consume(ctx, sessionKey)
	if err != nil || req.State == "" || req.Code == "" || req.State != session.State {
		// Missing, mismatched or already-consumed state all fail the same way.
		return nil, ErrInvalidOrExpiredState
	}

	client := c.buildClient(session.ClientConfig, req.RedirectURI)

	token, err := client.Exchange(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTokenExchange, err)
	}

	profile, err := client.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileFetch, err)
	}

	email := profileString(profile, "mail")
	if email == "" {
		email = profileString(profile, "userPrincipalName")
	}
	if email == "" {
		return nil, ErrMissingEmail
	}

	displayName := profileString(profile, "displayName")
	if displayName == "" {
		displayName = deriveDisplayName(email)
	}

	domain := emailDomain(email)
	excluded := parseDomainList(session.ClientConfig.ExcludedEmailDomains)
	if len(excluded) > 0 && containsDomain(excluded, domain) {
		return nil, ErrDomainNotAllowed
	}
	allowed := parseDomainList(session.ClientConfig.AllowedEmailDomains)
	if len(allowed) > 0 && !containsDomain(allowed, domain) {
		return nil, ErrDomainNotAllowed
	}

	query := url.Values{}
	query.Set("accessToken", token.AccessToken)
	query.Set("refreshToken", token.RefreshToken)
	query.Set("email", email)
	query.Set("displayName", displayName)

	return &CallbackResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Email:        email,
		DisplayName:  displayName,
		Origin:       session.Origin,
		RedirectURL:  session.Origin + "?" + query.Encode(),
	}, nil
}

func profileString(profile map[string]any, key string) string {
	if v, ok := profile[key].(string); ok {
		return v
	}
	return ""
}
