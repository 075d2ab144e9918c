package flowsession

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no session exists for a key, including the case
// where a previous Consume already destroyed it.
var ErrNotFound = errors.New("flow session not found")

// ClientConfig captures the provider configuration at initiate time so the
// callback step runs with exactly the settings of the request that started the
// flow. A provider client is rebuilt from this data on every callback.
type ClientConfig struct {
	ClientID             string `json:"client_id"`
	ClientSecret         string `json:"client_secret"`
	TenantID             string `json:"tenant_id"`
	AllowedEmailDomains  string `json:"allowed_email_domains"`
	ExcludedEmailDomains string `json:"excluded_email_domains"`
}

// Session holds the transient state of one in-progress authorization attempt,
// created at initiate time and consumed exactly once by the callback.
type Session struct {
	State        string       `json:"state"`
	Origin       string       `json:"origin"`
	ClientConfig ClientConfig `json:"client_config"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Repo stores flow sessions keyed by an opaque browser session key supplied by
// the transport layer. Consume must read and invalidate atomically: of two
// concurrent Consume calls for the same key, at most one may observe the session.
type Repo interface {
	Upsert(ctx context.Context, key string, session *Session) error
	Consume(ctx context.Context, key string) (*Session, error)
	Delete(ctx context.Context, key string) error
}
