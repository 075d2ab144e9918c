package config

import (
	"os"
	"time"
)

// RelayConfig exposes the ambient relay configuration: the provider client
// credentials and the knobs for upstream calls and state storage. The secrets
// are process-wide and never logged.
type RelayConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetLoginHost() string
	GetUpstreamTimeout() time.Duration
	GetSessionTTL() time.Duration
	GetRedisURL() string
	GetAuditDSN() string
	GetVerifyIDToken() bool
}

type Relay struct{}

var _ RelayConfig = Relay{}

func (Relay) GetClientID() string {
	return os.Getenv("CLIENT_ID")
}

func (Relay) GetClientSecret() string {
	return os.Getenv("CLIENT_SECRET")
}

// GetLoginHost returns the host the caller-supplied authorization URL must
// match. Only the Entra ID login host is trusted by default.
func (Relay) GetLoginHost() string {
	return GetEnv("RELAY_LOGIN_HOST", "login.microsoftonline.com")
}

// GetUpstreamTimeout bounds every call to the provider and the mail endpoint.
func (Relay) GetUpstreamTimeout() time.Duration {
	return getDuration("RELAY_UPSTREAM_TIMEOUT", 10*time.Second)
}

// GetSessionTTL bounds how long a flow session may wait for its callback.
func (Relay) GetSessionTTL() time.Duration {
	return getDuration("RELAY_SESSION_TTL", 10*time.Minute)
}

// GetRedisURL returns the Redis connection URL; empty means the in-memory
// session store, which is only correct for a single-instance deployment.
func (Relay) GetRedisURL() string {
	return os.Getenv("REDIS_URL")
}

// GetAuditDSN returns the Postgres DSN for the audit sink; empty means the
// in-memory sink.
func (Relay) GetAuditDSN() string {
	return os.Getenv("AUDIT_DATABASE_URL")
}

// GetVerifyIDToken enables ID-token verification after the code exchange.
// Off by default: the relay hands tokens straight to the origin.
func (Relay) GetVerifyIDToken() bool {
	return os.Getenv("RELAY_VERIFY_ID_TOKEN") == "true"
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
