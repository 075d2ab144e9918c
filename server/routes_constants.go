package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Flow Routes
	RouteSSO      = "/oidc/sso"
	RouteCallback = "/oidc/callback"

	// Mail Relay Routes
	RouteSendEmail = "/send-email"

	// Operational Routes
	RouteMetrics = "/metrics"
	RouteHealthz = "/healthz"
)
