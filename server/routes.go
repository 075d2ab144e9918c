package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Flow + relay endpoints carry the full middleware chain; every terminal
	// outcome on them produces exactly one audit record.
	s.RegisterRouteHandler("POST "+RouteSSO, ChainMiddleware(s.SSOHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSendEmail, ChainMiddleware(s.SendEmailHandler(), s.APIMiddleware()...))

	// Operational endpoints are not audited.
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
}
