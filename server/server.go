// Package server is the HTTP layer of the relay: routing, middleware, cookies
// and the translation of flow errors into responses. Business rules live in the
// flow package; this package stays transport-only.
package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/softcodex/go-oidc-relay/audit"
	"github.com/softcodex/go-oidc-relay/flow"
	"github.com/softcodex/go-oidc-relay/internal/config"
	"github.com/softcodex/go-oidc-relay/internal/metrics"
	"github.com/softcodex/go-oidc-relay/mailrelay"
)

// Deps holds the collaborators the server delegates to.
type Deps struct {
	Flow    *flow.Controller
	Mail    *mailrelay.Relay
	Audit   audit.Sink
	Metrics *metrics.Metrics
	Redis   *redis.Client // optional, health check only
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	flow    *flow.Controller
	mail    *mailrelay.Relay
	sink    audit.Sink
	metrics *metrics.Metrics
	redis   *redis.Client
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Flow == nil {
		return nil, errors.New("[Server New] flow controller is required")
	}
	if deps.Mail == nil {
		return nil, errors.New("[Server New] mail relay is required")
	}
	if deps.Audit == nil {
		return nil, errors.New("[Server New] audit sink is required")
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  cfg,
		flow:    deps.Flow,
		mail:    deps.Mail,
		sink:    deps.Audit,
		metrics: deps.Metrics,
		redis:   deps.Redis,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
