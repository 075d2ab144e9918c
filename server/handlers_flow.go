package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/softcodex/go-oidc-relay/flow"
)

// SSOHandler initiates the authorization flow: it validates the form-encoded
// request, stores the flow session and bounces the browser to the provider.
func (s *Server) SSOHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.flowError(w, r, flow.ErrInvalidRequest)
			return
		}

		req := flow.InitiateRequest{
			TenantID:             r.FormValue("tenant_id"),
			Origin:               r.FormValue("origin"),
			AuthURL:              r.FormValue("auth_url"),
			AllowedEmailDomains:  r.FormValue("allowed_email_domains"),
			ExcludedEmailDomains: r.FormValue("excluded_email_domains"),
		}
		setAuditReferer(r, req.Origin)

		sessionKey := s.ensureRelaySession(w, r)

		redirectURL, err := s.flow.Initiate(r.Context(), sessionKey, req)
		if err != nil {
			s.flowError(w, r, err)
			return
		}

		s.metrics.IncFlowInitiated()
		http.Redirect(w, r, redirectURL, http.StatusFound)
	}
}

// CallbackHandler completes the flow when the provider redirects the browser
// back: state check, token exchange, profile lookup, domain policy, then a
// redirect to the origin carrying the result.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		req := flow.CallbackRequest{
			State:            query.Get("state"),
			Code:             query.Get("code"),
			Error:            query.Get("error"),
			ErrorDescription: query.Get("error_description"),
			RedirectURI:      getScheme(r) + "://" + r.Host + RouteCallback,
		}

		result, err := s.flow.Complete(r.Context(), s.relaySessionKey(r), req)
		if err != nil {
			s.metrics.IncFlowCompleted("error")
			s.flowError(w, r, err)
			return
		}

		setAuditReferer(r, result.Origin)
		s.metrics.IncFlowCompleted("success")
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	}
}

// flowError reports a flow failure: plain-text body, mapped status code, one
// audit error message. Upstream failures are logged; the response body never
// carries more than the wrapped error text.
func (s *Server) flowError(w http.ResponseWriter, r *http.Request, err error) {
	status := flow.HTTPStatus(err)
	setAuditError(r, err.Error())

	if errors.Is(err, flow.ErrTokenExchange) || errors.Is(err, flow.ErrProfileFetch) {
		log.Err(err).Msg("Upstream provider call failed")
	}

	http.Error(w, err.Error(), status)
}
