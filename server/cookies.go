package server

import (
	"net/http"

	"github.com/google/uuid"
)

// relaySessionCookie is the name of the cookie keying the browser's flow session
const relaySessionCookie = "relay_session"

// ensureRelaySession returns the browser's flow session key, minting a fresh
// cookie when none exists. SameSite=Lax so the cookie survives the top-level
// redirect back from the identity provider.
func (s *Server) ensureRelaySession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(relaySessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	sessionKey := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     relaySessionCookie,
		Value:    sessionKey,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.config.GetSessionTTL().Seconds()),
	})
	return sessionKey
}

// relaySessionKey reads the flow session key without minting one; an absent
// cookie means the callback cannot match any session and fails closed.
func (s *Server) relaySessionKey(r *http.Request) string {
	c, err := r.Cookie(relaySessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
