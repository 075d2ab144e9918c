package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/softcodex/go-oidc-relay/mailrelay"
)

// SendEmailHandler relays one email through Graph with the caller's bearer
// token. Validation failures never reach the network.
func (s *Server) SendEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg mailrelay.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			message := "Malformed JSON: " + err.Error()
			setAuditError(r, message)
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status":  "error",
				"message": message,
			})
			return
		}

		// The audit referer comes from the request body, not the Referer header.
		setAuditReferer(r, msg.Origin)

		if err := msg.Validate(); err != nil {
			setAuditError(r, err.Error())
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}

		result, err := s.mail.Send(r.Context(), msg)
		if err != nil {
			s.metrics.IncMailSent("error")
			setAuditError(r, "Error sending email")
			log.Err(err).Int("httpCode", result.HTTPCode).Str("curlError", result.TransportErr).Msg("Mail relay failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"status":        "error",
				"message":       "Error sending email",
				"httpCode":      result.HTTPCode,
				"graphResponse": result.GraphResponse,
				"curlError":     result.TransportErr,
			})
			return
		}

		s.metrics.IncMailSent("success")
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"message": "Mail sent successfully.",
		})
	}
}
