package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/softcodex/go-oidc-relay/audit"
)

// auditWriter wraps the ResponseWriter to capture status and size, and carries
// the handler-supplied audit fields (error message, origin-as-referer) back to
// the middleware.
type auditWriter struct {
	http.ResponseWriter
	status       int
	size         int
	referer      string
	errorMessage *string
}

func (w *auditWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *auditWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *auditWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

type auditCtxKey struct{}

// AuditMiddleware writes exactly one audit record per handled request, after
// the handler finishes so status, size and duration are final. A sink failure
// is logged and never fails the request.
func (s *Server) AuditMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &auditWriter{ResponseWriter: w}
		ctx := context.WithValue(r.Context(), auditCtxKey{}, writer)

		next(writer, r.WithContext(ctx))

		elapsed := time.Since(start)
		record := audit.Record{
			Timestamp:    start,
			ClientIP:     clientIP(r),
			Method:       r.Method,
			URL:          r.URL.RequestURI(),
			StatusCode:   writer.statusCode(),
			ResponseTime: float64(elapsed.Microseconds()) / 1000.0,
			ResponseSize: writer.size,
			UserAgent:    r.UserAgent(),
			Referer:      writer.referer,
			ErrorMessage: writer.errorMessage,
		}
		if err := s.sink.Write(r.Context(), record); err != nil {
			log.Err(err).Msg("Failed to write audit record")
		}
		s.metrics.ObserveDuration(elapsed)
	}
}

// setAuditError attaches the error message the audit record should carry.
func setAuditError(r *http.Request, msg string) {
	if writer, ok := r.Context().Value(auditCtxKey{}).(*auditWriter); ok {
		writer.errorMessage = &msg
	}
}

// setAuditReferer records the caller-supplied origin as the audit referer. The
// HTTP Referer header is deliberately not used.
func setAuditReferer(r *http.Request, origin string) {
	if writer, ok := r.Context().Value(auditCtxKey{}).(*auditWriter); ok {
		writer.referer = origin
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the socket
// peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
