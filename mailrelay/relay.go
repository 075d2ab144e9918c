// Package mailrelay proxies a single outbound call: sending an email through
// Microsoft Graph on behalf of an already-authenticated user.
package mailrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultEndpoint is the Graph sendMail endpoint for the token's own mailbox.
const DefaultEndpoint = "https://graph.microsoft.com/v1.0/me/sendMail"

const defaultTimeout = 10 * time.Second

// ErrSendFailed marks a downstream failure; the accompanying Result carries the
// diagnostics for the response body.
var ErrSendFailed = errors.New("error sending email")

// Message is the inbound relay request. From is required for interface
// completeness even though Graph derives the sender from the bearer token.
type Message struct {
	Subject     string `json:"subject"`
	HTML        string `json:"html"`
	From        string `json:"from"`
	To          string `json:"to"`
	AccessToken string `json:"accessToken"`
	Origin      string `json:"origin,omitempty"`
}

// requiredFields is checked in this fixed order so the first missing field
// reported is deterministic.
var requiredFields = []struct {
	name  string
	value func(Message) string
}{
	{"subject", func(m Message) string { return m.Subject }},
	{"html", func(m Message) string { return m.HTML }},
	{"from", func(m Message) string { return m.From }},
	{"to", func(m Message) string { return m.To }},
	{"accessToken", func(m Message) string { return m.AccessToken }},
}

// Validate returns an error naming the first missing required field.
func (m Message) Validate() error {
	for _, field := range requiredFields {
		if field.value(m) == "" {
			return fmt.Errorf("Required field is missing: %s", field.name)
		}
	}
	return nil
}

// Result carries the downstream diagnostics of a send attempt.
type Result struct {
	HTTPCode      int
	GraphResponse any
	TransportErr  string
}

// Relay issues the outbound Graph call. One POST per Send, no retries.
type Relay struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient overrides the HTTP client, usually to set the upstream timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(r *Relay) {
		r.httpClient = h
	}
}

// WithEndpoint overrides the sendMail endpoint (tests).
func WithEndpoint(endpoint string) Option {
	return func(r *Relay) {
		r.endpoint = endpoint
	}
}

// New creates a mail relay.
func New(options ...Option) *Relay {
	r := &Relay{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Send posts the message to Graph with the caller's bearer token. A 2xx answer
// returns a nil error; anything else returns ErrSendFailed with the downstream
// status, decoded body and any transport error captured in the Result.
func (r *Relay) Send(ctx context.Context, msg Message) (*Result, error) {
	payload := map[string]any{
		"message": map[string]any{
			"subject": msg.Subject,
			"body": map[string]any{
				"contentType": "HTML",
				"content":     msg.HTML,
			},
			"toRecipients": []map[string]any{
				{"emailAddress": map[string]any{"address": msg.To}},
			},
		},
		"saveToSentItems": "true",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &Result{TransportErr: err.Error()}, ErrSendFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return &Result{TransportErr: err.Error()}, ErrSendFailed
	}
	req.Header.Set("Authorization", "Bearer "+msg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &Result{TransportErr: err.Error()}, ErrSendFailed
	}
	defer resp.Body.Close()

	result := &Result{HTTPCode: resp.StatusCode}
	// Graph responds with JSON on errors and an empty body on success; decode
	// failures are fine either way.
	var graphResponse any
	if err := json.NewDecoder(resp.Body).Decode(&graphResponse); err == nil {
		result.GraphResponse = graphResponse
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return result, nil
	}
	return result, ErrSendFailed
}
