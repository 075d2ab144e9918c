package mailrelay_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softcodex/go-oidc-relay/mailrelay"
)

func validMessage() mailrelay.Message {
	return mailrelay.Message{
		Subject:     "Welcome",
		HTML:        "<p>Hello</p>",
		From:        "noreply@example.com",
		To:          "jdoe@example.com",
		AccessToken: "token-1",
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Run("complete message passes", func(t *testing.T) {
		require.NoError(t, validMessage().Validate())
	})

	scenarios := []struct {
		name   string
		mutate func(*mailrelay.Message)
		want   string
	}{
		{"missing subject", func(m *mailrelay.Message) { m.Subject = "" }, "Required field is missing: subject"},
		{"missing html", func(m *mailrelay.Message) { m.HTML = "" }, "Required field is missing: html"},
		{"missing from", func(m *mailrelay.Message) { m.From = "" }, "Required field is missing: from"},
		{"missing to", func(m *mailrelay.Message) { m.To = "" }, "Required field is missing: to"},
		{"missing accessToken", func(m *mailrelay.Message) { m.AccessToken = "" }, "Required field is missing: accessToken"},
	}
	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			msg := validMessage()
			scenario.mutate(&msg)
			err := msg.Validate()
			require.Error(t, err)
			require.Equal(t, scenario.want, err.Error())
		})
	}

	t.Run("first missing field wins", func(t *testing.T) {
		msg := validMessage()
		msg.Subject = ""
		msg.To = ""
		require.EqualError(t, msg.Validate(), "Required field is missing: subject")
	})

	t.Run("origin is optional", func(t *testing.T) {
		msg := validMessage()
		msg.Origin = ""
		require.NoError(t, msg.Validate())
	})
}

func TestRelay_Send(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotAuth string
		var gotPayload map[string]any
		downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &gotPayload))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer downstream.Close()

		relay := mailrelay.New(mailrelay.WithEndpoint(downstream.URL))

		result, err := relay.Send(context.Background(), validMessage())
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, result.HTTPCode)
		require.Equal(t, "Bearer token-1", gotAuth)

		message, ok := gotPayload["message"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "Welcome", message["subject"])
		body, ok := message["body"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "HTML", body["contentType"])
		require.Equal(t, "<p>Hello</p>", body["content"])
		require.Equal(t, "true", gotPayload["saveToSentItems"])

		recipients, ok := message["toRecipients"].([]any)
		require.True(t, ok)
		require.Len(t, recipients, 1)
	})

	t.Run("downstream error carries the graph body", func(t *testing.T) {
		downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":"ErrorAccessDenied","message":"Access is denied."}}`))
		}))
		defer downstream.Close()

		relay := mailrelay.New(mailrelay.WithEndpoint(downstream.URL))

		result, err := relay.Send(context.Background(), validMessage())
		require.ErrorIs(t, err, mailrelay.ErrSendFailed)
		require.Equal(t, http.StatusForbidden, result.HTTPCode)

		graph, ok := result.GraphResponse.(map[string]any)
		require.True(t, ok)
		require.Contains(t, graph, "error")
	})

	t.Run("transport failure", func(t *testing.T) {
		downstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		downstream.Close()

		relay := mailrelay.New(mailrelay.WithEndpoint(downstream.URL))

		result, err := relay.Send(context.Background(), validMessage())
		require.ErrorIs(t, err, mailrelay.ErrSendFailed)
		require.Zero(t, result.HTTPCode)
		require.NotEmpty(t, result.TransportErr)
	})
}
