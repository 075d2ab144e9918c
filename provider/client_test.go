package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/softcodex/go-oidc-relay/provider"
)

const (
	testTenantID     = "t1"
	testClientID     = "client-id-1"
	testClientSecret = "client-secret-1"
	testRedirectURI  = "https://relay.example/oidc/callback"
	signingSecret    = "test-signing-secret"
)

// mintAccessToken produces a signed JWT so token responses carry something
// shaped like what Entra ID returns.
func mintAccessToken(t *testing.T) string {
	t.Helper()

	claims := jwt.MapClaims{
		"aud": "https://graph.microsoft.com",
		"tid": testTenantID,
		"upn": "jdoe@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
	require.NoError(t, err)
	return signed
}

// fakeLogin serves /{tenant}/oauth2/v2.0/token like the Entra login host.
func fakeLogin(t *testing.T, accessToken string, status int, body map[string]any) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+testTenantID+"/oauth2/v2.0/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, testClientID, r.PostForm.Get("client_id"))
		require.Equal(t, testRedirectURI, r.PostForm.Get("redirect_uri"))

		if body == nil {
			body = map[string]any{
				"token_type":    "Bearer",
				"access_token":  accessToken,
				"refresh_token": "refresh-1",
				"expires_in":    3600,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func newClient(t *testing.T, loginBase, graphBase string) *provider.Client {
	t.Helper()

	return provider.New(provider.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		TenantID:     testTenantID,
		RedirectURI:  testRedirectURI,
	},
		provider.WithLoginBase(loginBase),
		provider.WithGraphBase(graphBase),
		provider.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	)
}

func TestClient_AuthorizationURL(t *testing.T) {
	client := provider.New(provider.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		TenantID:     testTenantID,
		RedirectURI:  testRedirectURI,
	})

	raw := client.AuthorizationURL("state-1")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	require.Equal(t, "login.microsoftonline.com", u.Host)
	require.Equal(t, "/"+testTenantID+"/oauth2/v2.0/authorize", u.Path)
	require.Equal(t, testClientID, u.Query().Get("client_id"))
	require.Equal(t, "state-1", u.Query().Get("state"))
	require.Equal(t, "code", u.Query().Get("response_type"))
	require.Contains(t, u.Query().Get("scope"), "User.Read")
}

func TestClient_Exchange(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		accessToken := mintAccessToken(t)
		login := fakeLogin(t, accessToken, http.StatusOK, nil)
		defer login.Close()

		client := newClient(t, login.URL, "http://unused.invalid")

		token, err := client.Exchange(context.Background(), "code-1")
		require.NoError(t, err)
		require.Equal(t, accessToken, token.AccessToken)
		require.Equal(t, "refresh-1", token.RefreshToken)
		require.WithinDuration(t, time.Now().Add(time.Hour), token.Expiry, time.Minute)
	})

	t.Run("provider rejects the code", func(t *testing.T) {
		login := fakeLogin(t, "", http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "AADSTS70008: expired code",
		})
		defer login.Close()

		client := newClient(t, login.URL, "http://unused.invalid")

		_, err := client.Exchange(context.Background(), "stale-code")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid_grant")
	})

	t.Run("response without access token", func(t *testing.T) {
		login := fakeLogin(t, "", http.StatusOK, map[string]any{
			"token_type": "Bearer",
			"expires_in": 3600,
		})
		defer login.Close()

		client := newClient(t, login.URL, "http://unused.invalid")

		_, err := client.Exchange(context.Background(), "code-1")
		require.Error(t, err)
	})
}

func TestClient_FetchProfile(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1.0/me", r.URL.Path)
			require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"mail":        "a@b.com",
				"displayName": "Jane Doe",
			})
		}))
		defer graph.Close()

		client := newClient(t, "http://unused.invalid", graph.URL)

		profile, err := client.FetchProfile(context.Background(), "token-1")
		require.NoError(t, err)
		require.Equal(t, "a@b.com", profile["mail"])
		require.Equal(t, "Jane Doe", profile["displayName"])
	})

	t.Run("non-2xx response", func(t *testing.T) {
		graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken"}}`))
		}))
		defer graph.Close()

		client := newClient(t, "http://unused.invalid", graph.URL)

		_, err := client.FetchProfile(context.Background(), "bad-token")
		require.Error(t, err)
		require.Contains(t, err.Error(), "401")
	})
}
