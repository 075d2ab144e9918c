package server_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/softcodex/go-oidc-relay/audit"
	"github.com/softcodex/go-oidc-relay/flow"
	"github.com/softcodex/go-oidc-relay/flow/flowsession"
	"github.com/softcodex/go-oidc-relay/internal/config"
	"github.com/softcodex/go-oidc-relay/internal/metrics"
	"github.com/softcodex/go-oidc-relay/mailrelay"
	"github.com/softcodex/go-oidc-relay/provider"
	"github.com/softcodex/go-oidc-relay/server"
)

const (
	fixtureClientID     = "ambient-client-id"
	fixtureClientSecret = "ambient-client-secret"
	fixtureLoginHost    = "login.microsoftonline.com"
	fixtureOrigin       = "https://app.example.com/welcome"
)

// fakeProviderClient stands in for the Entra adapter so handler tests never
// touch the network.
type fakeProviderClient struct {
	mu sync.Mutex

	token       *provider.Token
	exchangeErr error
	profile     map[string]any
	profileErr  error

	exchangeCalls  int
	profileCalls   int
	gotCode        string
	gotRedirectURI string
	gotConfig      flowsession.ClientConfig
}

func (f *fakeProviderClient) Exchange(_ context.Context, code string) (*provider.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeCalls++
	f.gotCode = code
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeProviderClient) FetchProfile(_ context.Context, _ string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

type testFixture struct {
	srv      *server.Server
	sink     *audit.MemorySink
	sessions *flowsession.InMemoryRepo
	provider *fakeProviderClient
}

// newTestFixture wires a full server around in-memory collaborators. The mail
// relay posts to mailEndpoint; flow-only tests pass an unused placeholder.
func newTestFixture(t *testing.T, mailEndpoint string) *testFixture {
	t.Helper()

	fake := &fakeProviderClient{
		token: &provider.Token{
			AccessToken:  "access-token-1",
			RefreshToken: "refresh-token-1",
			Expiry:       time.Now().Add(time.Hour),
		},
		profile: map[string]any{
			"mail":        "jdoe@example.com",
			"displayName": "Jane Doe",
		},
	}
	sessions := flowsession.NewInMemoryRepo()

	factory := func(cfg flowsession.ClientConfig, redirectURI string) flow.ProviderClient {
		fake.mu.Lock()
		fake.gotConfig = cfg
		fake.gotRedirectURI = redirectURI
		fake.mu.Unlock()
		return fake
	}

	controller, err := flow.NewController(fixtureClientID, fixtureClientSecret, fixtureLoginHost, sessions, factory)
	require.NoError(t, err)

	if mailEndpoint == "" {
		mailEndpoint = "http://unused.invalid"
	}

	sink := audit.NewMemorySink()
	srv, err := server.New(config.New(), server.Deps{
		Flow:    controller,
		Mail:    mailrelay.New(mailrelay.WithEndpoint(mailEndpoint), mailrelay.WithHTTPClient(&http.Client{Timeout: 5 * time.Second})),
		Audit:   sink,
		Metrics: metrics.New(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	return &testFixture{srv: srv, sink: sink, sessions: sessions, provider: fake}
}

// lastAudit asserts exactly want records were written and returns the newest.
func (f *testFixture) lastAudit(t *testing.T, want int) audit.Record {
	t.Helper()
	records := f.sink.Records()
	require.Len(t, records, want)
	return records[len(records)-1]
}
