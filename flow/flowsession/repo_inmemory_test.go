package flowsession_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/softcodex/go-oidc-relay/flow/flowsession"
)

func testSession() *flowsession.Session {
	return &flowsession.Session{
		State:  "abc123",
		Origin: "https://app.example/",
		ClientConfig: flowsession.ClientConfig{
			ClientID:     "client",
			ClientSecret: "secret",
			TenantID:     "t1",
		},
		CreatedAt: time.Now(),
	}
}

func TestInMemoryRepo_ConsumeRemovesSession(t *testing.T) {
	repo := flowsession.NewInMemoryRepo()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "key", testSession()))

	session, err := repo.Consume(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, "abc123", session.State)

	_, err = repo.Consume(ctx, "key")
	require.ErrorIs(t, err, flowsession.ErrNotFound)
}

func TestInMemoryRepo_ConsumeMissing(t *testing.T) {
	repo := flowsession.NewInMemoryRepo()

	_, err := repo.Consume(context.Background(), "absent")
	require.ErrorIs(t, err, flowsession.ErrNotFound)

	_, err = repo.Consume(context.Background(), "")
	require.ErrorIs(t, err, flowsession.ErrNotFound)
}

func TestInMemoryRepo_UpsertValidation(t *testing.T) {
	repo := flowsession.NewInMemoryRepo()

	require.Error(t, repo.Upsert(context.Background(), "", testSession()))
	require.Error(t, repo.Upsert(context.Background(), "key", nil))
}

func TestInMemoryRepo_UpsertOverwrites(t *testing.T) {
	repo := flowsession.NewInMemoryRepo()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "key", testSession()))

	second := testSession()
	second.State = "second"
	require.NoError(t, repo.Upsert(ctx, "key", second))

	session, err := repo.Consume(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, "second", session.State)
}

func TestInMemoryRepo_Delete(t *testing.T) {
	repo := flowsession.NewInMemoryRepo()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "key", testSession()))
	require.NoError(t, repo.Delete(ctx, "key"))

	_, err := repo.Consume(ctx, "key")
	require.ErrorIs(t, err, flowsession.ErrNotFound)
}

func TestInMemoryRepo_StoresCopies(t *testing.T) {
	repo := flowsession.NewInMemoryRepo()
	ctx := context.Background()

	original := testSession()
	require.NoError(t, repo.Upsert(ctx, "key", original))
	original.State = "mutated"

	session, err := repo.Consume(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, "abc123", session.State)
}

// Exactly one of N concurrent Consume calls may observe the session.
func TestInMemoryRepo_ConcurrentConsume(t *testing.T) {
	repo := flowsession.NewInMemoryRepo()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, "key", testSession()))

	const goroutines = 16
	var wg sync.WaitGroup
	winners := make(chan *flowsession.Session, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if session, err := repo.Consume(ctx, "key"); err == nil {
				winners <- session
			}
		}()
	}
	wg.Wait()
	close(winners)

	require.Len(t, winners, 1)
}
