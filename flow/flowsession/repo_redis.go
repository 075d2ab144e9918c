package flowsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "relay:flow:"

// DefaultTTL bounds how long an unconsumed flow session survives. The browser
// is expected back from the provider within seconds; anything older is stale.
const DefaultTTL = 10 * time.Minute

// RedisRepo stores flow sessions in Redis so multiple relay instances can serve
// the initiate and callback steps of the same flow.
type RedisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepo creates a Redis-backed flow session repository. A non-positive
// ttl falls back to DefaultTTL.
func NewRedisRepo(client *redis.Client, ttl time.Duration) *RedisRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepo{client: client, ttl: ttl}
}

// Upsert stores or replaces the session for a key with the repository TTL.
func (r *RedisRepo) Upsert(ctx context.Context, key string, session *Session) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}
	if session == nil {
		return errors.New("session cannot be nil")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal flow session: %w", err)
	}

	if err := r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store flow session: %w", err)
	}
	return nil
}

// Consume reads and deletes the session in one round trip. GETDEL is atomic on
// the server, so concurrent callbacks for the same key race safely: one wins,
// the rest see ErrNotFound.
func (r *RedisRepo) Consume(ctx context.Context, key string) (*Session, error) {
	if key == "" {
		return nil, ErrNotFound
	}

	data, err := r.client.GetDel(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume flow session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal flow session: %w", err)
	}
	return &session, nil
}

// Delete removes a session without reading it.
func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}

	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete flow session: %w", err)
	}
	return nil
}
