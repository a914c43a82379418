package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease key only when it still carries this
// holder's token, so a lease that expired and was re-acquired by another
// process is never released by the stale holder.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Redis is a Lease backed by a shared Redis instance, using SET NX with a
// TTL. Safe across processes and machines.
type Redis struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, tokens: make(map[string]string)}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "acquire lease")
	}
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	r.tokens[key] = token
	r.mu.Unlock()
	return true, nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	token, held := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !held {
		return nil
	}

	if err := r.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		return errors.Wrap(err, "release lease")
	}
	return nil
}
