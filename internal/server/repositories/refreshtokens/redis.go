package refreshtokens

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rotateScript = `
local current = redis.call("GET", KEYS[1])
if not current or current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// RedisRepository keeps one key per user holding the fingerprint. Keys
// expire together with the refresh token they describe.
type RedisRepository struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisRepository returns a repository writing keys under prefix with
// the given expiry.
func NewRedisRepository(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisRepository {
	return &RedisRepository{redis: client, prefix: prefix, ttl: ttl}
}

func (r *RedisRepository) key(userID string) string {
	return r.prefix + userID
}

func (r *RedisRepository) Set(ctx context.Context, userID, digest string) error {
	if err := r.redis.Set(ctx, r.key(userID), digest, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) CompareAndSwap(ctx context.Context, userID, expected, next string) (bool, error) {
	if expected == "" {
		return false, nil
	}

	res, err := rotateLua.Run(ctx, r.redis, []string{r.key(userID)}, expected, next, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return res == 1, nil
}

func (r *RedisRepository) Clear(ctx context.Context, userID string) error {
	if err := r.redis.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
