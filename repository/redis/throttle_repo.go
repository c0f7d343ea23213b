package redis

import (
	"context"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/settlement/repository"
)

// fixedWindowScript counts a hit and sets the window expiry on the first hit.
// KEYS[1] = counter key
// ARGV[1] = window length in milliseconds
var fixedWindowScript = redislib.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

type throttleRepository struct {
	client redislib.Scripter
	prefix string
}

// NewThrottleRepository creates a Redis-backed fixed-window counter.
func NewThrottleRepository(client redislib.Scripter) repository.ThrottleRepository {
	return &throttleRepository{
		client: client,
		prefix: "throttle:",
	}
}

func (r *throttleRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	if limit <= 0 {
		return true, 0, nil
	}
	if window <= 0 {
		window = time.Minute
	}

	count, err := fixedWindowScript.Run(ctx, r.client, []string{r.key(key, window)}, window.Milliseconds()).Int()
	if err != nil {
		return false, 0, err
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, remaining, nil
}

func (r *throttleRepository) key(key string, window time.Duration) string {
	slot := time.Now().UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("%s%s:%d", r.prefix, key, slot)
}
