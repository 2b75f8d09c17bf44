package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock is an advisory lock around one (campaign, period) dispatch. The run
// record's unique index stays the authority; the lock only spares the loser of
// a race from preparing a run that will be rejected.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// NoopLock always succeeds
type NoopLock struct{}

func (NoopLock) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements RunLock with SET NX PX
type RedisRunLock struct {
	rc     redis.UniversalClient
	prefix string
}

func NewRedisRunLock(rc redis.UniversalClient, prefix string) *RedisRunLock {
	return &RedisRunLock{rc: rc, prefix: prefix}
}

func (l *RedisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	full := fmt.Sprintf("%slock:%s", l.prefix, key)
	token := uuid.NewString()
	ok, err := l.rc.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rc, []string{full}, token).Err()
	}
	return release, true, nil
}

func runLockKey(campaignID uint, periodKey string) string {
	return fmt.Sprintf("auto_campaign:%d:%s", campaignID, periodKey)
}
