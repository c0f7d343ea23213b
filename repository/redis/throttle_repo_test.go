package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterScripter evaluates the fixed window script against an in-process map.
type counterScripter struct {
	counts map[string]int64
	ttls   map[string]interface{}
	err    error
}

func newCounterScripter() *counterScripter {
	return &counterScripter{counts: map[string]int64{}, ttls: map[string]interface{}{}}
}

func (s *counterScripter) eval(ctx context.Context, keys []string, args ...interface{}) *redislib.Cmd {
	cmd := redislib.NewCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	s.counts[keys[0]]++
	if s.counts[keys[0]] == 1 {
		s.ttls[keys[0]] = args[0]
	}
	cmd.SetVal(s.counts[keys[0]])
	return cmd
}

func (s *counterScripter) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redislib.Cmd {
	return s.eval(ctx, keys, args...)
}

func (s *counterScripter) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redislib.Cmd {
	return s.eval(ctx, keys, args...)
}

func (s *counterScripter) EvalRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redislib.Cmd {
	return s.eval(ctx, keys, args...)
}

func (s *counterScripter) EvalShaRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redislib.Cmd {
	return s.eval(ctx, keys, args...)
}

func (s *counterScripter) ScriptExists(ctx context.Context, hashes ...string) *redislib.BoolSliceCmd {
	cmd := redislib.NewBoolSliceCmd(ctx)
	cmd.SetVal(make([]bool, len(hashes)))
	return cmd
}

func (s *counterScripter) ScriptLoad(ctx context.Context, _ string) *redislib.StringCmd {
	cmd := redislib.NewStringCmd(ctx)
	cmd.SetVal("sha")
	return cmd
}

func TestAllowCountsWithinWindow(t *testing.T) {
	scripter := newCounterScripter()
	repo := NewThrottleRepository(scripter)
	ctx := context.Background()
	window := time.Hour

	for want := 2; want >= 0; want-- {
		allowed, remaining, err := repo.Allow(ctx, "stripe:10.0.0.1", 3, window)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, want, remaining)
	}

	allowed, remaining, err := repo.Allow(ctx, "stripe:10.0.0.1", 3, window)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)

	allowed, _, err = repo.Allow(ctx, "stripe:10.0.0.2", 3, window)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.Len(t, scripter.ttls, 2)
	for key, ttl := range scripter.ttls {
		assert.Contains(t, key, "throttle:stripe:")
		assert.Equal(t, window.Milliseconds(), ttl)
	}
}

func TestAllowWithoutLimitSkipsRedis(t *testing.T) {
	scripter := newCounterScripter()
	allowed, _, err := NewThrottleRepository(scripter).Allow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, scripter.counts)
}

func TestAllowSurfacesRedisErrors(t *testing.T) {
	scripter := newCounterScripter()
	scripter.err = errors.New("dial tcp: connection refused")

	allowed, _, err := NewThrottleRepository(scripter).Allow(context.Background(), "k", 5, time.Minute)
	assert.Error(t, err)
	assert.False(t, allowed)
}
