package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle_Spacing(t *testing.T) {
	th := NewThrottle(40 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, th.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestThrottle_Unlimited(t *testing.T) {
	th := NewThrottle(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, th.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestThrottle_Backoff(t *testing.T) {
	th := NewThrottle(0)
	th.Backoff(60 * time.Millisecond)
	th.Backoff(time.Millisecond)

	start := time.Now()
	require.NoError(t, th.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "shorter backoff does not cut the longer one")
}

func TestThrottle_WaitHonoursContext(t *testing.T) {
	th := NewThrottle(0)
	th.Backoff(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.DeadlineExceeded)
}

func TestMemoryLimiter_Allow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	tests := []struct {
		name   string
		caller string
		want   bool
	}{
		{"first", "10.0.0.1", true},
		{"second", "10.0.0.1", true},
		{"third", "10.0.0.1", true},
		{"over budget", "10.0.0.1", false},
		{"other caller unaffected", "10.0.0.2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := l.Allow(ctx, tt.caller)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	now = now.Add(20 * time.Second)
	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok, "one token refills every window/limit")

	now = now.Add(2 * time.Minute)
	_, _ = l.Allow(ctx, "10.0.0.3")
	l.mu.Lock()
	_, kept := l.callers["10.0.0.2"]
	l.mu.Unlock()
	assert.False(t, kept, "idle callers are pruned")
}

func TestRedisLimiter_Key(t *testing.T) {
	l := newRedisLimiter(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), RedisConfig{Limit: 2, Window: time.Minute})
	defer l.Close()

	t0 := time.Unix(600, 0)
	assert.Equal(t, "dossier:ratelimit:ip:10", l.key("ip", t0))
	assert.Equal(t, l.key("ip", t0), l.key("ip", t0.Add(59*time.Second)))
	assert.NotEqual(t, l.key("ip", t0), l.key("ip", t0.Add(time.Minute)))
}

func TestRedisLimiter_Allow(t *testing.T) {
	addr := os.Getenv("DOSSIER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DOSSIER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	l, err := NewRedisLimiter(ctx, RedisConfig{
		Addr:   addr,
		Prefix: "dossier:test:" + t.Name() + ":" + time.Now().Format("150405.000000"),
		Limit:  2,
		Window: time.Minute,
	})
	require.NoError(t, err)
	defer l.Close()

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "caller")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i+1)
	}
}
