package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/firmasegura/certifications-backend/pkg/config"
)

type fakeCommands struct {
	values  map[string]string
	counter map[string]int64
	expires map[string]time.Duration
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		values:  map[string]string{},
		counter: map[string]int64{},
		expires: map[string]time.Duration{},
	}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := f.values[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counter[key]++
	return redis.NewIntResult(f.counter[key], nil)
}

func (f *fakeCommands) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.values, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestFixedWindowAllowCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	cmds := newFakeCommands()
	client := &Client{cmds: cmds}

	want := []bool{true, true, false}
	for i, expected := range want {
		allowed, count, err := client.FixedWindowAllow(ctx, "upload:user-1", 2, time.Minute)
		require.NoError(t, err)
		require.Equal(t, expected, allowed, "hit %d", i+1)
		require.EqualValues(t, i+1, count)
	}

	key := client.RateLimitKey("upload:user-1")
	require.Len(t, cmds.expires, 1)
	require.Equal(t, time.Minute, cmds.expires[key])
}

func TestIdempotencyRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmds: newFakeCommands()}
	key := client.IdempotencyKey("user-1:POST:/api/v1/certifications", "abc")

	first, err := client.SetNX(ctx, key, "pending", time.Hour)
	require.NoError(t, err)
	require.True(t, first)

	second, err := client.SetNX(ctx, key, "pending", time.Hour)
	require.NoError(t, err)
	require.False(t, second)

	require.NoError(t, client.Set(ctx, key, "done", time.Hour))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "done", got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestZeroClientReturnsNotInitialized(t *testing.T) {
	ctx := context.Background()
	client := &Client{}

	require.ErrorIs(t, client.Ping(ctx), ErrNotInitialized)
	_, err := client.SetNX(ctx, "k", "v", time.Second)
	require.ErrorIs(t, err, ErrNotInitialized)
	_, _, err = client.FixedWindowAllow(ctx, "scope", 1, time.Second)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.RedisConfig
		addr    string
		db      int
		pool    int
		wantErr bool
	}{
		{name: "url keeps its db", cfg: config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7}, addr: "localhost:6379", db: 2, pool: 7},
		{name: "address", cfg: config.RedisConfig{Address: "cache:6380", DB: 3, PoolSize: 4}, addr: "cache:6380", db: 3, pool: 4},
		{name: "missing", cfg: config.RedisConfig{}, wantErr: true},
		{name: "bad url", cfg: config.RedisConfig{URL: "http://nope"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := optionsFromConfig(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.addr, opts.Addr)
			require.Equal(t, tc.db, opts.DB)
			require.Equal(t, tc.pool, opts.PoolSize)
		})
	}
}

func TestKeysAreNamespaced(t *testing.T) {
	client := &Client{}
	require.Equal(t, "certify:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "certify:idempotency:id", client.IdempotencyKey(" ", "id"))
	require.Equal(t, "certify:rate_limit:scope", client.RateLimitKey("scope"))
	require.Equal(t, "certify:lock:cron-worker", client.LockKey("cron-worker"))
}
