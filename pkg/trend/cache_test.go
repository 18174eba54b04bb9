package trend

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCacheMiss(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewRedisCache(client, "")

	got, ok, err := c.Get(context.Background(), "gmail automation|US")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Trend{}, got)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisCache(client, "")
	ctx := context.Background()

	want := Trend{
		Score:         20,
		Direction:     workflow.DirectionUp,
		AvgInterest:   42.5,
		Signal:        "rising (start 10.0, end 30.0)",
		GrowthPct:     66.7,
		MonthlyVolume: 4250,
	}
	require.NoError(t, c.Set(ctx, "slack automation|IN", want, 12*time.Hour))

	got, ok, err := c.Get(ctx, "slack automation|IN")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.True(t, mr.Exists("flowrank:trend:slack automation|IN"))
	assert.Equal(t, 12*time.Hour, mr.TTL("flowrank:trend:slack automation|IN"))

	mr.FastForward(13 * time.Hour)
	_, ok, err = c.Get(ctx, "slack automation|IN")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheCustomPrefix(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisCache(client, "test:")

	require.NoError(t, c.Set(context.Background(), "k", Default(), 0))
	assert.True(t, mr.Exists("test:k"))
	assert.False(t, mr.Exists("flowrank:trend:k"))
	assert.Equal(t, time.Duration(0), mr.TTL("test:k"))
}

func TestRedisCacheCorruptValue(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisCache(client, "")
	require.NoError(t, mr.Set("flowrank:trend:bad", "not json"))

	_, ok, err := c.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestClassifierUsesRedisCache(t *testing.T) {
	mr, client := newTestRedis(t)
	f := &fakeFetcher{values: []float64{10, 10, 10, 20, 30, 30}}
	c := NewClassifier(f, WithCache(NewRedisCache(client, ""), time.Hour))
	ctx := context.Background()

	first, err := c.Lookup(ctx, "Gmail Automation", "us")
	require.NoError(t, err)
	second, err := c.Lookup(ctx, "gmail automation", "US")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, time.Hour, mr.TTL("flowrank:trend:gmail automation|US"))
}

func TestClassifierRedisDownStillFetches(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	f := &fakeFetcher{values: []float64{10, 10, 10, 10, 10, 10}}
	c := NewClassifier(f, WithCache(NewRedisCache(client, ""), time.Hour))

	got, err := c.Lookup(context.Background(), "Notion Automation", "US")
	require.NoError(t, err)
	assert.Equal(t, workflow.DirectionStable, got.Direction)
	assert.Equal(t, int32(1), f.calls.Load())
}
