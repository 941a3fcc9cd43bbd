package cache

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable Redis, e.g. REDIS_TEST_ADDR=localhost:6379.
func testClient(t *testing.T) *RedisClient {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	c, err := NewRedisClient(context.Background(), addr, os.Getenv("REDIS_TEST_PASSWORD"), 15)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAllowAction_Burst(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		ok, err := c.AllowAction(ctx, user, "chat", 0.001, 3)
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i)
	}
	ok, err := c.AllowAction(ctx, user, "chat", 0.001, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	// buckets are per user
	ok, err = c.AllowAction(ctx, uuid.New(), "chat", 0.001, 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestViewers(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	video := uuid.New()
	t.Cleanup(func() { c.ClearViewers(ctx, video) })

	require.NoError(t, c.AddViewer(ctx, video, "a"))
	require.NoError(t, c.AddViewer(ctx, video, "b"))
	require.NoError(t, c.AddViewer(ctx, video, "a"))

	n, err := c.CountViewers(ctx, video)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, c.RemoveViewer(ctx, video, "a"))
	n, err = c.CountViewers(ctx, video)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
