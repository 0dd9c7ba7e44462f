package redisx

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Deduper {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return NewDeduper(rdb, "test-"+uuid.NewString())
}

func TestDeduper_ClaimOnce(t *testing.T) {
	d := testClient(t)
	ctx := context.Background()

	ok, err := d.Claim(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Claim(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Release(ctx, "42"))
	ok, err = d.Claim(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMembershipCache(t *testing.T) {
	d := testClient(t)
	c := NewMembershipCache(d.rdb)
	ctx := context.Background()
	channel := "@" + d.service

	ok, err := c.Subscribed(ctx, channel, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.MarkSubscribed(ctx, channel, 7))
	ok, err = c.Subscribed(ctx, channel, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}
