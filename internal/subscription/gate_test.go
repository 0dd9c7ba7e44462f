package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	"github.com/ariefcatur/go-chat-orders/internal/gateway/gatewaytest"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGate_Statuses(t *testing.T) {
	cases := []struct {
		status gateway.MemberStatus
		pass   bool
	}{
		{gateway.MemberMember, true},
		{gateway.MemberAdministrator, true},
		{gateway.MemberCreator, true},
		{gateway.MemberRestricted, false},
		{gateway.MemberLeft, false},
		{gateway.MemberKicked, false},
		{"", false},
		{"unknown", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			f := gatewaytest.New()
			f.SetMember(1, tc.status)
			err := NewGate(f, "@shop", time.Second, zap.NewNop().Sugar()).Check(context.Background(), 1)
			if tc.pass {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, orders.ErrNotSubscribed)
			}
		})
	}
}

func TestGate_ErrorFailsClosed(t *testing.T) {
	f := gatewaytest.New()
	f.SetMember(1, gateway.MemberMember)
	f.MemberErr = errors.New("upstream 502")
	err := NewGate(f, "@shop", time.Second, zap.NewNop().Sugar()).Check(context.Background(), 1)
	assert.ErrorIs(t, err, orders.ErrNotSubscribed)
}

func TestGate_TimeoutFailsClosed(t *testing.T) {
	f := gatewaytest.New()
	f.SetMember(1, gateway.MemberMember)
	f.MemberDelay = time.Second
	start := time.Now()
	err := NewGate(f, "@shop", 20*time.Millisecond, zap.NewNop().Sugar()).Check(context.Background(), 1)
	assert.ErrorIs(t, err, orders.ErrNotSubscribed)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

type mapCache struct {
	mu sync.Mutex
	m  map[int64]bool
}

func (c *mapCache) Subscribed(ctx context.Context, channel string, userID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[userID], nil
}

func (c *mapCache) MarkSubscribed(ctx context.Context, channel string, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[userID] = true
	return nil
}

func TestGate_CachesOnlyPositive(t *testing.T) {
	f := gatewaytest.New()
	cache := &mapCache{m: map[int64]bool{}}
	g := NewGate(f, "@shop", time.Second, zap.NewNop().Sugar()).WithCache(cache)
	ctx := context.Background()

	require.ErrorIs(t, g.Check(ctx, 1), orders.ErrNotSubscribed)
	assert.False(t, cache.m[1])

	f.SetMember(1, gateway.MemberMember)
	require.NoError(t, g.Check(ctx, 1))
	assert.True(t, cache.m[1])

	// served from cache even when the lookup would now fail
	f.MemberErr = errors.New("down")
	assert.NoError(t, g.Check(ctx, 1))
}

func TestGate_JoinURL(t *testing.T) {
	assert.Equal(t, "https://t.me/shop", NewGate(nil, "@shop", 0, zap.NewNop().Sugar()).JoinURL())
}
