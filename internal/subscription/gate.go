// Package subscription decides whether a user may use the buyer flows.
package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"go.uber.org/zap"
)

// Cache remembers positive membership results for a short while.
type Cache interface {
	Subscribed(ctx context.Context, channel string, userID int64) (bool, error)
	MarkSubscribed(ctx context.Context, channel string, userID int64) error
}

type Gate struct {
	checker gateway.MembershipChecker
	channel string
	timeout time.Duration
	cache   Cache // optional
	log     *zap.SugaredLogger
}

func NewGate(checker gateway.MembershipChecker, channel string, timeout time.Duration, log *zap.SugaredLogger) *Gate {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Gate{checker: checker, channel: channel, timeout: timeout, log: log}
}

func (g *Gate) WithCache(c Cache) *Gate {
	g.cache = c
	return g
}

func (g *Gate) Channel() string { return g.channel }

// JoinURL is the public link of the mandatory channel.
func (g *Gate) JoinURL() string {
	return "https://t.me/" + strings.TrimPrefix(g.channel, "@")
}

// Check returns nil only for member, administrator or creator. Every other
// status, a lookup error or a timeout yields ErrNotSubscribed.
func (g *Gate) Check(ctx context.Context, userID int64) error {
	if g.cache != nil {
		if ok, err := g.cache.Subscribed(ctx, g.channel, userID); err == nil && ok {
			return nil
		} else if err != nil {
			g.log.Debugw("membership cache read failed", "user_id", userID, "error", err)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	status, err := g.checker.MembershipStatus(cctx, g.channel, userID)
	if err != nil {
		g.log.Warnw("membership lookup failed", "user_id", userID, "channel", g.channel, "error", err)
		return fmt.Errorf("membership lookup: %v: %w", err, orders.ErrNotSubscribed)
	}
	if !status.Subscribed() {
		return fmt.Errorf("status %q: %w", status, orders.ErrNotSubscribed)
	}

	if g.cache != nil {
		if err := g.cache.MarkSubscribed(ctx, g.channel, userID); err != nil {
			g.log.Debugw("membership cache write failed", "user_id", userID, "error", err)
		}
	}
	return nil
}
