package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb redis.Cmdable, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Deduper claims ids with SET NX so each one is processed once per TTL.
type Deduper struct {
	rdb     redis.Cmdable
	service string
	ttl     time.Duration
}

func NewDeduper(rdb redis.Cmdable, service string) *Deduper {
	return &Deduper{rdb: rdb, service: service, ttl: TTLDedup}
}

func (d *Deduper) key(id string) string { return fmt.Sprintf(KeyDedup, d.service, id) }

// Claim returns true if id was not seen before.
func (d *Deduper) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, d.key(id), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim %s: %w", id, err)
	}
	return ok, nil
}

// Release forgets id so a redelivery is processed again.
func (d *Deduper) Release(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, d.key(id)).Err()
}

// MembershipCache stores only positive results; a user who just joined is
// never held back by a cached refusal.
type MembershipCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewMembershipCache(rdb redis.Cmdable) *MembershipCache {
	return &MembershipCache{rdb: rdb, ttl: TTLMember}
}

func (c *MembershipCache) Subscribed(ctx context.Context, channel string, userID int64) (bool, error) {
	return Exists(ctx, c.rdb, fmt.Sprintf(KeyMember, channel, userID))
}

func (c *MembershipCache) MarkSubscribed(ctx context.Context, channel string, userID int64) error {
	return c.rdb.Set(ctx, fmt.Sprintf(KeyMember, channel, userID), "1", c.ttl).Err()
}
