// Package dedupe prevents a retried order-completion webhook from mailing
// the same files twice. It claims a per-order key in Redis with SET NX and a
// TTL; the pipeline itself stays stateless.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store hands out per-order delivery claims.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a Redis-backed claim store. ttl bounds how long a claim
// blocks re-delivery of the same order.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Claim represents ownership of one order's delivery attempt.
type Claim struct {
	client *redis.Client
	key    string
	value  string
}

// Claim tries to claim delivery of an order. It returns nil (no error) when
// another attempt already holds the claim.
func (s *Store) Claim(ctx context.Context, orderID string) (*Claim, error) {
	c := &Claim{
		client: s.client,
		key:    fmt.Sprintf("delivery:order:%s", orderID),
		value:  uuid.NewString(),
	}
	ok, err := s.client.SetNX(ctx, c.key, c.value, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claiming delivery for order %s: %w", orderID, err)
	}
	if !ok {
		return nil, nil
	}
	return c, nil
}

// Release frees the claim so the order can be re-delivered immediately, e.g.
// when the order lookup behind a claimed webhook fails. The Lua script only
// deletes the key if this claim still owns it.
func (c *Claim) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	_, err := script.Run(ctx, c.client, []string{c.key}, c.value).Result()
	return err
}
