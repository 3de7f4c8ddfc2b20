// Package cache provides an optional Redis read-through cache for user
// lookups on the hot log-query path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/tracker/internal/domain"
)

// Connect opens and pings a Redis client from a URL.
func Connect(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

// Users is a read-through cache satisfying domain.UserLookup. Users are
// immutable after creation, so entries only ever leave by TTL and no
// invalidation is needed. Cache failures degrade to the underlying lookup.
type Users struct {
	rdb  *redis.Client
	next domain.UserLookup
	ttl  time.Duration
}

// NewUsers wraps the given lookup with a Redis cache.
func NewUsers(rdb *redis.Client, next domain.UserLookup, ttl time.Duration) *Users {
	return &Users{rdb: rdb, next: next, ttl: ttl}
}

// GetUser resolves a user, preferring the cache. Misses and cache errors fall
// through to the wrapped lookup; negative results are not cached so a user
// registered moments ago resolves immediately.
func (c *Users) GetUser(ctx context.Context, id string) (*domain.User, error) {
	key := "tracker:user:" + id

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var user domain.User
		if unmarshalErr := json.Unmarshal(raw, &user); unmarshalErr == nil {
			return &user, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("user cache read failed: %v", err)
	}

	user, err := c.next.GetUser(ctx, id)
	if err != nil || user == nil {
		return user, err
	}

	if body, marshalErr := json.Marshal(user); marshalErr == nil {
		if setErr := c.rdb.Set(ctx, key, body, c.ttl).Err(); setErr != nil {
			log.Printf("user cache write failed: %v", setErr)
		}
	}
	return user, nil
}
