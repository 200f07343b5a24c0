package user

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTimeout bounds every directory round trip.
const redisTimeout = 2 * time.Second

// profileKey returns the Redis key for a user's profile hash.
func profileKey(id ID) string {
	return "user:" + strconv.FormatInt(int64(id), 10) + ":profile"
}

// RedisDirectory stores each profile as a Redis hash.
type RedisDirectory struct {
	client redis.Cmdable
}

// NewRedisDirectory creates a RedisDirectory on top of client.
func NewRedisDirectory(client redis.Cmdable) *RedisDirectory {
	return &RedisDirectory{client: client}
}

// Get reads the profile hash. A missing hash yields an empty profile.
func (d *RedisDirectory) Get(ctx context.Context, id ID) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	p := &Profile{}
	if err := d.client.HGetAll(ctx, profileKey(id)).Scan(p); err != nil {
		return nil, fmt.Errorf("redis: read profile %d: %w", id, err)
	}
	p.ID = id
	return p, nil
}

func (d *RedisDirectory) SetDemographics(ctx context.Context, id ID, gender Gender, ageBand, region string) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	err := d.client.HSet(ctx, profileKey(id),
		"gender", string(gender),
		"age_band", ageBand,
		"region", region,
	).Err()
	if err != nil {
		return fmt.Errorf("redis: write profile %d: %w", id, err)
	}
	return nil
}

func (d *RedisDirectory) RecordChat(ctx context.Context, id ID) error {
	return d.incr(ctx, id, "chats", "points")
}

func (d *RedisDirectory) RecordRating(ctx context.Context, id ID, kind Rating) error {
	if kind == RatingPositive {
		return d.incr(ctx, id, "ratings_positive", "points")
	}
	return d.incr(ctx, id, "ratings_negative")
}

// incr bumps each field by one inside a MULTI/EXEC block.
func (d *RedisDirectory) incr(ctx context.Context, id ID, fields ...string) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	key := profileKey(id)
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, f := range fields {
			pipe.HIncrBy(ctx, key, f, 1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: update counters for %d: %w", id, err)
	}
	return nil
}
