package limiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs window records with Redis sorted sets, which is what
// makes the budget global across replicas. Each event is a member scored by
// its own millisecond timestamp, so the lowest-scored member is always the
// window start.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing go-redis client. It pings once so a dead
// address fails at construction instead of on the first request.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &RedisStore{client: client}, nil
}

// Window fetches the earliest event and the record cardinality in a single
// pipelined round trip.
func (s *RedisStore) Window(ctx context.Context, key string) (time.Time, int64, error) {
	var (
		first *redis.ZSliceCmd
		card  *redis.IntCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		first = pipe.ZRangeWithScores(ctx, key, 0, 0)
		card = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	entries := first.Val()
	if len(entries) == 0 {
		return time.Time{}, 0, nil
	}
	return time.UnixMilli(int64(entries[0].Score)), card.Val(), nil
}

// Append inserts one event into the record.
func (s *RedisStore) Append(ctx context.Context, key string, at time.Time) error {
	if err := s.client.ZAdd(ctx, key, eventMember(at)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Restart replaces the record with a single event at the given time and
// bounds its lifetime to ttl. DEL, ZADD and EXPIRE run inside one MULTI/EXEC
// so concurrent callers never observe a half-reset record.
func (s *RedisStore) Restart(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZAdd(ctx, key, eventMember(at))
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Remove deletes the record.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// eventMember encodes an event as member and score both equal to the
// millisecond timestamp. Two events in the same millisecond collapse into
// one member; that costs at most one unit of accounting weight and is
// accepted.
func eventMember(at time.Time) redis.Z {
	ms := at.UnixMilli()
	return redis.Z{Score: float64(ms), Member: strconv.FormatInt(ms, 10)}
}
