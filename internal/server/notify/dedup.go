package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupTTL keeps a claim long enough to cover one daily run plus slack.
const DedupTTL = 48 * time.Hour

// Deduper records which reminders were sent on a given day.
type Deduper interface {
	// Claim reports whether the caller is first to send the reminder for
	// rentalID on day.
	Claim(ctx context.Context, rentalID string, day time.Time) (bool, error)
	// Release drops a claim whose reminder could not be sent.
	Release(ctx context.Context, rentalID string, day time.Time) error
}

func dedupKey(rentalID string, day time.Time) string {
	return "reminder:" + rentalID + ":" + day.UTC().Format(time.DateOnly)
}

type redisAPI interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisDeduper keeps claims in Redis so several processes share them.
type RedisDeduper struct {
	rdb redisAPI
}

func NewRedisDeduper(rdb redis.Cmdable) *RedisDeduper {
	return &RedisDeduper{rdb: rdb}
}

// NewRedisClient connects to addr.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
}

func (d *RedisDeduper) Claim(ctx context.Context, rentalID string, day time.Time) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, dedupKey(rentalID, day), 1, DedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, rentalID string, day time.Time) error {
	if err := d.rdb.Del(ctx, dedupKey(rentalID, day)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// MemoryDeduper keeps claims in process memory.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: map[string]struct{}{}}
}

func (d *MemoryDeduper) Claim(_ context.Context, rentalID string, day time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := dedupKey(rentalID, day)
	if _, ok := d.seen[k]; ok {
		return false, nil
	}
	d.seen[k] = struct{}{}
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, rentalID string, day time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, dedupKey(rentalID, day))
	return nil
}
