package throttle

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cluster coordinates rate-limit capacity across multiple engine processes
// sharing a provider. This is the clustered analogue of the single-process
// token bucket: Acquire/Report still enforce the process-local buckets
// unconditionally, and Cluster is consulted opportunistically on top of
// that, mirroring the AIMD adaptive limiter pattern used for the reasoning
// model client.
type Cluster interface {
	// Backoff signals that provider was rate-limited; implementations
	// typically halve a shared effective-capacity value.
	Backoff(ctx context.Context, provider string)
	// Probe signals a sustained success; implementations typically grow the
	// shared effective-capacity value additively, up to its ceiling.
	Probe(ctx context.Context, provider string)
}

// RedisCluster implements Cluster over a Redis key per provider holding the
// current shared tokens-per-minute budget as a decimal string. Updates
// use optimistic compare-and-set (WATCH/MULTI) so concurrent backoffs from
// different processes never overwrite each other silently.
type RedisCluster struct {
	rdb        *redis.Client
	keyPrefix  string
	floor      float64
	ceiling    float64
	step       float64
	opTimeout  time.Duration
}

// RedisClusterOptions configures a RedisCluster.
type RedisClusterOptions struct {
	KeyPrefix string
	Floor     float64
	Ceiling   float64
	Step      float64
	OpTimeout time.Duration
}

// NewRedisCluster builds a RedisCluster. Redis unavailability during any
// individual operation degrades to a silent no-op (the error is dropped,
// not logged) — it never blocks Acquire, which only consults the
// process-local buckets.
func NewRedisCluster(rdb *redis.Client, opts RedisClusterOptions) *RedisCluster {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "dagforge:throttle:"
	}
	timeout := opts.OpTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisCluster{
		rdb:       rdb,
		keyPrefix: prefix,
		floor:     opts.Floor,
		ceiling:   opts.Ceiling,
		step:      opts.Step,
		opTimeout: timeout,
	}
}

func (c *RedisCluster) key(provider string) string { return c.keyPrefix + provider }

// Backoff halves the shared budget for provider, clamped to the configured
// floor, using optimistic retry so a concurrent writer cannot be silently
// overwritten.
func (c *RedisCluster) Backoff(ctx context.Context, provider string) {
	c.adjust(ctx, provider, func(cur float64) float64 {
		next := cur * 0.5
		if next < c.floor {
			next = c.floor
		}
		return next
	})
}

// Probe grows the shared budget for provider by one recovery step, clamped
// to the configured ceiling.
func (c *RedisCluster) Probe(ctx context.Context, provider string) {
	c.adjust(ctx, provider, func(cur float64) float64 {
		next := cur + c.step
		if next > c.ceiling {
			next = c.ceiling
		}
		return next
	})
}

const maxClusterCASAttempts = 3

func (c *RedisCluster) adjust(ctx context.Context, provider string, f func(float64) float64) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	key := c.key(provider)
	for i := 0; i < maxClusterCASAttempts; i++ {
		err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			curStr, err := tx.Get(ctx, key).Result()
			if err == redis.Nil {
				curStr = strconv.FormatFloat(c.ceiling, 'f', -1, 64)
			} else if err != nil {
				return err
			}
			cur, err := strconv.ParseFloat(curStr, 64)
			if err != nil {
				cur = c.ceiling
			}
			next := f(cur)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, strconv.FormatFloat(next, 'f', -1, 64), 0)
				return nil
			})
			return err
		}, key)
		if err == nil {
			return
		}
		if err == redis.TxFailedErr {
			continue
		}
		return
	}
}

// CurrentBudget reads the shared budget for provider, or fallback if unset
// or Redis is unreachable.
func (c *RedisCluster) CurrentBudget(ctx context.Context, provider string, fallback float64) float64 {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	v, err := c.rdb.Get(ctx, c.key(provider)).Result()
	if err != nil {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
