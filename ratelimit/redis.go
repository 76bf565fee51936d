package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// slidingWindow counts a hit in KEYS[1] (current bucket) unless the hits of
// KEYS[2] (previous bucket), weighted by ARGV[1], plus those of KEYS[1]
// reach the limit ARGV[2]. ARGV[3] is the bucket lifetime in milliseconds.
var slidingWindow = redis.NewScript(`
local prev = tonumber(redis.call("GET", KEYS[2]) or "0")
local curr = tonumber(redis.call("GET", KEYS[1]) or "0")
if prev * tonumber(ARGV[1]) + curr >= tonumber(ARGV[2]) then
	return 0
end
redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

// RedisLimiter is the sliding window limiter of MemoryLimiter shared between
// instances through Redis. If Redis is unavailable requests are allowed.
type RedisLimiter struct {
	client  redis.UniversalClient
	limit   int
	window  time.Duration
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewRedisLimiter creates a RedisLimiter
func NewRedisLimiter(client redis.UniversalClient, limit int, w time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if w <= 0 {
		w = DefaultWindow
	}
	return &RedisLimiter{
		client:  client,
		limit:   limit,
		window:  w,
		prefix:  "certify:ratelimit:",
		timeout: 250 * time.Millisecond,
		now:     time.Now,
	}
}

// buckets returns the keys of the current and the previous bucket, the
// bucket start and the weight of the previous bucket at now
func (l *RedisLimiter) buckets(key string, now time.Time) (curr, prev string, start time.Time, weight float64) {
	start = now.Truncate(l.window)
	n := start.UnixMilli() / l.window.Milliseconds()
	base := l.prefix + "{" + key + "}:"
	curr = base + strconv.FormatInt(n, 10)
	prev = base + strconv.FormatInt(n-1, 10)
	weight = 1 - float64(now.Sub(start))/float64(l.window)
	return
}

// Allow implements the Limiter interface
func (l *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	curr, prev, _, weight := l.buckets(key, l.now())
	ok, err := slidingWindow.Run(
		ctx, l.client, []string{curr, prev},
		weight, l.limit, (2 * l.window).Milliseconds(),
	).Int()
	if err != nil {
		log.WithError(err).Warn("rate limiter unavailable; allowing request")
		return true
	}
	return ok == 1
}

// RetryAfter returns how long key has to wait until a request is allowed
// again
func (l *RedisLimiter) RetryAfter(key string) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	now := l.now()
	curr, prev, start, _ := l.buckets(key, now)
	vals, err := l.client.MGet(ctx, curr, prev).Result()
	if err != nil {
		return l.window
	}
	c := counter{
		start: start,
		curr:  hits(vals[0]),
		prev:  hits(vals[1]),
	}
	return c.wait(now, l.window, l.limit)
}

func hits(v any) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
