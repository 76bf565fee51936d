// Package cache provides the process wide response cache. Values are msgpack
// encoded and kept either in memory or in Redis.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/TwiN/gocache/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// Subsystems used for building cache keys
const (
	KeyVerification = "verification"
)

const keyPrefix = "certify"

type backend interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	del(ctx context.Context, key string) error
}

var (
	mu      sync.RWMutex
	current backend = newMemoryBackend()
)

func active() backend {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func use(b backend) {
	mu.Lock()
	defer mu.Unlock()
	if m, ok := current.(*memoryBackend); ok {
		m.cache.StopJanitor()
	}
	current = b
}

// UseRedisCache switches the cache to Redis
func UseRedisCache(opts *redis.Options) error {
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "could not connect to redis")
	}
	use(&redisBackend{client: client})
	return nil
}

// UseMemoryCache switches the cache to a fresh in-memory cache
func UseMemoryCache() {
	use(newMemoryBackend())
}

// Disable turns caching off; Get never finds anything
func Disable() {
	use(noopBackend{})
}

// Key builds a cache key for a subsystem
func Key(subsystem string, parts ...string) string {
	return strings.Join(append([]string{keyPrefix, subsystem}, parts...), ":")
}

// Get reads the value for key into target. It returns false if no value is
// cached.
func Get(key string, target any) (bool, error) {
	raw, ok, err := active().get(context.Background(), key)
	if err != nil || !ok {
		return false, err
	}
	if err = msgpack.Unmarshal(raw, target); err != nil {
		return false, errors.WithStack(err)
	}
	return true, nil
}

// Set caches value under key for ttl
func Set(key string, value any, ttl time.Duration) error {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return errors.WithStack(err)
	}
	return active().set(context.Background(), key, raw, ttl)
}

// Delete removes key from the cache
func Delete(key string) error {
	return active().del(context.Background(), key)
}

// VerificationKey returns the key under which the verification response of
// a certificate code is cached
func VerificationKey(code string) string {
	return Key(KeyVerification, code)
}

// InvalidateVerification drops the cached verification response of a code
func InvalidateVerification(code string) {
	if err := Delete(VerificationKey(code)); err != nil {
		log.WithError(err).WithField("code", code).Warn("could not invalidate cached verification")
	}
}

type memoryBackend struct {
	cache *gocache.Cache
}

func newMemoryBackend() *memoryBackend {
	c := gocache.NewCache().
		WithMaxSize(10000).
		WithEvictionPolicy(gocache.LeastRecentlyUsed)
	_ = c.StartJanitor()
	return &memoryBackend{cache: c}
}

func (m *memoryBackend) get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := v.([]byte)
	return raw, ok, nil
}

func (m *memoryBackend) set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.SetWithTTL(key, value, ttl)
	return nil
}

func (m *memoryBackend) del(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

type redisBackend struct {
	client *redis.Client
}

func (r *redisBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	return raw, true, nil
}

func (r *redisBackend) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.WithStack(r.client.Set(ctx, key, value, ttl).Err())
}

func (r *redisBackend) del(ctx context.Context, key string) error {
	return errors.WithStack(r.client.Del(ctx, key).Err())
}

type noopBackend struct{}

func (noopBackend) get(context.Context, string) ([]byte, bool, error)           { return nil, false, nil }
func (noopBackend) set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopBackend) del(context.Context, string) error                        { return nil }
