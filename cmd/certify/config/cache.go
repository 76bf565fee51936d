package config

import (
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/duration"

	"github.com/typely/certify/internal/cache"
)

type cachingConf struct {
	RedisAddr   string                  `yaml:"redis_addr"`
	Username    string                  `yaml:"username"`
	Password    string                  `yaml:"password"`
	RedisDB     int                     `yaml:"redis_db"`
	Disabled    bool                    `yaml:"disabled"`
	MaxLifetime duration.DurationOption `yaml:"max_lifetime"`
}

// InitCache sets up the response cache
func InitCache(c *Config) error {
	cc := c.Caching
	switch {
	case cc.Disabled:
		cache.Disable()
		log.Info("Response cache disabled")
	case cc.RedisAddr != "":
		if err := cache.UseRedisCache(
			&redis.Options{
				Addr:     cc.RedisAddr,
				Username: cc.Username,
				Password: cc.Password,
				DB:       cc.RedisDB,
			},
		); err != nil {
			return err
		}
		log.Info("Loaded Redis Cache")
	default:
		cache.UseMemoryCache()
	}
	return nil
}

// VerificationCacheTTL returns how long valid verification responses are
// cached; zero means the server default
func (c cachingConf) VerificationCacheTTL() time.Duration {
	return c.MaxLifetime.Duration()
}
