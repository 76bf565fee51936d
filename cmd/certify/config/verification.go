package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/zachmann/go-utils/duration"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/typely/certify/ratelimit"
)

type verificationConf struct {
	// LegacyCodes enables lookups of TYP-YYYY-NNNNNN codes
	LegacyCodes bool          `yaml:"legacy_codes"`
	RateLimit   rateLimitConf `yaml:"rate_limit"`
	// GeoIPDB is an optional MaxMind country database used to annotate the
	// verification log
	GeoIPDB string `yaml:"geoip_db"`
}

type rateLimitConf struct {
	Disabled      bool                    `yaml:"disabled"`
	Limit         int                     `yaml:"limit"`
	Window        duration.DurationOption `yaml:"window"`
	RedisAddr     string                  `yaml:"redis_addr"`
	RedisPassword string                  `yaml:"redis_password"`
	RedisDB       int                     `yaml:"redis_db"`
}

func (c *verificationConf) validate() error {
	if c.GeoIPDB != "" && !fileutils.FileExists(c.GeoIPDB) {
		return errors.Errorf("geoip database '%s' does not exist", c.GeoIPDB)
	}
	if c.RateLimit.Limit <= 0 {
		return errors.New("rate_limit.limit must be positive")
	}
	if c.RateLimit.Window.Duration() <= 0 {
		return errors.New("rate_limit.window must be positive")
	}
	return nil
}

var defaultVerificationConf = verificationConf{
	RateLimit: rateLimitConf{
		Limit:  ratelimit.DefaultLimit,
		Window: duration.DurationOption(ratelimit.DefaultWindow),
	},
}

// NewLimiter creates the rate limiter for the verification endpoint. With a
// redis address the limit is shared between instances; nil means no limit.
func NewLimiter(c *Config) ratelimit.Limiter {
	rl := c.Verification.RateLimit
	if rl.Disabled {
		return nil
	}
	if rl.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(rl.Limit, rl.Window.Duration())
	}
	client := redis.NewClient(
		&redis.Options{
			Addr:        rl.RedisAddr,
			Password:    rl.RedisPassword,
			DB:          rl.RedisDB,
			DialTimeout: time.Second,
		},
	)
	return ratelimit.NewRedisLimiter(client, rl.Limit, rl.Window.Duration())
}
