package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/zachmann/go-utils/duration"
)

// sweeperConf configures the removal of certificate files no certificate
// references anymore
type sweeperConf struct {
	Enabled  bool                    `yaml:"enabled"`
	Schedule string                  `yaml:"schedule"`
	Grace    duration.DurationOption `yaml:"grace_period"`
}

func (c *sweeperConf) validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return errors.Wrapf(err, "invalid schedule '%s'", c.Schedule)
	}
	if c.Grace.Duration() < time.Minute {
		return errors.New("grace_period must be at least one minute")
	}
	return nil
}

var defaultSweeperConf = sweeperConf{
	Enabled:  true,
	Schedule: "@hourly",
	Grace:    duration.DurationOption(time.Hour),
}
