package config

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/typely/certify/internal/logger"
)

// loggingConf holds all logging-related configuration under the `logging` key.
//
// YAML example:
//
//	logging:
//	  access:
//	    dir: /var/log/certify
//	    stderr: false
//	  internal:
//	    dir: /var/log/certify
//	    stderr: false
//	    level: INFO
type loggingConf struct {
	Access   LoggerConf         `yaml:"access"`
	Internal internalLoggerConf `yaml:"internal"`
}

type internalLoggerConf struct {
	LoggerConf `yaml:",inline"`
	Level      string `yaml:"level"`
}

// LoggerConf holds configuration related to logging
type LoggerConf struct {
	Dir    string `yaml:"dir"`
	StdErr bool   `yaml:"stderr"`
}

func checkLoggingDirExists(dir string) error {
	if dir != "" && !fileutils.FileExists(dir) {
		return errors.Errorf("logging directory '%s' does not exist", dir)
	}
	return nil
}

func (log *loggingConf) validate() error {
	if err := checkLoggingDirExists(log.Access.Dir); err != nil {
		return err
	}
	if err := checkLoggingDirExists(log.Internal.Dir); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(log.Internal.Level); err != nil {
		return errors.Wrap(err, "logging.internal.level")
	}
	return nil
}

var defaultLoggingConf = loggingConf{
	Internal: internalLoggerConf{
		Level: "INFO",
	},
}

// LoggerConf returns the configuration for the logger package
func (log loggingConf) LoggerConf() logger.Conf {
	return logger.Conf{
		Access: logger.Output{
			Dir:    log.Access.Dir,
			StdErr: log.Access.StdErr,
		},
		Internal: logger.Output{
			Dir:    log.Internal.Dir,
			StdErr: log.Internal.StdErr,
		},
		Level: log.Internal.Level,
	}
}
