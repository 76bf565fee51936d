// Package logger sets up the internal logger and the access log writer.
package logger

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Conf configures the loggers. An empty Dir with StdErr unset logs to
// stderr.
type Conf struct {
	Access   Output
	Internal Output
	Level    string
}

// Output configures where a logger writes to
type Output struct {
	Dir    string
	StdErr bool
}

const (
	internalLogFile = "certify.log"
	accessLogFile   = "access.log"
)

var accessWriter io.Writer = os.Stderr

func openOutput(o Output, name string) io.Writer {
	if o.Dir == "" {
		return os.Stderr
	}
	f, err := os.OpenFile(filepath.Join(o.Dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		log.WithError(err).WithField("dir", o.Dir).Error("could not open log file; logging to stderr")
		return os.Stderr
	}
	if o.StdErr {
		return io.MultiWriter(f, os.Stderr)
	}
	return f
}

// Init initializes the internal logger and the access log writer
func Init(conf Conf) {
	log.SetFormatter(
		&log.TextFormatter{
			FullTimestamp: true,
		},
	)
	log.SetOutput(openOutput(conf.Internal, internalLogFile))
	level, err := log.ParseLevel(conf.Level)
	if err != nil {
		level = log.InfoLevel
		if conf.Level != "" {
			log.WithField("level", conf.Level).Warn("unknown log level; using info")
		}
	}
	log.SetLevel(level)
	accessWriter = openOutput(conf.Access, accessLogFile)
}

// AccessLogWriter returns the writer for the http access log
func AccessLogWriter() io.Writer {
	return accessWriter
}
