package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/duration"

	"github.com/typely/certify/artifact"
)

type artifactConf struct {
	URL     string                  `yaml:"url"`
	Token   string                  `yaml:"token"`
	Timeout duration.DurationOption `yaml:"timeout"`
	Retries int                     `yaml:"retries"`
}

func (c *artifactConf) validate() error {
	if c.URL == "" {
		return errors.New("url of the certificate renderer must be specified")
	}
	if c.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	return nil
}

var defaultArtifactConf = artifactConf{
	Timeout: duration.DurationOption(30 * time.Second),
	Retries: 2,
}

// NewRenderer creates the client for the configured certificate renderer
func NewRenderer(c *Config) (*artifact.HTTPRenderer, error) {
	return artifact.NewHTTPRenderer(
		artifact.HTTPRendererConfig{
			URL:     c.Artifact.URL,
			Token:   c.Artifact.Token,
			Timeout: c.Artifact.Timeout.Duration(),
			Retries: c.Artifact.Retries,
		},
	)
}
