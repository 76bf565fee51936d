package config

import (
	"net/url"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/typely/certify"
)

type serverConf struct {
	certify.ServerConf `yaml:",inline"`
}

func (c *serverConf) validate() error {
	if c.SiteURL == "" {
		return errors.New("site_url must be specified")
	}
	if _, err := url.ParseRequestURI(c.SiteURL); err != nil {
		return errors.Errorf("site_url '%s' is not a valid url", c.SiteURL)
	}
	if c.TLS.Enabled {
		if !fileutils.FileExists(c.TLS.Cert) || !fileutils.FileExists(c.TLS.Key) {
			return errors.New("tls is enabled but cert or key file does not exist")
		}
	}
	return nil
}

var defaultServerConf = serverConf{
	ServerConf: certify.ServerConf{
		Port: 8080,
	},
}

type authConf struct {
	certify.AuthConf `yaml:",inline"`
}

func (c *authConf) validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret must be specified (or set CERTIFY_JWT_SECRET)")
	}
	return nil
}
