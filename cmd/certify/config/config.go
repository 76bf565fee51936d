// Package config loads the certify server configuration from a yaml file.
// Secrets can be provided through the environment or a .env file instead.
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/fatih/structs"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
	"gopkg.in/yaml.v3"
)

// Config holds the complete configuration
type Config struct {
	Server       serverConf       `yaml:"server"`
	Storage      storageConf      `yaml:"storage"`
	Blob         BlobConf         `yaml:"blob"`
	Artifact     artifactConf     `yaml:"artifact"`
	Verification verificationConf `yaml:"verification"`
	Caching      cachingConf      `yaml:"cache"`
	Auth         authConf         `yaml:"auth"`
	API          apiConf          `yaml:"api"`
	Logging      loggingConf      `yaml:"logging"`
	Sweeper      sweeperConf      `yaml:"sweeper"`
}

// secrets are read from the environment and take precedence over the
// values in the config file
type secrets struct {
	DBPassword    string `env:"CERTIFY_DB_PASSWORD"`
	JWTSecret     string `env:"CERTIFY_JWT_SECRET"`
	BlobAPIKey    string `env:"CERTIFY_BLOB_API_KEY"`
	RedisPassword string `env:"CERTIFY_REDIS_PASSWORD"`
	RendererToken string `env:"CERTIFY_RENDERER_TOKEN"`
}

type configValidator interface {
	validate() error
}

var conf *Config

// Get returns the loaded Config
func Get() *Config {
	return conf
}

func defaultConfig() *Config {
	return &Config{
		Server:       defaultServerConf,
		Storage:      defaultStorageConf,
		Blob:         defaultBlobConf,
		Artifact:     defaultArtifactConf,
		Verification: defaultVerificationConf,
		API:          defaultAPIConf,
		Logging:      defaultLoggingConf,
		Sweeper:      defaultSweeperConf,
	}
}

var possibleConfigLocations = []string{
	".",
	"config",
	"/config",
	"/etc/certify",
}

func findConfigFile() string {
	for _, dir := range possibleConfigLocations {
		for _, name := range []string{"config.yaml", "config.yml", "certify.yaml"} {
			p := filepath.Join(dir, name)
			if fileutils.FileExists(p) {
				return p
			}
		}
	}
	return ""
}

// Load loads the config from the passed file; if filename is empty the
// default locations are searched. Errors are fatal.
func Load(filename string) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not load .env file")
	}
	if filename == "" {
		filename = findConfigFile()
		if filename == "" {
			log.Fatal("could not find config file in any of the possible locations")
		}
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		log.WithError(err).Fatal("could not read config file")
	}
	c, err := parse(data)
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.WithField("file", filename).Debug("loaded config file")
	conf = c
}

func parse(data []byte) (*Config, error) {
	for _, key := range unknownKeys(data) {
		log.WithField("key", key).Warn("unknown top level config option; ignoring it")
	}
	c := defaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "could not parse config file")
	}
	var s secrets
	if err := env.Parse(&s); err != nil {
		return nil, errors.Wrap(err, "could not read secrets from environment")
	}
	c.applySecrets(s)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applySecrets(s secrets) {
	if s.DBPassword != "" {
		c.Storage.Password = s.DBPassword
	}
	if s.JWTSecret != "" {
		c.Auth.JWTSecret = s.JWTSecret
	}
	if s.BlobAPIKey != "" {
		c.Blob.APIKey = s.BlobAPIKey
	}
	if s.RedisPassword != "" {
		c.Caching.Password = s.RedisPassword
		c.Verification.RateLimit.RedisPassword = s.RedisPassword
	}
	if s.RendererToken != "" {
		c.Artifact.Token = s.RendererToken
	}
}

func (c *Config) validate() error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		ptr := v.Field(i).Addr().Interface()
		if validator, ok := ptr.(configValidator); ok {
			if err := validator.validate(); err != nil {
				return errors.Errorf("error in %s config: %s", yamlName(t.Field(i).Tag.Get("yaml")), err.Error())
			}
		}
	}
	c.Server.AdminAPIPort = c.API.Admin.Port
	return nil
}

func yamlName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// unknownKeys returns the top level keys in data that do not belong to any
// config section
func unknownKeys(data []byte) []string {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil
	}
	known := make(map[string]bool)
	for _, f := range structs.New(&Config{}).Fields() {
		known[yamlName(f.Tag("yaml"))] = true
	}
	var unknown []string
	for k := range raw {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}
