package config

import (
	"slices"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/typely/certify/storage"
)

type storageConf struct {
	Driver          storage.DriverType `yaml:"driver"`
	DataDir         string             `yaml:"data_dir"`
	DSN             string             `yaml:"dsn"`
	storage.DSNConf `yaml:",inline"`
	Debug           bool `yaml:"debug"`
	SkipMigrations  bool `yaml:"skip_migrations"`
	MaxOpenConns    int  `yaml:"max_open_conns"`
}

func (c *storageConf) validate() error {
	if !slices.Contains(storage.SupportedDrivers, c.Driver) {
		return errors.Errorf("unsupported driver '%s'", c.Driver)
	}
	if c.MaxOpenConns < 0 {
		return errors.New("max_open_conns must not be negative")
	}
	if c.Driver == storage.DriverSQLite {
		if c.DataDir == "" && c.DSN == "" {
			return errors.New("data_dir must be specified")
		}
		return nil
	}
	var err error
	if c.DSN == "" {
		c.DSN, err = storage.DSN(c.Driver, c.DSNConf)
	}
	return err
}

var defaultStorageConf = storageConf{
	Driver: storage.DriverSQLite,
	DSNConf: storage.DSNConf{
		User: "certify",
		Host: "localhost",
		DB:   "certify",
	},
}

// LoadStorage opens the configured database
func LoadStorage(c *Config) (*storage.Storage, error) {
	s, err := storage.NewStorage(
		storage.Config{
			Driver:         c.Storage.Driver,
			DSN:            c.Storage.DSN,
			DataDir:        c.Storage.DataDir,
			Debug:          c.Storage.Debug,
			SkipMigrations: c.Storage.SkipMigrations,
			MaxOpenConns:   c.Storage.MaxOpenConns,
			UsersHash:      c.API.Admin.Argon2idParams,
		},
	)
	if err != nil {
		return nil, err
	}
	log.WithField("driver", c.Storage.Driver).Info("Loaded storage backend")
	return s, nil
}
