package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DriverType represents the type of database driver
type DriverType string

// Supported database drivers
const (
	DriverSQLite   DriverType = "sqlite"
	DriverMySQL    DriverType = "mysql"
	DriverPostgres DriverType = "postgres"
)

// SupportedDrivers lists all DriverTypes Connect can handle
var SupportedDrivers = []DriverType{
	DriverSQLite,
	DriverMySQL,
	DriverPostgres,
}

const sqliteFileName = "certify.db"

// DSNConf holds the connection parameters of a MySQL or PostgreSQL server
type DSNConf struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"db"`
	// SSLMode is passed as sslmode to PostgreSQL if set
	SSLMode string `yaml:"sslmode"`
}

// DSN builds the connection string for driver from conf
func DSN(driver DriverType, conf DSNConf) (string, error) {
	switch driver {
	case DriverMySQL:
		if conf.Port == 0 {
			conf.Port = 3306
		}
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			conf.User, conf.Password, conf.Host, conf.Port, conf.DB,
		), nil
	case DriverPostgres:
		if conf.Port == 0 {
			conf.Port = 5432
		}
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d",
			conf.Host, conf.User, conf.Password, conf.DB, conf.Port,
		)
		if conf.SSLMode != "" {
			dsn += " sslmode=" + conf.SSLMode
		}
		return dsn, nil
	case DriverSQLite:
		return "", errors.Errorf("driver %s uses data_dir instead of a dsn", driver)
	default:
		return "", errors.Errorf("unsupported driver '%s'", driver)
	}
}

// Config configures the database connection
type Config struct {
	Driver DriverType `yaml:"driver"`
	// DSN is the connection string; for SQLite it may point to the database
	// file, otherwise DataDir/certify.db is used
	DSN     string `yaml:"dsn"`
	DataDir string `yaml:"data_dir"`
	// Debug logs every statement
	Debug bool `yaml:"debug"`
	// SkipMigrations disables auto migration; the certificate store then
	// probes which columns the existing schema provides.
	SkipMigrations bool `yaml:"skip_migrations"`
	// MaxOpenConns limits the connection pool of MySQL and PostgreSQL; zero
	// means no limit
	MaxOpenConns int `yaml:"max_open_conns"`
	// UsersHash defines parameters for hashing admin user passwords
	UsersHash Argon2idParams `yaml:"-"`
}

// Argon2idParams configures Argon2id hashing parameters
type Argon2idParams struct {
	Time        uint32 `yaml:"time"`
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Parallelism uint8  `yaml:"parallelism"`
	KeyLen      uint32 `yaml:"key_len"`
	SaltLen     uint32 `yaml:"salt_len"`
}

func (cfg Config) dialector() (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			if cfg.DataDir == "" {
				return nil, errors.New("sqlite needs a data_dir or a dsn")
			}
			dsn = filepath.Join(cfg.DataDir, sqliteFileName)
		}
		if !strings.Contains(dsn, "?") {
			// concurrent issuance requests wait for the write lock
			dsn += "?_busy_timeout=5000&_foreign_keys=on"
		}
		return sqlite.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, errors.Errorf("unsupported database driver '%s'", cfg.Driver)
	}
}

// gormLogger sends gorm's log output through logrus
func gormLogger(debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return logger.New(
		log.StandardLogger(), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Connect opens the database described by cfg
func Connect(cfg Config) (*gorm.DB, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(
		dialector, &gorm.Config{
			Logger: gormLogger(cfg.Debug),
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to %s database", cfg.Driver)
	}
	if cfg.Driver != DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}
