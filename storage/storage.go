package storage

import (
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/typely/certify/storage/model"
)

// Storage is a GORM-based storage implementation
type Storage struct {
	db         *gorm.DB
	userParams Argon2idParams
	certs      *CertificatesStorage
}

var models = []any{
	&model.Certificate{},
	&model.CertificateRule{},
	&model.CertificateTemplate{},
	&model.Attempt{},
	&model.Profile{},
	&model.KeyValue{},
	&model.AdminUser{},
}

// NewStorage creates a new GORM-based storage
func NewStorage(config Config) (*Storage, error) {
	db, err := Connect(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewStorageFromDB(db, config)
}

// NewStorageFromDB creates a Storage on top of an existing connection
func NewStorageFromDB(db *gorm.DB, config Config) (*Storage, error) {
	if !config.SkipMigrations {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return &Storage{
		db:         db,
		userParams: config.UsersHash.orDefault(),
		certs:      newCertificatesStorage(db),
	}, nil
}

// DB returns the underlying connection
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// Backends returns all stores grouped as model.Backends
func (s *Storage) Backends() model.Backends {
	return model.Backends{
		Certificates: s.CertificatesStorage(),
		Rules:        s.RulesStorage(),
		Templates:    s.TemplatesStorage(),
		Attempts:     s.AttemptsStorage(),
		KV:           s.Settings(),
		Users:        s.UsersStorage(),
	}
}

// CertificatesStorage returns the CertificatesStorage. The same instance is
// returned on every call, so the schema probe result is shared.
func (s *Storage) CertificatesStorage() *CertificatesStorage {
	return s.certs
}

// RulesStorage returns a RulesStorage
func (s *Storage) RulesStorage() *RulesStorage {
	return &RulesStorage{db: s.db}
}

// TemplatesStorage returns a TemplatesStorage
func (s *Storage) TemplatesStorage() *TemplatesStorage {
	return &TemplatesStorage{db: s.db}
}

// AttemptsStorage returns an AttemptsStorage
func (s *Storage) AttemptsStorage() *AttemptsStorage {
	return &AttemptsStorage{db: s.db}
}

// parseIdent returns the numeric id encoded in ident
func parseIdent(ident string) (uint, bool) {
	id, err := strconv.ParseUint(ident, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
