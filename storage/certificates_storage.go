package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/typely/certify/storage/model"
)

const columnTemplateVersion = model.ColumnTemplateVersion

// CertificatesStorage implements model.CertificatesStore using GORM
type CertificatesStorage struct {
	db            *gorm.DB
	versionColumn atomic.Bool
}

func newCertificatesStorage(db *gorm.DB) *CertificatesStorage {
	s := &CertificatesStorage{db: db}
	s.versionColumn.Store(db.Migrator().HasColumn(&model.Certificate{}, columnTemplateVersion))
	if !s.versionColumn.Load() {
		log.WithField("column", columnTemplateVersion).
			Warn("certificates table has no template version column; issuing without it")
	}
	return s
}

// SupportsTemplateVersionColumn reports whether inserts may write the
// template_version column
func (s *CertificatesStorage) SupportsTemplateVersionColumn() bool {
	return s.versionColumn.Load()
}

// DisableTemplateVersionColumn stops writing the template_version column
func (s *CertificatesStorage) DisableTemplateVersionColumn() {
	s.versionColumn.Store(false)
}

func (s *CertificatesStorage) first(ctx context.Context, query string, arg any) (*model.Certificate, error) {
	var cert model.Certificate
	err := s.db.WithContext(ctx).Where(query, arg).First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classifyError(err)
	}
	return &cert, nil
}

// ByAttempt returns the certificate issued for an attempt or (nil, nil)
func (s *CertificatesStorage) ByAttempt(ctx context.Context, attemptID string) (*model.Certificate, error) {
	return s.first(ctx, "attempt_id = ?", attemptID)
}

// ByCode returns the certificate with the passed code or (nil, nil)
func (s *CertificatesStorage) ByCode(ctx context.Context, code string) (*model.Certificate, error) {
	return s.first(ctx, "code = ?", code)
}

// CodeExists checks if a code is already taken
func (s *CertificatesStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Certificate{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, classifyError(err)
	}
	return count > 0, nil
}

// Insert stores a new certificate. A uniqueness violation is resolved by
// re-reading the row for the attempt; if another request already stored one
// it is returned as model.InsertAlreadyExists.
func (s *CertificatesStorage) Insert(ctx context.Context, cert model.Certificate) model.InsertResult {
	tx := s.db.WithContext(ctx)
	if !s.SupportsTemplateVersionColumn() {
		tx = tx.Omit(columnTemplateVersion)
		cert.TemplateVersion = nil
	}
	err := tx.Create(&cert).Error
	if err == nil {
		return model.Inserted(&cert)
	}
	dbErr := classifyError(err)
	if dbErr.Kind == model.DBErrorUniqueViolation {
		existing, readErr := s.ByAttempt(ctx, cert.AttemptID)
		if readErr != nil {
			return model.InsertFailedWith(readErr)
		}
		if existing != nil {
			return model.AlreadyExists(existing)
		}
	}
	return model.InsertFailedWith(dbErr)
}

// SetRevoked updates the revocation columns of a certificate
func (s *CertificatesStorage) SetRevoked(
	ctx context.Context, code string, revoked bool, reason *string, at *time.Time,
) (*model.Certificate, error) {
	var cert model.Certificate
	err := s.db.WithContext(ctx).Transaction(
		func(tx *gorm.DB) error {
			if err := tx.Where("code = ?", code).First(&cert).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return model.NotFoundErrorFmt("certificate not found: %s", code)
				}
				return err
			}
			cert.IsRevoked = revoked
			cert.RevokedReason = reason
			cert.RevokedAt = at
			return tx.Model(&cert).Select("is_revoked", "revoked_reason", "revoked_at").Updates(&cert).Error
		},
	)
	if err != nil {
		var nf model.NotFoundError
		if errors.As(err, &nf) {
			return nil, nf
		}
		return nil, classifyError(err)
	}
	return &cert, nil
}

// SetStoragePath records the blob path of the rendered certificate
func (s *CertificatesStorage) SetStoragePath(ctx context.Context, code string, path *string) error {
	res := s.db.WithContext(ctx).Model(&model.Certificate{}).
		Where("code = ?", code).
		Update("storage_path", path)
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("certificate not found: %s", code)
	}
	return nil
}

// ListByUser returns all certificates of a user, newest first
func (s *CertificatesStorage) ListByUser(ctx context.Context, userID string) ([]model.Certificate, error) {
	var certs []model.Certificate
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&certs).Error; err != nil {
		return nil, classifyError(err)
	}
	return certs, nil
}

// List returns certificates, newest first
func (s *CertificatesStorage) List(ctx context.Context, limit, offset int) ([]model.Certificate, error) {
	var certs []model.Certificate
	q := s.db.WithContext(ctx).Order("issued_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&certs).Error; err != nil {
		return nil, classifyError(err)
	}
	return certs, nil
}

// ReferencedPaths returns which of the passed storage paths belong to a certificate
func (s *CertificatesStorage) ReferencedPaths(ctx context.Context, paths []string) (map[string]bool, error) {
	out := make(map[string]bool, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	var found []string
	if err := s.db.WithContext(ctx).Model(&model.Certificate{}).
		Where("storage_path IN ?", paths).
		Pluck("storage_path", &found).Error; err != nil {
		return nil, classifyError(err)
	}
	for _, p := range found {
		out[p] = true
	}
	return out, nil
}
