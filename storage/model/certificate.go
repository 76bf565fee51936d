package model

import (
	"context"
	"time"
)

// DefaultTemplateVersion is reported for certificates whose row does not
// carry a template version
const DefaultTemplateVersion = 1

// ColumnTemplateVersion is the optional column older schemas lack
const ColumnTemplateVersion = "template_version"

// Certificate is the ledger entry of an issued certificate
type Certificate struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Code            string     `gorm:"column:code;uniqueIndex;size:32;not null" json:"code"`
	UserID          string     `gorm:"column:user_id;index;size:64;not null" json:"user_id"`
	AttemptID       string     `gorm:"column:attempt_id;uniqueIndex;size:64;not null" json:"attempt_id"`
	TemplateID      uint       `gorm:"column:template_id" json:"template_id"`
	WPM             int        `gorm:"column:wpm" json:"wpm"`
	Accuracy        float64    `gorm:"column:accuracy;type:decimal(5,2)" json:"accuracy"`
	TestType        TestType   `gorm:"column:test_type;size:16" json:"test_type"`
	IssuedAt        time.Time  `gorm:"column:issued_at;index" json:"issued_at"`
	TemplateVersion *int       `gorm:"column:template_version" json:"template_version,omitempty"`
	StoragePath     *string    `gorm:"column:storage_path" json:"storage_path,omitempty"`
	IsRevoked       bool       `gorm:"column:is_revoked;index" json:"is_revoked"`
	RevokedAt       *time.Time `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	RevokedReason   *string    `gorm:"column:revoked_reason;type:text" json:"revoked_reason,omitempty"`
}

// TableName implements the gorm tabler interface
func (Certificate) TableName() string {
	return "certificates"
}

// Version returns the template version, falling back to DefaultTemplateVersion
func (c Certificate) Version() int {
	if c.TemplateVersion == nil {
		return DefaultTemplateVersion
	}
	return *c.TemplateVersion
}

// HasStoredArtifact reports whether a rendered PDF is stored for this certificate
func (c Certificate) HasStoredArtifact() bool {
	return c.StoragePath != nil && *c.StoragePath != ""
}

// InsertStatus is the outcome kind of an insert
type InsertStatus int

// Constants for InsertStatus
const (
	InsertInserted InsertStatus = iota
	InsertAlreadyExists
	InsertFailed
)

// InsertResult is the tagged result of CertificatesStore.Insert.
// Certificate is set for InsertInserted (the stored row) and
// InsertAlreadyExists (the row that won the race); Err is set for
// InsertFailed.
type InsertResult struct {
	Status      InsertStatus
	Certificate *Certificate
	Err         error
}

// Inserted returns an InsertResult for a newly stored row
func Inserted(c *Certificate) InsertResult {
	return InsertResult{
		Status:      InsertInserted,
		Certificate: c,
	}
}

// AlreadyExists returns an InsertResult for a row that already existed for the attempt
func AlreadyExists(c *Certificate) InsertResult {
	return InsertResult{
		Status:      InsertAlreadyExists,
		Certificate: c,
	}
}

// InsertFailedWith returns a failed InsertResult
func InsertFailedWith(err error) InsertResult {
	return InsertResult{
		Status: InsertFailed,
		Err:    err,
	}
}

// CertificatesStore abstracts the certificate ledger.
type CertificatesStore interface {
	// ByAttempt returns the certificate for an attempt or (nil, nil).
	ByAttempt(ctx context.Context, attemptID string) (*Certificate, error)
	// ByCode returns the certificate with the code or (nil, nil).
	ByCode(ctx context.Context, code string) (*Certificate, error)
	// CodeExists reports whether a certificate with the code exists.
	CodeExists(ctx context.Context, code string) (bool, error)
	// Insert stores a new certificate. A uniqueness violation caused by an
	// existing row for the same attempt is reported as InsertAlreadyExists.
	Insert(ctx context.Context, cert Certificate) InsertResult
	// SupportsTemplateVersionColumn reports the result of the schema probe.
	SupportsTemplateVersionColumn() bool
	// DisableTemplateVersionColumn marks the template_version column as
	// unavailable for subsequent inserts.
	DisableTemplateVersionColumn()
	// SetRevoked updates the revocation state; NotFoundError if the code is unknown.
	SetRevoked(ctx context.Context, code string, revoked bool, reason *string, at *time.Time) (*Certificate, error)
	// SetStoragePath records where the rendered PDF is stored.
	SetStoragePath(ctx context.Context, code string, path *string) error
	// ListByUser returns the certificates of a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]Certificate, error)
	// List returns certificates, newest first.
	List(ctx context.Context, limit, offset int) ([]Certificate, error)
	// ReferencedPaths returns the subset of paths referenced by a certificate.
	ReferencedPaths(ctx context.Context, paths []string) (map[string]bool, error)
}
