package model

import (
	"context"
	"time"
)

// CertificateTemplate configures how a certificate artifact looks
type CertificateTemplate struct {
	ID                 uint      `gorm:"primarykey" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `gorm:"index" json:"updated_at"`
	Title              string    `gorm:"column:title;size:255" json:"title"`
	BackgroundImageURL *string   `gorm:"column:background_image_url;type:text" json:"background_image_url,omitempty"`
	ShowWPM            bool      `gorm:"column:show_wpm" json:"show_wpm"`
	ShowAccuracy       bool      `gorm:"column:show_accuracy" json:"show_accuracy"`
	ShowDate           bool      `gorm:"column:show_date" json:"show_date"`
	ShowCertificateID  bool      `gorm:"column:show_certificate_id" json:"show_certificate_id"`
	Version            int       `gorm:"column:version" json:"version"`
	IsActive           bool      `gorm:"column:is_active;index" json:"is_active"`
	RequiresBackground bool      `gorm:"column:requires_background" json:"requires_background"`
}

// TableName implements the gorm tabler interface
func (CertificateTemplate) TableName() string {
	return "certificate_templates"
}

// HasBackground reports whether a background image is configured
func (t CertificateTemplate) HasBackground() bool {
	return t.BackgroundImageURL != nil && *t.BackgroundImageURL != ""
}

// AddCertificateTemplate is the request payload to create/update a CertificateTemplate
type AddCertificateTemplate struct {
	Title              string  `json:"title" validate:"required,max=255"`
	BackgroundImageURL *string `json:"background_image_url" validate:"omitempty,url"`
	ShowWPM            *bool   `json:"show_wpm"`
	ShowAccuracy       *bool   `json:"show_accuracy"`
	ShowDate           *bool   `json:"show_date"`
	ShowCertificateID  *bool   `json:"show_certificate_id"`
	IsActive           bool    `json:"is_active"`
	RequiresBackground *bool   `json:"requires_background"`
}

// TemplatesStore abstracts CRUD for certificate templates.
type TemplatesStore interface {
	// Active returns the most recently updated active template with a
	// background image or (nil, nil).
	Active(ctx context.Context) (*CertificateTemplate, error)
	// ByID returns a template by its id or (nil, nil).
	ByID(ctx context.Context, id uint) (*CertificateTemplate, error)
	List() ([]CertificateTemplate, error)
	Create(req AddCertificateTemplate) (*CertificateTemplate, error)
	Get(ident string) (*CertificateTemplate, error)
	// Update applies the request and increments the version counter.
	Update(ident string, req AddCertificateTemplate) (*CertificateTemplate, error)
	Delete(ident string) error
}
