package storage

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/typely/certify/storage/model"
)

// TemplatesStorage implements model.TemplatesStore using GORM
type TemplatesStorage struct {
	db *gorm.DB
}

// Active returns the most recently updated active template that has a
// background image, or (nil, nil)
func (s *TemplatesStorage) Active(ctx context.Context) (*model.CertificateTemplate, error) {
	var tmpl model.CertificateTemplate
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("background_image_url IS NOT NULL AND background_image_url <> ''").
		Order("updated_at DESC").
		Order("id DESC").
		First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classifyError(err)
	}
	return &tmpl, nil
}

// ByID returns a template by id or (nil, nil)
func (s *TemplatesStorage) ByID(ctx context.Context, id uint) (*model.CertificateTemplate, error) {
	var tmpl model.CertificateTemplate
	if err := s.db.WithContext(ctx).First(&tmpl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classifyError(err)
	}
	return &tmpl, nil
}

// List returns all templates
func (s *TemplatesStorage) List() ([]model.CertificateTemplate, error) {
	var items []model.CertificateTemplate
	if err := s.db.Order("updated_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func applyTemplate(tmpl *model.CertificateTemplate, req model.AddCertificateTemplate) {
	tmpl.Title = req.Title
	tmpl.BackgroundImageURL = req.BackgroundImageURL
	tmpl.IsActive = req.IsActive
	if req.ShowWPM != nil {
		tmpl.ShowWPM = *req.ShowWPM
	}
	if req.ShowAccuracy != nil {
		tmpl.ShowAccuracy = *req.ShowAccuracy
	}
	if req.ShowDate != nil {
		tmpl.ShowDate = *req.ShowDate
	}
	if req.ShowCertificateID != nil {
		tmpl.ShowCertificateID = *req.ShowCertificateID
	}
	if req.RequiresBackground != nil {
		tmpl.RequiresBackground = *req.RequiresBackground
	}
}

// Create stores a new template at version 1
func (s *TemplatesStorage) Create(req model.AddCertificateTemplate) (*model.CertificateTemplate, error) {
	tmpl := model.CertificateTemplate{
		ShowWPM:            true,
		ShowAccuracy:       true,
		ShowDate:           true,
		ShowCertificateID:  true,
		RequiresBackground: true,
		Version:            1,
	}
	applyTemplate(&tmpl, req)
	if err := s.db.Create(&tmpl).Error; err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// Get returns a template by its numeric id
func (s *TemplatesStorage) Get(ident string) (*model.CertificateTemplate, error) {
	id, ok := parseIdent(ident)
	if !ok {
		return nil, model.NotFoundErrorFmt("certificate template not found: %s", ident)
	}
	var tmpl model.CertificateTemplate
	if err := s.db.First(&tmpl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFoundErrorFmt("certificate template not found: %s", ident)
		}
		return nil, err
	}
	return &tmpl, nil
}

// Update applies the request and bumps the template version
func (s *TemplatesStorage) Update(ident string, req model.AddCertificateTemplate) (*model.CertificateTemplate, error) {
	tmpl, err := s.Get(ident)
	if err != nil {
		return nil, err
	}
	applyTemplate(tmpl, req)
	tmpl.Version++
	if err = s.db.Save(tmpl).Error; err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Delete removes a template
func (s *TemplatesStorage) Delete(ident string) error {
	id, ok := parseIdent(ident)
	if !ok {
		return model.NotFoundErrorFmt("certificate template not found: %s", ident)
	}
	res := s.db.Delete(&model.CertificateTemplate{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("certificate template not found: %s", ident)
	}
	return nil
}
