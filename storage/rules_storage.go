package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/typely/certify/storage/model"
)

// RulesStorage implements model.RulesStore using GORM
type RulesStorage struct {
	db *gorm.DB
}

// Active returns the most recently updated enabled rule or (nil, nil)
func (s *RulesStorage) Active(ctx context.Context) (*model.CertificateRule, error) {
	var rule model.CertificateRule
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("updated_at DESC").
		Order("id DESC").
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classifyError(err)
	}
	return &rule, nil
}

// List returns all rules
func (s *RulesStorage) List() ([]model.CertificateRule, error) {
	var rules []model.CertificateRule
	if err := s.db.Order("updated_at DESC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func applyRule(rule *model.CertificateRule, req model.AddCertificateRule) {
	rule.MinWPM = req.MinWPM
	rule.MinAccuracy = req.MinAccuracy
	rule.TestType = model.TestType(strings.ToLower(strings.TrimSpace(req.TestType)))
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
}

// Create stores a new rule; rules are enabled unless stated otherwise
func (s *RulesStorage) Create(req model.AddCertificateRule) (*model.CertificateRule, error) {
	rule := model.CertificateRule{Enabled: true}
	applyRule(&rule, req)
	if err := s.db.Create(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// Get returns a rule by its numeric id
func (s *RulesStorage) Get(ident string) (*model.CertificateRule, error) {
	id, ok := parseIdent(ident)
	if !ok {
		return nil, model.NotFoundErrorFmt("certificate rule not found: %s", ident)
	}
	var rule model.CertificateRule
	if err := s.db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFoundErrorFmt("certificate rule not found: %s", ident)
		}
		return nil, err
	}
	return &rule, nil
}

// Update replaces the thresholds of a rule
func (s *RulesStorage) Update(ident string, req model.AddCertificateRule) (*model.CertificateRule, error) {
	rule, err := s.Get(ident)
	if err != nil {
		return nil, err
	}
	applyRule(rule, req)
	if err = s.db.Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// Delete removes a rule
func (s *RulesStorage) Delete(ident string) error {
	id, ok := parseIdent(ident)
	if !ok {
		return model.NotFoundErrorFmt("certificate rule not found: %s", ident)
	}
	res := s.db.Delete(&model.CertificateRule{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("certificate rule not found: %s", ident)
	}
	return nil
}
