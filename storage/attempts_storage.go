package storage

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/typely/certify/storage/model"
)

// AttemptsStorage implements model.AttemptsStore using GORM
type AttemptsStorage struct {
	db *gorm.DB
}

// Get returns an attempt by id
func (s *AttemptsStorage) Get(ctx context.Context, attemptID string) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := s.db.WithContext(ctx).Where("id = ?", attemptID).First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFoundErrorFmt("attempt not found: %s", attemptID)
		}
		return nil, classifyError(err)
	}
	return &attempt, nil
}

// StudentName returns the display name stored in the user's profile
func (s *AttemptsStorage) StudentName(ctx context.Context, userID string) (string, error) {
	var profile model.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.DefaultStudentName, nil
		}
		return "", classifyError(err)
	}
	if profile.DisplayName == "" {
		return model.DefaultStudentName, nil
	}
	return profile.DisplayName, nil
}

// Save stores an attempt. Attempts are normally written by the typing
// service; Save exists for seeding and tests.
func (s *AttemptsStorage) Save(attempt model.Attempt) error {
	return s.db.Save(&attempt).Error
}

// SaveProfile stores a profile
func (s *AttemptsStorage) SaveProfile(profile model.Profile) error {
	return s.db.Save(&profile).Error
}
