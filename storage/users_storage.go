package storage

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/typely/certify/storage/model"
)

// ErrInvalidCredentials aliases model.ErrInvalidCredentials
var ErrInvalidCredentials = model.ErrInvalidCredentials

// UsersStorage returns a UsersStorage
func (s *Storage) UsersStorage() *UsersStorage {
	return &UsersStorage{
		db:     s.db,
		params: s.userParams,
	}
}

// UsersStorage implements model.UsersStore; passwords are stored as argon2id
// hashes
type UsersStorage struct {
	db     *gorm.DB
	params Argon2idParams
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func withoutHash(u *model.AdminUser) *model.AdminUser {
	u.PasswordHash = ""
	return u
}

func (s *UsersStorage) find(username string) (*model.AdminUser, error) {
	var u model.AdminUser
	err := s.db.Where(&model.AdminUser{Username: normalizeUsername(username)}).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.NotFoundErrorFmt("admin user '%s' not found", username)
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return &u, nil
}

// Count implements model.UsersStore
func (s *UsersStorage) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&model.AdminUser{}).Count(&n).Error; err != nil {
		return 0, classifyError(err)
	}
	return n, nil
}

// List implements model.UsersStore
func (s *UsersStorage) List() ([]model.AdminUser, error) {
	var users []model.AdminUser
	if err := s.db.Order("username").Find(&users).Error; err != nil {
		return nil, classifyError(err)
	}
	for i := range users {
		withoutHash(&users[i])
	}
	return users, nil
}

// Get implements model.UsersStore
func (s *UsersStorage) Get(username string) (*model.AdminUser, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	return withoutHash(u), nil
}

// Create implements model.UsersStore. Usernames are case-insensitive.
func (s *UsersStorage) Create(username, password, displayName string) (*model.AdminUser, error) {
	name := normalizeUsername(username)
	if name == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	hash, err := newPasswordHash(password, s.params)
	if err != nil {
		return nil, err
	}
	u := model.AdminUser{
		Username:     name,
		PasswordHash: hash.String(),
		DisplayName:  displayName,
	}
	if err = s.db.Create(&u).Error; err != nil {
		dbErr := classifyError(err)
		if dbErr.Kind == model.DBErrorUniqueViolation {
			return nil, model.AlreadyExistsErrorFmt("admin user '%s' already exists", name)
		}
		return nil, dbErr
	}
	return withoutHash(&u), nil
}

// Update implements model.UsersStore; nil arguments are left unchanged
func (s *UsersStorage) Update(
	username string, displayName *string, newPassword *string, disabled *bool,
) (*model.AdminUser, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	changes := map[string]any{}
	if displayName != nil {
		changes["display_name"] = *displayName
		u.DisplayName = *displayName
	}
	if disabled != nil {
		changes["disabled"] = *disabled
		u.Disabled = *disabled
	}
	if newPassword != nil {
		if *newPassword == "" {
			return nil, errors.New("password must not be empty")
		}
		hash, err := newPasswordHash(*newPassword, s.params)
		if err != nil {
			return nil, err
		}
		changes["password_hash"] = hash.String()
	}
	if len(changes) > 0 {
		if err = s.db.Model(u).Updates(changes).Error; err != nil {
			return nil, classifyError(err)
		}
	}
	return withoutHash(u), nil
}

// Delete implements model.UsersStore
func (s *UsersStorage) Delete(username string) error {
	res := s.db.Where(&model.AdminUser{Username: normalizeUsername(username)}).Delete(&model.AdminUser{})
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("admin user '%s' not found", username)
	}
	return nil
}

// Authenticate implements model.UsersStore. On success the last login is
// recorded and hashes made with outdated parameters are replaced.
func (s *UsersStorage) Authenticate(username, password string) (*model.AdminUser, error) {
	u, err := s.find(username)
	if err != nil {
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Disabled {
		return nil, ErrInvalidCredentials
	}
	hash, err := parsePasswordHash(u.PasswordHash)
	if err != nil {
		log.WithError(err).WithField("user", u.Username).Error("stored password hash is unusable")
		return nil, ErrInvalidCredentials
	}
	if !hash.matches(password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	changes := map[string]any{"last_login_at": now}
	if hash.outdated(s.params) {
		if rehashed, err := newPasswordHash(password, s.params); err == nil {
			changes["password_hash"] = rehashed.String()
		}
	}
	if err = s.db.Model(u).Updates(changes).Error; err != nil {
		log.WithError(err).WithField("user", u.Username).Warn("could not record admin login")
	}
	u.LastLoginAt = &now
	return withoutHash(u), nil
}
