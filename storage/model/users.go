package model

import (
	"errors"
	"time"
)

// ErrInvalidCredentials is returned by UsersStore.Authenticate for unknown
// users, wrong passwords and disabled accounts alike
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminUser can access the admin API (and therefore revoke certificates).
// As long as no admin user exists the admin API is open, so that the first
// account can be created; afterwards HTTP Basic authentication is required.
type AdminUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username string `gorm:"uniqueIndex" json:"username"`
	// PasswordHash is a PHC-formatted argon2id hash
	PasswordHash string `json:"-"`
	DisplayName  string     `json:"display_name"`
	Disabled     bool       `json:"disabled"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// TableName implements the gorm tabler interface
func (AdminUser) TableName() string {
	return "admin_users"
}

// UsersStore abstracts CRUD and authentication for admin users.
type UsersStore interface {
	Count() (int64, error)
	// List returns all users without password hashes
	List() ([]AdminUser, error)
	Get(username string) (*AdminUser, error)
	// Create creates a user; the implementation hashes the password
	Create(username, password, displayName string) (*AdminUser, error)
	Update(username string, displayName *string, newPassword *string, disabled *bool) (*AdminUser, error)
	Delete(username string) error
	// Authenticate checks a username/password combination; a failed check
	// returns ErrInvalidCredentials
	Authenticate(username, password string) (*AdminUser, error)
}
