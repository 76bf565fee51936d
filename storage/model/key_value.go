package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	KeyValueScopeGlobal   = ""
	KeyValueScopeIssuance = "issuance"

	KeyValueKeyEnabled = "enabled"
	KeyValueKeyLogoURL = "logo_url"
)

// KeyValue stores runtime settings that administrators can change without a
// restart.
//
// Values use GORM's datatypes.JSON, i.e. native JSON/JSONB on PostgreSQL and
// MySQL and TEXT on SQLite. Scope namespaces the keys.
type KeyValue struct {
	CreatedAt int            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int            `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Scope string         `gorm:"primaryKey" json:"scope"`
	Key   string         `gorm:"primaryKey" json:"key"`
	Value datatypes.JSON `json:"value"`
}

// KeyValueStore defines the operations on the settings store.
type KeyValueStore interface {
	// Get retrieves the value for a (scope, key). Returns (nil, nil) if not found.
	Get(scope, key string) (datatypes.JSON, error)
	// Set stores/replaces the value for a (scope, key).
	Set(scope, key string, value datatypes.JSON) error
	// Delete removes the entry for a (scope, key). No error if missing.
	Delete(scope, key string) error
	// GetAs unmarshals the value into out; (false, nil) if not found.
	GetAs(scope, key string, out any) (bool, error)
	// SetAny marshals v and stores it.
	SetAny(scope, key string, v any) error
}
