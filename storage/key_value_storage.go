package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/typely/certify/storage/model"
)

// SettingsStorage implements model.KeyValueStore on the key_values table.
// Driver errors are returned as *model.DBError so that callers can tell a
// missing table apart from other failures.
type SettingsStorage struct {
	db *gorm.DB
}

// Settings returns the runtime settings store
func (s *Storage) Settings() *SettingsStorage {
	return &SettingsStorage{db: s.db}
}

func settingKey(scope, key string) *model.KeyValue {
	return &model.KeyValue{
		Scope: scope,
		Key:   key,
	}
}

// Get implements model.KeyValueStore
func (s *SettingsStorage) Get(scope, key string) (datatypes.JSON, error) {
	var entry model.KeyValue
	err := s.db.Where(settingKey(scope, key)).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	if len(entry.Value) == 0 {
		return nil, nil
	}
	return entry.Value, nil
}

// Set implements model.KeyValueStore. Setting a deleted entry restores it.
func (s *SettingsStorage) Set(scope, key string, value datatypes.JSON) error {
	entry := settingKey(scope, key)
	entry.Value = value
	err := s.db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: "scope"},
				{Name: "key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at", "deleted_at"}),
		},
	).Create(entry).Error
	if err != nil {
		return classifyError(err)
	}
	return nil
}

// Delete implements model.KeyValueStore
func (s *SettingsStorage) Delete(scope, key string) error {
	if err := s.db.Where(settingKey(scope, key)).Delete(&model.KeyValue{}).Error; err != nil {
		return classifyError(err)
	}
	return nil
}

// GetAs implements model.KeyValueStore
func (s *SettingsStorage) GetAs(scope, key string, out any) (bool, error) {
	raw, err := s.Get(scope, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return false, errors.Wrapf(err, "setting %s/%s", scope, key)
	}
	return true, nil
}

// SetAny implements model.KeyValueStore
func (s *SettingsStorage) SetAny(scope, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	return s.Set(scope, key, raw)
}
