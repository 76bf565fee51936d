package storage

import (
	"github.com/pkg/errors"

	"github.com/typely/certify/storage/model"
)

// IssuanceEnabled returns whether certificate issuance is switched on.
// Issuance is enabled unless explicitly disabled.
func IssuanceEnabled(kvStorage model.KeyValueStore) (bool, error) {
	if kvStorage == nil {
		return true, nil
	}
	var enabled bool
	found, err := kvStorage.GetAs(model.KeyValueScopeIssuance, model.KeyValueKeyEnabled, &enabled)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return enabled, nil
}

// SetIssuanceEnabled switches certificate issuance on or off
func SetIssuanceEnabled(kvStorage model.KeyValueStore, enabled bool) error {
	if kvStorage == nil {
		return errors.New("key value store is not set")
	}
	return kvStorage.SetAny(model.KeyValueScopeIssuance, model.KeyValueKeyEnabled, enabled)
}

// GetLogoURL returns the logo printed on certificates; empty if unset
func GetLogoURL(kvStorage model.KeyValueStore) (string, error) {
	if kvStorage == nil {
		return "", nil
	}
	var logo string
	if _, err := kvStorage.GetAs(model.KeyValueScopeIssuance, model.KeyValueKeyLogoURL, &logo); err != nil {
		return "", err
	}
	return logo, nil
}

// SetLogoURL sets the logo printed on certificates. An empty url removes it.
func SetLogoURL(kvStorage model.KeyValueStore, logo string) error {
	if kvStorage == nil {
		return errors.New("key value store is not set")
	}
	if logo == "" {
		return kvStorage.Delete(model.KeyValueScopeIssuance, model.KeyValueKeyLogoURL)
	}
	return kvStorage.SetAny(model.KeyValueScopeIssuance, model.KeyValueKeyLogoURL, logo)
}
