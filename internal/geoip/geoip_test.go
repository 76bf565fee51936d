package geoip

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilLocator(t *testing.T) {
	var l *Locator
	assert.Empty(t, l.Country("203.0.113.7"))
	assert.NoError(t, l.Close())
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}

func TestClosedLocator(t *testing.T) {
	l := &Locator{}
	assert.Empty(t, l.Country("not an ip"))
	assert.Empty(t, l.Country("203.0.113.7"))
}
