// Package geoip annotates request logs with the caller's country.
package geoip

import (
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"
	"github.com/pkg/errors"
)

// Locator resolves IP addresses to ISO country codes. A nil Locator
// resolves nothing.
type Locator struct {
	mu     sync.RWMutex
	reader *maxminddb.Reader
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Open opens a MaxMind country or city database
func Open(path string) (*Locator, error) {
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open geoip database '%s'", path)
	}
	return &Locator{reader: r}, nil
}

// Country returns the ISO country code for ip or an empty string
func (l *Locator) Country(ip string) string {
	if l == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.reader == nil {
		return ""
	}
	var rec countryRecord
	if err := l.reader.Lookup(parsed, &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

// Close closes the database
func (l *Locator) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reader == nil {
		return nil
	}
	err := l.reader.Close()
	l.reader = nil
	return err
}
