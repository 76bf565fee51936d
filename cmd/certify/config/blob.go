package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/duration"

	"github.com/typely/certify/blob"
)

// BlobType selects the blob store implementation
type BlobType string

// Supported blob stores
const (
	BlobTypeFilesystem BlobType = "fs"
	BlobTypeBadger     BlobType = "badger"
	BlobTypeHTTP       BlobType = "http"
)

// BlobConf configures where certificate PDFs are stored
type BlobConf struct {
	Type    BlobType                `yaml:"type"`
	Dir     string                  `yaml:"dir"`
	URL     string                  `yaml:"url"`
	APIKey  string                  `yaml:"api_key"`
	Timeout duration.DurationOption `yaml:"timeout"`
}

func (c *BlobConf) validate() error {
	switch c.Type {
	case BlobTypeFilesystem, BlobTypeBadger:
		if c.Dir == "" {
			return errors.Errorf("dir must be specified for blob store type '%s'", c.Type)
		}
	case BlobTypeHTTP:
		if c.URL == "" {
			return errors.New("url must be specified for blob store type 'http'")
		}
	default:
		return errors.Errorf("unknown blob store type '%s'", c.Type)
	}
	return nil
}

var defaultBlobConf = BlobConf{
	Type:    BlobTypeFilesystem,
	Timeout: duration.DurationOption(15 * time.Second),
}

// NewBlobStore creates the blob store described by c. Stores that hold
// resources implement io.Closer.
func NewBlobStore(c BlobConf) (blob.ListableStore, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	switch c.Type {
	case BlobTypeFilesystem:
		return blob.NewFileStore(c.Dir)
	case BlobTypeBadger:
		return blob.NewBadgerStore(c.Dir)
	default:
		return blob.NewHTTPStore(
			blob.HTTPStoreConfig{
				BaseURL: c.URL,
				APIKey:  c.APIKey,
				Timeout: c.Timeout.Duration(),
			},
		)
	}
}
