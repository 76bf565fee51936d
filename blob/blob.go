// Package blob stores rendered certificate PDFs.
package blob

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ContentTypePDF is the content type of rendered certificates
const ContentTypePDF = "application/pdf"

// ErrNotFound is returned by Download if no object exists at the path
var ErrNotFound = errors.New("blob not found")

// Store is an object store keyed by slash separated paths
type Store interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	// Download returns the object at path; ErrNotFound if there is none.
	Download(ctx context.Context, path string) ([]byte, error)
	// Delete removes the object at path. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, path string) error
}

// Object describes a stored object
type Object struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Lister is implemented by stores that can enumerate their objects
type Lister interface {
	List(ctx context.Context, prefix string) ([]Object, error)
}

// CertificatePath returns the path a certificate PDF is stored at:
// <user>/<YYYY-MM-DD>/typely-certificate-<code>.pdf
func CertificatePath(userID, code string, issuedAt time.Time) string {
	return path.Join(
		userID,
		issuedAt.UTC().Format(time.DateOnly),
		"typely-certificate-"+code+".pdf",
	)
}

// cleanPath normalizes p and rejects paths escaping the store root
func cleanPath(p string) (string, error) {
	c := path.Clean("/" + strings.TrimSpace(p))
	c = strings.TrimPrefix(c, "/")
	if c == "" || c == "." {
		return "", errors.Errorf("invalid blob path '%s'", p)
	}
	if strings.Contains(p, "..") {
		return "", errors.Errorf("invalid blob path '%s'", p)
	}
	return c, nil
}
