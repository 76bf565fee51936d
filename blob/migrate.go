package blob

import (
	"context"

	arrays "github.com/adam-hanna/arrayOperations"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ListableStore is a Store that can enumerate its objects
type ListableStore interface {
	Store
	Lister
}

// Migrate copies all objects below prefix from src to dst and returns the
// number of copied objects. Objects are not removed from src.
func Migrate(ctx context.Context, src ListableStore, dst Store, prefix string) (int, error) {
	objects, err := src.List(ctx, prefix)
	if err != nil {
		return 0, errors.Wrap(err, "could not list source blobs")
	}
	return copyObjects(ctx, src, dst, objects, nil)
}

// MigrateMissing is like Migrate but skips objects that already exist in dst
func MigrateMissing(ctx context.Context, src, dst ListableStore, prefix string) (int, error) {
	objects, err := src.List(ctx, prefix)
	if err != nil {
		return 0, errors.Wrap(err, "could not list source blobs")
	}
	present, err := dst.List(ctx, prefix)
	if err != nil {
		return 0, errors.Wrap(err, "could not list destination blobs")
	}
	skip := make(map[string]bool)
	for _, p := range arrays.Intersect(paths(objects), paths(present)) {
		skip[p] = true
	}
	return copyObjects(ctx, src, dst, objects, skip)
}

func paths(objects []Object) []string {
	ps := make([]string, len(objects))
	for i, o := range objects {
		ps[i] = o.Path
	}
	return ps
}

func copyObjects(ctx context.Context, src, dst Store, objects []Object, skip map[string]bool) (int, error) {
	copied := 0
	for _, o := range objects {
		if skip[o.Path] {
			continue
		}
		data, err := src.Download(ctx, o.Path)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return copied, errors.Wrapf(err, "could not read blob '%s'", o.Path)
		}
		if err = dst.Upload(ctx, o.Path, data, ContentTypePDF); err != nil {
			return copied, errors.Wrapf(err, "could not write blob '%s'", o.Path)
		}
		copied++
		log.WithField("path", o.Path).Debug("migrated blob")
	}
	return copied, nil
}
