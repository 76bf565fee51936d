package blob

import (
	"context"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const badgerKeyPrefix = "blob:"

// BadgerStore stores objects in an embedded badger database
type BadgerStore struct {
	db   *badger.DB
	stop chan struct{}
}

type badgerObject struct {
	Data        []byte    `msgpack:"data"`
	ContentType string    `msgpack:"content_type"`
	ModTime     time.Time `msgpack:"mod_time"`
}

// NewBadgerStore opens a BadgerStore at dir. An empty dir opens an in-memory
// database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "could not open badger blob store")
	}
	s := &BadgerStore{
		db:   db,
		stop: make(chan struct{}),
	}
	if dir != "" {
		go s.gc()
	}
	return s, nil
}

func (s *BadgerStore) gc() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for s.db.RunValueLogGC(0.7) == nil {
			}
		}
	}
}

// Close closes the database
func (s *BadgerStore) Close() error {
	close(s.stop)
	return s.db.Close()
}

func badgerKey(p string) ([]byte, error) {
	c, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	return []byte(badgerKeyPrefix + c), nil
}

// Upload implements the Store interface
func (s *BadgerStore) Upload(ctx context.Context, p string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := badgerKey(p)
	if err != nil {
		return err
	}
	value, err := msgpack.Marshal(
		badgerObject{
			Data:        data,
			ContentType: contentType,
			ModTime:     time.Now(),
		},
	)
	if err != nil {
		return errors.WithStack(err)
	}
	return s.db.Update(
		func(txn *badger.Txn) error {
			return txn.Set(key, value)
		},
	)
}

func (s *BadgerStore) read(key []byte) (*badgerObject, error) {
	var obj badgerObject
	err := s.db.View(
		func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err != nil {
				return err
			}
			return item.Value(
				func(val []byte) error {
					return msgpack.Unmarshal(val, &obj)
				},
			)
		},
	)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// Download implements the Store interface
func (s *BadgerStore) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := badgerKey(p)
	if err != nil {
		return nil, err
	}
	obj, err := s.read(key)
	if err != nil {
		return nil, err
	}
	return obj.Data, nil
}

// Delete implements the Store interface
func (s *BadgerStore) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := badgerKey(p)
	if err != nil {
		return err
	}
	return s.db.Update(
		func(txn *badger.Txn) error {
			return txn.Delete(key)
		},
	)
}

// List implements the Lister interface
func (s *BadgerStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	err := s.db.View(
		func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			scanPrefix := []byte(badgerKeyPrefix + prefix)
			for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				item := it.Item()
				k := strings.TrimPrefix(string(item.KeyCopy(nil)), badgerKeyPrefix)
				err := item.Value(
					func(v []byte) error {
						var obj badgerObject
						if err := msgpack.Unmarshal(v, &obj); err != nil {
							log.WithError(err).WithField("path", k).Warn("skipping undecodable blob")
							return nil
						}
						objects = append(
							objects, Object{
								Path:    k,
								Size:    int64(len(obj.Data)),
								ModTime: obj.ModTime,
							},
						)
						return nil
					},
				)
				if err != nil {
					return err
				}
			}
			return nil
		},
	)
	return objects, err
}
