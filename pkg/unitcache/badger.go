package unitcache

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"linkvm/pkg/compiled"
)

// keyPrefix namespaces unit entries inside the badger keyspace.
var keyPrefix = []byte("unit/")

// BadgerStore is a Store backed by badger.
type BadgerStore struct {
	db     *badger.DB
	codec  *codec
	closed atomic.Bool
}

// OpenBadger creates or opens a badger-backed cache in cfg.Dir.
func OpenBadger(cfg Config) (*BadgerStore, error) {
	c, err := newCodec(cfg.CompressLevel)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	opts = opts.
		WithSyncWrites(!cfg.NoSync).
		WithNumCompactors(2).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	Logger().Debug("opened unit cache", zap.String("backend", BackendBadger), zap.String("dir", cfg.Dir))
	return &BadgerStore{db: db, codec: c}, nil
}

func badgerKey(url string) []byte {
	key := CacheKey(url)
	return append(append([]byte(nil), keyPrefix...), key[:]...)
}

func (s *BadgerStore) Save(url string, u *compiled.Unit) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := s.codec.encode(url, u)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(url), data)
	})
}

func (s *BadgerStore) Load(url string, sourceTimeStamp int64) (*compiled.Unit, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(url))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.codec.decode(url, data, sourceTimeStamp)
}

func (s *BadgerStore) Delete(url string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(url))
	})
}

func (s *BadgerStore) ForEach(fn func(key Key, data []byte) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var key Key
			copy(key[:], item.Key()[len(keyPrefix):])
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Len() (int, error) {
	n := 0
	err := s.ForEach(func(Key, []byte) error {
		n++
		return nil
	})
	return n, err
}

// Close closes the database. Closing twice is a no-op.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
