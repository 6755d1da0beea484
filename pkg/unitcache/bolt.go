package unitcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"linkvm/pkg/compiled"
)

// BoltFileName is the database file created inside Config.Dir.
const BoltFileName = "units.db"

// bucketUnits stores serialized units keyed by CacheKey.
var bucketUnits = []byte("units")

// BoltStore is a Store backed by a single bbolt database file.
type BoltStore struct {
	db     *bolt.DB
	codec  *codec
	closed atomic.Bool
}

// OpenBolt creates or opens a bolt-backed cache in cfg.Dir.
func OpenBolt(cfg Config) (*BoltStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	c, err := newCodec(cfg.CompressLevel)
	if err != nil {
		return nil, err
	}

	opts := &bolt.Options{
		Timeout: 5 * time.Second,
		NoSync:  cfg.NoSync,
	}
	path := filepath.Join(cfg.Dir, BoltFileName)
	db, err := bolt.Open(path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketUnits)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	Logger().Debug("opened unit cache", zap.String("backend", BackendBolt), zap.String("path", path))
	return &BoltStore{db: db, codec: c}, nil
}

func (s *BoltStore) Save(url string, u *compiled.Unit) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := s.codec.encode(url, u)
	if err != nil {
		return err
	}
	key := CacheKey(url)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUnits).Put(key[:], data)
	})
}

func (s *BoltStore) Load(url string, sourceTimeStamp int64) (*compiled.Unit, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var data []byte
	key := CacheKey(url)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUnits).Get(key[:])
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.codec.decode(url, data, sourceTimeStamp)
}

func (s *BoltStore) Delete(url string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	key := CacheKey(url)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUnits).Delete(key[:])
	})
}

func (s *BoltStore) ForEach(fn func(key Key, data []byte) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUnits).ForEach(func(k, v []byte) error {
			var key Key
			copy(key[:], k)
			return fn(key, append([]byte(nil), v...))
		})
	})
}

func (s *BoltStore) Len() (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketUnits).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database. Closing twice is a no-op.
func (s *BoltStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
