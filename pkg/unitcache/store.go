// Package unitcache persists compiled units between runs so hosts can skip
// manifest decoding. Entries are keyed by the blake3 hash of the unit URL and
// hold the serialized unit (header, checksum and zstd payload).
package unitcache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"linkvm/pkg/compiled"
)

var (
	// ErrNotFound is returned when no unit is cached for a URL.
	ErrNotFound = errors.New("unit not cached")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("unit cache closed")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown cache backend")
)

// Backend names accepted by Open.
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
	BackendNone   = "none"
)

// Key identifies a cached unit.
type Key [32]byte

// CacheKey derives the key of the unit loaded from url.
func CacheKey(url string) Key {
	return Key(blake3.Sum256([]byte(url)))
}

// String renders the key in base58.
func (k Key) String() string {
	return base58.Encode(k[:])
}

// Config holds unit cache configuration options.
type Config struct {
	// Backend selects the storage engine: bolt, badger or none.
	Backend string

	// Dir is the directory holding the cache database.
	Dir string

	// CompressLevel is the zstd level of stored payloads, 0 for the default.
	CompressLevel int

	// NoSync disables fsync after each write.
	NoSync bool

	// InMemory keeps a badger cache in memory only; used by tests.
	InMemory bool
}

// DefaultConfig returns the default cache configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Backend:       BackendBolt,
		Dir:           dir,
		CompressLevel: 3,
	}
}

// Store is a persistent compiled-unit cache.
type Store interface {
	// Save serializes u under url, replacing any previous entry.
	Save(url string, u *compiled.Unit) error

	// Load returns the unit cached for url. A non-zero sourceTimeStamp
	// rejects entries recorded for a different source revision.
	Load(url string, sourceTimeStamp int64) (*compiled.Unit, error)

	// Delete removes the entry for url.
	Delete(url string) error

	// ForEach calls fn for every entry with its raw serialized data.
	ForEach(fn func(key Key, data []byte) error) error

	// Len is the number of cached units.
	Len() (int, error)

	Close() error
}

// Open creates or opens the store selected by cfg. The none backend yields a
// nil store and no error.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendBolt, "bbolt", "":
		return OpenBolt(cfg)
	case BackendBadger:
		return OpenBadger(cfg)
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// codec serializes units for both backends.
type codec struct {
	enc *compiled.Encoder
}

func newCodec(level int) (*codec, error) {
	enc, err := compiled.NewEncoder(level)
	if err != nil {
		return nil, err
	}
	return &codec{enc: enc}, nil
}

func (c *codec) encode(url string, u *compiled.Unit) ([]byte, error) {
	data, err := c.enc.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", url, err)
	}
	return data, nil
}

func (c *codec) decode(url string, data []byte, sourceTimeStamp int64) (*compiled.Unit, error) {
	u, err := compiled.Unmarshal(data, sourceTimeStamp)
	if err != nil {
		Logger().Info("discarding cached unit", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	return u, nil
}
