package modules

import (
	"time"

	"go.uber.org/zap"

	"linkvm/pkg/unitcache"
)

// CachedProvider puts a persistent unit cache in front of another provider.
// Entries are validated against the inner provider's modification time when
// it implements ModTimer.
type CachedProvider struct {
	inner Provider
	store unitcache.Store
}

// NewCachedProvider wraps inner with store. A nil store disables caching.
func NewCachedProvider(inner Provider, store unitcache.Store) *CachedProvider {
	return &CachedProvider{inner: inner, store: store}
}

func (p *CachedProvider) Name() string                { return p.inner.Name() }
func (p *CachedProvider) Priority() int               { return p.inner.Priority() }
func (p *CachedProvider) CanProvide(url string) bool { return p.inner.CanProvide(url) }

// Provide returns the cached unit for url when it is current, otherwise it
// asks the inner provider and stores the result.
func (p *CachedProvider) Provide(url string) (*Module, error) {
	if p.store == nil {
		return p.inner.Provide(url)
	}

	var modTime time.Time
	if mt, ok := p.inner.(ModTimer); ok {
		if t, err := mt.ModTime(url); err == nil {
			modTime = t
		}
	}

	var ts int64
	if !modTime.IsZero() {
		ts = modTime.UnixMilli()
	}
	if u, err := p.store.Load(url, ts); err == nil {
		Logger().Debug("unit cache hit", zap.String("url", url))
		return &Module{URL: url, Unit: u, ModTime: modTime, Provider: p.inner.Name(), Cached: true}, nil
	}

	mod, err := p.inner.Provide(url)
	if err != nil {
		return nil, err
	}
	if err := p.store.Save(url, mod.Unit); err != nil {
		Logger().Warn("failed to cache unit", zap.String("url", url), zap.Error(err))
	} else {
		Logger().Debug("cached unit", zap.String("url", url))
	}
	return mod, nil
}

// ModTime forwards to the inner provider when it reports modification times.
func (p *CachedProvider) ModTime(url string) (time.Time, error) {
	if mt, ok := p.inner.(ModTimer); ok {
		return mt.ModTime(url)
	}
	return time.Time{}, nil
}
