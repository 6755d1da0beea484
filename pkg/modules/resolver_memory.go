package modules

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"linkvm/pkg/compiled"
	"linkvm/pkg/errors"
)

// MemoryProvider serves compiled units registered in memory. Hosts use it for
// units built programmatically and tests use it for module graphs.
type MemoryProvider struct {
	name     string                   // Human-readable name
	modules  map[string]*memoryModule // Map of URL -> module
	mutex    sync.RWMutex             // Protects concurrent access
	priority int                      // Resolution priority
}

type memoryModule struct {
	unit     *compiled.Unit
	modified time.Time
}

// NewMemoryProvider creates an empty in-memory provider
func NewMemoryProvider(name string) *MemoryProvider {
	if name == "" {
		name = "Memory"
	}
	return &MemoryProvider{
		name:     name,
		modules:  make(map[string]*memoryModule),
		priority: 50, // Higher priority than file system providers
	}
}

// Name returns the provider name
func (p *MemoryProvider) Name() string {
	return p.name
}

// Priority returns the provider priority
func (p *MemoryProvider) Priority() int {
	return p.priority
}

// SetPriority sets the provider priority
func (p *MemoryProvider) SetPriority(priority int) {
	p.priority = priority
}

// CanProvide returns true if a unit is registered under url
func (p *MemoryProvider) CanProvide(url string) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	_, ok := p.modules[url]
	return ok
}

// Provide returns the unit registered under url
func (p *MemoryProvider) Provide(url string) (*Module, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	m, ok := p.modules[url]
	if !ok {
		return nil, fmt.Errorf("%s: %w", url, errors.ErrModuleNotFound)
	}
	return &Module{URL: url, Unit: m.unit, ModTime: m.modified, Provider: p.name}, nil
}

// ModTime returns when the unit under url was last added
func (p *MemoryProvider) ModTime(url string) (time.Time, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	m, ok := p.modules[url]
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", url, errors.ErrModuleNotFound)
	}
	return m.modified, nil
}

// Add registers u under url, replacing any previous unit. The unit's source
// timestamp doubles as its modification time when set.
func (p *MemoryProvider) Add(url string, u *compiled.Unit) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	modified := time.Now()
	if u.SourceTimeStamp != 0 {
		modified = time.UnixMilli(u.SourceTimeStamp)
	}
	p.modules[url] = &memoryModule{unit: u, modified: modified}
}

// AddManifest decodes a TOML manifest and registers the unit under url
func (p *MemoryProvider) AddManifest(url string, manifest []byte) error {
	u, _, err := compiled.LoadManifest(manifest)
	if err != nil {
		return fmt.Errorf("manifest %s: %w", url, err)
	}
	p.Add(url, u)
	return nil
}

// Remove unregisters url
func (p *MemoryProvider) Remove(url string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	delete(p.modules, url)
}

// URLs lists the registered URLs, sorted
func (p *MemoryProvider) URLs() []string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	urls := make([]string, 0, len(p.modules))
	for url := range p.modules {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}
