package modules

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// registry implements the Registry interface
type registry struct {
	entries map[string]*Entry // Map of URL -> entry
	mutex   sync.RWMutex      // Protects entries
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewRegistry creates an empty module registry
func NewRegistry() Registry {
	return &registry{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves an entry by URL
func (r *registry) Get(url string) *Entry {
	r.mutex.RLock()
	entry := r.entries[url]
	r.mutex.RUnlock()

	if entry != nil {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	return entry
}

// Set stores an entry. Registered dependencies are never replaced: a unit
// already linked against an entry must keep seeing the same slots.
func (r *registry) Set(entry *Entry) *Entry {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing := r.entries[entry.URL]; existing != nil {
		return existing
	}
	if entry.LoadTime.IsZero() {
		entry.LoadTime = time.Now()
	}
	r.entries[entry.URL] = entry
	return entry
}

// Remove removes an entry
func (r *registry) Remove(url string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.entries, url)
}

// Clear removes all entries and resets statistics
func (r *registry) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.entries = make(map[string]*Entry)
	r.hits.Store(0)
	r.misses.Store(0)
}

// List returns all registered URLs, sorted
func (r *registry) List() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	urls := make([]string, 0, len(r.entries))
	for url := range r.entries {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Entries returns all entries in URL order
func (r *registry) Entries() []*Entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	return entries
}

// Size returns the number of entries
func (r *registry) Size() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.entries)
}

// Stats returns current registry statistics
func (r *registry) Stats() RegistryStats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := RegistryStats{
		TotalModules: len(r.entries),
		Hits:         r.hits.Load(),
		Misses:       r.misses.Load(),
	}
	for _, e := range r.entries {
		if e.Kind() == KindNative {
			stats.NativeModules++
		} else {
			stats.CompiledModules++
		}
	}
	return stats
}
