package modules

import (
	"io/fs"
	"time"
)

// ModuleFS extends Go's standard io/fs interfaces for module loading
type ModuleFS interface {
	fs.FS
	fs.ReadFileFS // Required for reading manifests
}

// Provider supplies compiled units for URLs.
type Provider interface {
	// Name returns a human-readable name for this provider
	Name() string

	// CanProvide returns true if this provider handles the given URL
	CanProvide(url string) bool

	// Provide returns the compiled unit for url
	Provide(url string) (*Module, error)

	// Priority returns the priority of this provider (lower = higher priority)
	Priority() int
}

// ModTimer is implemented by providers that can report a source modification
// time without decoding the unit.
type ModTimer interface {
	ModTime(url string) (time.Time, error)
}

// Registry maps URLs to loaded dependencies.
type Registry interface {
	// Get retrieves an entry by URL
	Get(url string) *Entry

	// Set stores an entry; an existing entry for the URL is kept and returned
	Set(entry *Entry) *Entry

	// Remove removes an entry
	Remove(url string)

	// Clear removes all entries
	Clear()

	// List returns all registered URLs, sorted
	List() []string

	// Entries returns all entries in URL order
	Entries() []*Entry

	// Size returns the number of entries
	Size() int

	// Stats returns registry statistics
	Stats() RegistryStats
}
