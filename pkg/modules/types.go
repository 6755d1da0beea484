package modules

import (
	"time"

	"linkvm/pkg/compiled"
	"linkvm/pkg/unit"
)

// EntryKind tells which side of the dependency union an entry holds.
type EntryKind int

const (
	KindCompiled EntryKind = iota
	KindNative
)

func (k EntryKind) String() string {
	switch k {
	case KindCompiled:
		return "compiled"
	case KindNative:
		return "native"
	default:
		return "invalid"
	}
}

// Entry is a registered module.
type Entry struct {
	URL        string
	Dependency unit.Dependency
	Provider   string    // Name of the provider that supplied a compiled unit
	LoadTime   time.Time // When the entry was registered
}

// Kind reports whether the entry is compiled or native.
func (e *Entry) Kind() EntryKind {
	if _, ok := e.Dependency.(unit.NativeModule); ok {
		return KindNative
	}
	return KindCompiled
}

// Unit returns the executable unit of a compiled entry, or nil.
func (e *Entry) Unit() *unit.ExecutableUnit {
	if cm, ok := e.Dependency.(unit.CompiledModule); ok {
		return cm.Unit
	}
	return nil
}

// Module is a compiled unit supplied by a provider.
type Module struct {
	URL      string
	Unit     *compiled.Unit
	ModTime  time.Time // Source modification time, zero when unknown
	Provider string    // Name of the provider that supplied it
	Cached   bool      // Whether the unit came from the persistent cache
}

// RegistryStats contains statistics about the module registry
type RegistryStats struct {
	TotalModules    int   // Entries currently registered
	CompiledModules int   // Entries backed by a compiled unit
	NativeModules   int   // Entries backed by a host value
	Hits            int64 // Lookups that found an entry
	Misses          int64 // Lookups that found nothing
}
