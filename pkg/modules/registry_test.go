package modules

import (
	"testing"

	"linkvm/pkg/compiled"
	"linkvm/pkg/unit"
	"linkvm/pkg/vm"
)

func compiledEntry(url string) *Entry {
	data := compiled.NewBuilder(url).SetFlags(compiled.IsESModule).Build()
	return &Entry{URL: url, Dependency: unit.CompiledModule{Unit: unit.New(nil, data)}}
}

func nativeEntry(url string) *Entry {
	v := vm.NumberValue(42)
	return &Entry{URL: url, Dependency: unit.NativeModule{Value: &v}}
}

func TestRegistryBasicOperations(t *testing.T) {
	registry := NewRegistry()

	if registry.Size() != 0 {
		t.Errorf("Expected empty registry, got size %d", registry.Size())
	}

	entry := registry.Set(compiledEntry("/a.mjs"))
	if entry.LoadTime.IsZero() {
		t.Error("Expected Set to stamp the load time")
	}
	if registry.Size() != 1 {
		t.Errorf("Expected registry size 1, got %d", registry.Size())
	}

	retrieved := registry.Get("/a.mjs")
	if retrieved == nil {
		t.Fatal("Expected to retrieve entry, got nil")
	}
	if retrieved.Kind() != KindCompiled || retrieved.Unit() == nil {
		t.Errorf("Expected a compiled entry, got %s", retrieved.Kind())
	}

	if registry.Get("/missing.mjs") != nil {
		t.Error("Expected nil for non-existent module")
	}
}

func TestRegistrySetKeepsExisting(t *testing.T) {
	registry := NewRegistry()

	first := registry.Set(compiledEntry("/a.mjs"))
	second := registry.Set(nativeEntry("/a.mjs"))
	if second != first {
		t.Error("Expected Set to return the existing entry")
	}
	if registry.Get("/a.mjs").Kind() != KindCompiled {
		t.Error("Expected the registered dependency to stay compiled")
	}
}

func TestRegistryListAndEntries(t *testing.T) {
	registry := NewRegistry()
	for _, url := range []string{"/c.mjs", "/a.mjs", "/b.mjs"} {
		registry.Set(compiledEntry(url))
	}

	list := registry.List()
	want := []string{"/a.mjs", "/b.mjs", "/c.mjs"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d URLs, got %v", len(want), list)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, list[i], want[i])
		}
	}
	for i, e := range registry.Entries() {
		if e.URL != want[i] {
			t.Errorf("Entries()[%d] = %s, want %s", i, e.URL, want[i])
		}
	}
}

func TestRegistryRemoveAndClear(t *testing.T) {
	registry := NewRegistry()
	registry.Set(compiledEntry("/a.mjs"))
	registry.Set(nativeEntry("/host"))

	registry.Remove("/a.mjs")
	if registry.Get("/a.mjs") != nil {
		t.Error("Expected module to be removed")
	}
	if registry.Size() != 1 {
		t.Errorf("Expected size 1 after remove, got %d", registry.Size())
	}

	registry.Clear()
	if registry.Size() != 0 {
		t.Errorf("Expected empty registry after clear, got %d", registry.Size())
	}
	if stats := registry.Stats(); stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Expected clear to reset counters, got %+v", stats)
	}
}

func TestRegistryStats(t *testing.T) {
	registry := NewRegistry()
	registry.Set(compiledEntry("/a.mjs"))
	registry.Set(compiledEntry("/b.mjs"))
	registry.Set(nativeEntry("/host"))

	registry.Get("/a.mjs")
	registry.Get("/host")
	registry.Get("/nope")

	stats := registry.Stats()
	if stats.TotalModules != 3 || stats.CompiledModules != 2 || stats.NativeModules != 1 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Expected 2 hits and 1 miss, got %d/%d", stats.Hits, stats.Misses)
	}
}

func TestEntryKindString(t *testing.T) {
	tests := []struct {
		kind     EntryKind
		expected string
	}{
		{KindCompiled, "compiled"},
		{KindNative, "native"},
		{EntryKind(99), "invalid"},
	}
	for _, test := range tests {
		if got := test.kind.String(); got != test.expected {
			t.Errorf("EntryKind(%d).String() = %s, want %s", test.kind, got, test.expected)
		}
	}
}
