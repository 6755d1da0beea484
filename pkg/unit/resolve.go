package unit

import (
	"sort"

	"go.uber.org/zap"

	"linkvm/pkg/compiled"
	"linkvm/pkg/vm"
)

// ResolveSet records the (unit, export name) pairs visited by one export
// resolution. A pair seen twice means the graph cycles back and the name is
// unresolved.
type ResolveSet struct {
	entries []resolveSetEntry
}

type resolveSetEntry struct {
	unit *ExecutableUnit
	name string
}

func NewResolveSet() *ResolveSet {
	return &ResolveSet{}
}

// Contains reports whether (u, name) has been visited.
func (s *ResolveSet) Contains(u *ExecutableUnit, name string) bool {
	for _, e := range s.entries {
		if e.unit == u && e.name == name {
			return true
		}
	}
	return false
}

// Add records (u, name); it returns false when the pair was already present.
func (s *ResolveSet) Add(u *ExecutableUnit, name string) bool {
	if s.Contains(u, name) {
		return false
	}
	s.entries = append(s.entries, resolveSetEntry{unit: u, name: name})
	return true
}

func (s *ResolveSet) Len() int { return len(s.entries) }

// ResolveExport returns the live slot bound to exportName, or nil when the
// name is not exported, cyclic or ambiguous.
func (u *ExecutableUnit) ResolveExport(exportName string) *vm.Value {
	return u.ResolveExportRecursively(exportName, NewResolveSet())
}

// ResolveExportRecursively is ResolveExport threading an explicit visited set.
func (u *ExecutableUnit) ResolveExportRecursively(exportName string, set *ResolveSet) *vm.Value {
	if u.module == nil {
		return nil
	}
	if !set.Add(u, exportName) {
		return nil
	}
	if exportName == "*" {
		return &u.module.self
	}

	if entry := u.lookupNameInExportTable(u.data.LocalExportEntries, exportName); entry != nil {
		return u.localExportSlot(entry)
	}

	if entry := u.lookupNameInExportTable(u.data.IndirectExportEntries, exportName); entry != nil {
		url := u.data.StringAt(entry.ModuleRequest)
		importName := u.data.StringAt(entry.ImportName)
		switch dep := u.engine.LoadModule(url, u).(type) {
		case CompiledModule:
			return dep.Unit.ResolveExportRecursively(importName, set)
		case NativeModule:
			return u.resolveNativeExport(url, importName, dep)
		default:
			return nil
		}
	}

	if exportName == "default" {
		return nil
	}

	var starResolution *vm.Value
	for _, entry := range u.data.StarExportEntries {
		url := u.data.StringAt(entry.ModuleRequest)
		var resolution *vm.Value
		switch dep := u.engine.LoadModule(url, u).(type) {
		case CompiledModule:
			resolution = dep.Unit.ResolveExportRecursively(exportName, set)
		case NativeModule:
			resolution = u.resolveNativeStar(url, exportName, dep)
		default:
			return nil
		}
		if resolution == nil {
			continue
		}
		if starResolution == nil {
			starResolution = resolution
			continue
		}
		if resolution != starResolution {
			u.logger().Debug("ambiguous star export", zap.String("name", exportName), zap.String("from", url))
			return nil
		}
	}
	return starResolution
}

// localExportSlot maps a local export to the scope slot of its local name.
// Names past the module's own locals are imports re-exported under a local
// name and resolve to the import slot.
func (u *ExecutableUnit) localExportSlot(entry *compiled.ExportEntry) *vm.Value {
	m := u.module
	index, ok := m.scope.Class().IndexOf(u.propertyKey(entry.LocalName))
	if !ok {
		return nil
	}
	if index < m.localsCount {
		return m.scope.Slot(index)
	}
	i := index - m.localsCount
	if i >= len(u.imports) || u.imports[i] == nil {
		u.logger().Debug("local export refers to an unbound import slot",
			zap.String("local", u.data.StringAt(entry.LocalName)),
			zap.Int("slot", i),
			zap.Int("imports", len(u.imports)))
		return nil
	}
	return u.imports[i]
}

// lookupNameInExportTable binary searches a table sorted by export name.
func (u *ExecutableUnit) lookupNameInExportTable(table []compiled.ExportEntry, name string) *compiled.ExportEntry {
	i := sort.Search(len(table), func(i int) bool {
		return u.data.StringAt(table[i].ExportName) >= name
	})
	if i == len(table) || u.data.StringAt(table[i].ExportName) != name {
		return nil
	}
	return &table[i]
}

// ExportedNames returns the sorted, de-duplicated names this unit exports,
// including names reached through star exports. "default" is only reported
// for the unit itself, never through a star export.
func (u *ExecutableUnit) ExportedNames() []string {
	var names []string
	visited := make(map[*ExecutableUnit]bool)
	u.exportedNamesRecursively(&names, visited, true)

	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, n := range names {
		if len(out) > 0 && out[len(out)-1] == n {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (u *ExecutableUnit) exportedNamesRecursively(names *[]string, visited map[*ExecutableUnit]bool, includeDefault bool) {
	if visited[u] {
		return
	}
	visited[u] = true

	add := func(name string) {
		if !includeDefault && name == "default" {
			return
		}
		*names = append(*names, name)
	}
	for _, entry := range u.data.LocalExportEntries {
		add(u.data.StringAt(entry.ExportName))
	}
	for _, entry := range u.data.IndirectExportEntries {
		add(u.data.StringAt(entry.ExportName))
	}
	for _, entry := range u.data.StarExportEntries {
		switch dep := u.engine.LoadModule(u.data.StringAt(entry.ModuleRequest), u).(type) {
		case CompiledModule:
			dep.Unit.exportedNamesRecursively(names, visited, false)
		case NativeModule:
			if obj := dep.Value.AsObject(); obj != nil {
				for _, key := range obj.OwnKeys() {
					if key != "default" {
						*names = append(*names, key)
					}
				}
			}
		default:
			return
		}
	}
}
