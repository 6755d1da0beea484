// Package unit turns an immutable compiled.Unit into live runtime state and
// links ES module units into a graph of module records.
//
// An ExecutableUnit materializes its runtime tables once (Populate), binds a
// ModuleRecord once (Instantiate), answers export queries with live slots
// (ResolveExport), reports its references to the collector (MarkObjects) and
// releases everything on Clear. All operations run on the owning engine's
// control-flow stack; errors are reported through the engine's exception flag.
package unit

import (
	"sort"

	"go.uber.org/zap"

	"linkvm/pkg/compiled"
	"linkvm/pkg/vm"
)

// ExecutableUnit is the runtime materialization of a compiled unit.
type ExecutableUnit struct {
	engine Engine
	data   *compiled.Unit
	url    string
	aot    []AOTFunction

	rt      *runtimeTables
	cleared bool

	module          *ModuleRecord
	imports         []*vm.Value
	templateObjects []*vm.Object
	namedObjects    map[int]map[string]int
}

// Option configures a unit at construction.
type Option func(*ExecutableUnit)

// WithURL sets the URL the unit was loaded from. It defaults to the file name
// recorded in the compiled unit.
func WithURL(url string) Option {
	return func(u *ExecutableUnit) { u.url = url }
}

// WithAOTFunctions supplies natively compiled function bodies. The list is
// sorted by function index; entries with duplicate indices keep the first.
func WithAOTFunctions(fns []AOTFunction) Option {
	return func(u *ExecutableUnit) {
		u.aot = append([]AOTFunction(nil), fns...)
		sort.SliceStable(u.aot, func(i, j int) bool { return u.aot[i].Index < u.aot[j].Index })
	}
}

// New creates an unpopulated unit owned by engine.
func New(engine Engine, data *compiled.Unit, opts ...Option) *ExecutableUnit {
	u := &ExecutableUnit{engine: engine, data: data}
	for _, opt := range opts {
		opt(u)
	}
	if u.url == "" {
		u.url = data.FileName()
	}
	return u
}

func (u *ExecutableUnit) Engine() Engine           { return u.engine }
func (u *ExecutableUnit) Data() *compiled.Unit     { return u.data }
func (u *ExecutableUnit) URL() string              { return u.url }
func (u *ExecutableUnit) FileName() string         { return u.data.FileName() }
func (u *ExecutableUnit) IsESModule() bool         { return u.data.IsESModule() }
func (u *ExecutableUnit) IsPopulated() bool        { return u.rt != nil }
func (u *ExecutableUnit) IsCleared() bool          { return u.cleared }
func (u *ExecutableUnit) ModuleRequests() []string { return u.data.ModuleRequestURLs() }
func (u *ExecutableUnit) StringAt(i uint32) string { return u.data.StringAt(i) }

func (u *ExecutableUnit) logger() *zap.Logger {
	return Logger().With(zap.String("unit", u.url))
}

func (u *ExecutableUnit) heap() *vm.Heap { return u.engine.Heap() }

func (u *ExecutableUnit) identifiers() *vm.IdentifierTable {
	return u.engine.Heap().Identifiers()
}

// Module returns the bound module record, or nil before instantiation.
func (u *ExecutableUnit) Module() *ModuleRecord { return u.module }

// Imports returns the resolved import slots in import-entry order.
func (u *ExecutableUnit) Imports() []*vm.Value { return u.imports }

// RuntimeString returns the materialized string at i, or nil when the unit is
// not populated or i is out of range.
func (u *ExecutableUnit) RuntimeString(i uint32) *vm.String {
	if u.rt == nil || int(i) >= len(u.rt.strings) {
		return nil
	}
	return u.rt.strings[i]
}

// RuntimeFunction returns the function object at i, or nil.
func (u *ExecutableUnit) RuntimeFunction(i int) *vm.Function {
	if u.rt == nil || i < 0 || i >= len(u.rt.functions) {
		return nil
	}
	return u.rt.functions[i]
}

// RuntimeRegExp returns the regexp object at i, or nil.
func (u *ExecutableUnit) RuntimeRegExp(i int) *vm.RegExpObject {
	if u.rt == nil || i < 0 || i >= len(u.rt.regexps) {
		return nil
	}
	return u.rt.regexps[i]
}

// RuntimeLookup returns the lookup cache at i, or nil.
func (u *ExecutableUnit) RuntimeLookup(i int) *vm.Lookup {
	if u.rt == nil || i < 0 || i >= len(u.rt.lookups) {
		return nil
	}
	return &u.rt.lookups[i]
}

// RuntimeClass returns the object-literal class at i, or nil.
func (u *ExecutableUnit) RuntimeClass(i int) *vm.InternalClass {
	if u.rt == nil || i < 0 || i >= len(u.rt.classes) {
		return nil
	}
	return u.rt.classes[i]
}

// RuntimeBlock returns the block scope class at i, or nil.
func (u *ExecutableUnit) RuntimeBlock(i int) *vm.InternalClass {
	if u.rt == nil || i < 0 || i >= len(u.rt.blocks) {
		return nil
	}
	return u.rt.blocks[i]
}

// RootFunction returns the function object of the unit's entry point.
func (u *ExecutableUnit) RootFunction() *vm.Function {
	if !u.data.HasRootFunction() {
		return nil
	}
	return u.RuntimeFunction(int(u.data.IndexOfRootFunction))
}

// propertyKey interns the runtime string at i. Out of range indices map to
// the empty identifier.
func (u *ExecutableUnit) propertyKey(i uint32) vm.PropertyKey {
	if s := u.RuntimeString(i); s != nil {
		return u.identifiers().AsPropertyKey(s)
	}
	return u.identifiers().Intern(u.data.StringAt(i))
}

func (u *ExecutableUnit) throwReferenceError(msg string, loc compiled.Location) {
	u.engine.ThrowReferenceError(msg, u.FileName(), int(loc.Line), int(loc.Column))
}
