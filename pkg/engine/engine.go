// Package engine hosts compiled units: it owns the heap, loads dependencies
// through module providers, records exceptions and runs module graphs.
package engine

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"linkvm/pkg/errors"
	"linkvm/pkg/modules"
	"linkvm/pkg/unit"
	"linkvm/pkg/vm"
)

// Interpreter runs functions that have no native code.
type Interpreter func(e *Engine, fn *vm.Function, scope *vm.CallContext, this vm.Value) vm.Value

// Options configures an Engine.
type Options struct {
	// HeapThreshold is the allocation count between collections; 0 selects
	// vm.DefaultGCThreshold and a negative value disables automatic collection.
	HeapThreshold int

	Logger *zap.Logger

	// Interpreter runs code-less functions. Without one they evaluate to
	// undefined.
	Interpreter Interpreter

	// AOT binds native function bodies to the units loaded from a URL.
	AOT map[string][]unit.AOTFunction

	// Providers supply compiled units, consulted in priority order.
	Providers []modules.Provider

	Translator  unit.Translator
	Diagnostics io.Writer

	// PrefetchWorkers bounds Prefetch concurrency; 0 uses one per CPU.
	PrefetchWorkers int
}

// Engine is the host of a module graph. It is not safe for concurrent use;
// only Prefetch fans out internally.
type Engine struct {
	heap        *vm.Heap
	log         *zap.Logger
	registry    modules.Registry
	providers   *modules.Providers
	interpreter Interpreter
	aot         map[string][]unit.AOTFunction
	translator  unit.Translator
	diagnostics io.Writer
	workers     int

	exception  error
	removeRoot func()
	closed     bool
}

var _ unit.Engine = (*Engine)(nil)

// New creates an engine.
func New(opts Options) *Engine {
	threshold := opts.HeapThreshold
	switch {
	case threshold == 0:
		threshold = vm.DefaultGCThreshold
	case threshold < 0:
		threshold = 0
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		heap:        vm.NewHeap(threshold),
		log:         log.Named("engine"),
		registry:    modules.NewRegistry(),
		providers:   modules.NewProviders(opts.Providers...),
		interpreter: opts.Interpreter,
		aot:         opts.AOT,
		translator:  opts.Translator,
		diagnostics: opts.Diagnostics,
		workers:     opts.PrefetchWorkers,
	}
	e.removeRoot = e.heap.AddRoot(vm.RootFunc(e.markObjects))
	return e
}

func (e *Engine) Heap() *vm.Heap                 { return e.heap }
func (e *Engine) Registry() modules.Registry     { return e.registry }
func (e *Engine) Providers() *modules.Providers  { return e.providers }
func (e *Engine) Translator() unit.Translator    { return e.translator }
func (e *Engine) Diagnostics() io.Writer         { return e.diagnostics }
func (e *Engine) Logger() *zap.Logger            { return e.log }
func (e *Engine) AddProvider(p modules.Provider) { e.providers.Add(p) }

// LoadModule returns the dependency registered for url, loading it from the
// providers on first use. Exact registrations win over referrer-relative
// resolution so bare host module names and fragments resolve as registered.
func (e *Engine) LoadModule(url string, referrer *unit.ExecutableUnit) unit.Dependency {
	if dep := e.ModuleForURL(url); dep != nil {
		return dep
	}
	resolved := url
	if referrer != nil {
		resolved = modules.ResolveURL(url, referrer.URL())
		if dep := e.ModuleForURL(resolved); dep != nil {
			return dep
		}
	}

	mod, err := e.providers.Provide(resolved)
	if err != nil {
		e.log.Debug("module load failed", zap.String("url", resolved), zap.Error(err))
		file := ""
		if referrer != nil {
			file = referrer.FileName()
		}
		e.throw(&errors.ReferenceError{
			Position: errors.Position{File: file},
			Msg:      "Unable to load module " + resolved,
			Cause:    err,
		})
		return nil
	}
	return e.register(resolved, mod)
}

// register wraps a provided unit and stores it unless another load won.
func (e *Engine) register(url string, mod *modules.Module) unit.Dependency {
	u := unit.New(e, mod.Unit, unit.WithURL(url), unit.WithAOTFunctions(e.aot[url]))
	entry := e.registry.Set(&modules.Entry{
		URL:        url,
		Dependency: unit.CompiledModule{Unit: u},
		Provider:   mod.Provider,
	})
	e.log.Debug("module loaded",
		zap.String("url", url),
		zap.String("provider", mod.Provider),
		zap.Bool("cached", mod.Cached))
	return entry.Dependency
}

// ModuleForURL returns the dependency registered under url, or nil.
func (e *Engine) ModuleForURL(url string) unit.Dependency {
	if entry := e.registry.Get(url); entry != nil {
		return entry.Dependency
	}
	return nil
}

// RegisterNativeModule registers v under url. The value lives in an
// engine-owned cell that imports bind to.
func (e *Engine) RegisterNativeModule(url string, v vm.Value) unit.Dependency {
	cell := new(vm.Value)
	*cell = v
	entry := e.registry.Set(&modules.Entry{URL: url, Dependency: unit.NativeModule{Value: cell, URL: url}})
	return entry.Dependency
}

// RegisterUnit registers an already built unit under url and returns the
// registered dependency.
func (e *Engine) RegisterUnit(url string, u *unit.ExecutableUnit) unit.Dependency {
	entry := e.registry.Set(&modules.Entry{URL: url, Dependency: unit.CompiledModule{Unit: u}, Provider: "host"})
	return entry.Dependency
}

// Call runs fn with scope. Root functions of units get their constant
// initializers seeded first; code-less functions go to the interpreter.
func (e *Engine) Call(fn *vm.Function, scope *vm.CallContext, this vm.Value) vm.Value {
	if fn.IsDestroyed() {
		e.ThrowTypeError(fmt.Sprintf("function %s belongs to a cleared unit", fn.Name()))
		return vm.Undefined
	}
	if owner, ok := fn.Owner().(*unit.ExecutableUnit); ok && owner.RootFunction() == fn {
		if n := owner.InitializeLocals(scope); n > 0 {
			e.log.Debug("seeded module locals", zap.String("url", owner.URL()), zap.Int("count", n))
		}
	}
	if fn.IsNative() {
		v, _ := fn.Call(scope, this, nil)
		return v
	}
	if e.interpreter == nil {
		e.log.Debug("no interpreter, skipping function", zap.String("function", fn.Name()))
		return vm.Undefined
	}
	return e.interpreter(e, fn, scope, this)
}

// Units returns every compiled unit in the registry, in URL order.
func (e *Engine) Units() []*unit.ExecutableUnit {
	var units []*unit.ExecutableUnit
	for _, entry := range e.registry.Entries() {
		if u := entry.Unit(); u != nil {
			units = append(units, u)
		}
	}
	return units
}

func (e *Engine) markObjects(ms *vm.MarkStack) {
	for _, entry := range e.registry.Entries() {
		switch dep := entry.Dependency.(type) {
		case unit.CompiledModule:
			dep.Unit.MarkObjects(ms)
		case unit.NativeModule:
			ms.PushValue(*dep.Value)
		}
	}
}

// Collect runs a garbage collection cycle.
func (e *Engine) Collect() bool {
	return e.heap.Collect()
}

// Stats is a snapshot of engine state.
type Stats struct {
	Registry modules.RegistryStats
	Heap     vm.HeapStats
}

func (e *Engine) Stats() Stats {
	return Stats{Registry: e.registry.Stats(), Heap: e.heap.Stats()}
}

// Close clears every unit and empties the registry. Closing twice is a no-op.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	for _, u := range e.Units() {
		u.Clear()
	}
	e.registry.Clear()
	e.removeRoot()
	e.log.Debug("engine closed")
	return nil
}
