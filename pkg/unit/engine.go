package unit

import (
	"io"

	"linkvm/pkg/vm"
)

// Engine is the host a unit is linked into. All calls happen on the engine's
// single control-flow stack; LoadModule may re-enter Instantiate of other
// units synchronously.
type Engine interface {
	Heap() *vm.Heap

	// LoadModule resolves url against referrer and returns the dependency,
	// or nil with the exception flag set when it cannot be loaded.
	LoadModule(url string, referrer *ExecutableUnit) Dependency
	// ModuleForURL returns an already registered dependency without loading.
	ModuleForURL(url string) Dependency
	// RegisterNativeModule registers v under url and returns the stored
	// dependency. Registering an existing url returns the existing entry.
	RegisterNativeModule(url string, v vm.Value) Dependency

	ThrowReferenceError(msg, file string, line, column int)
	ThrowTypeError(msg string)
	HasException() bool

	Translator() Translator

	// Call runs fn with scope as its call context. Functions without native
	// code are handed to the engine's interpreter.
	Call(fn *vm.Function, scope *vm.CallContext, this vm.Value) vm.Value

	// Diagnostics receives unit dumps after populate; nil disables them.
	Diagnostics() io.Writer
}

// Translator is the host translation facility.
type Translator interface {
	// Translate looks up source in context; comment disambiguates and n
	// selects the plural form when n >= 0.
	Translate(context, source, comment string, n int) string
	// TranslateID looks up a message by id.
	TranslateID(id string, n int) string
}

// Dependency is a loaded module: either a CompiledModule or a NativeModule.
type Dependency interface {
	isDependency()
}

// CompiledModule is a dependency backed by an executable unit.
type CompiledModule struct {
	Unit *ExecutableUnit
}

// NativeModule is a dependency backed by a host value. Value points at the
// engine-owned cell, so imports bind to it rather than copy it. URL is the
// key the module is registered under; fragments for named members derive
// from it, not from the request string that reached it.
type NativeModule struct {
	Value *vm.Value
	URL   string
}

func (CompiledModule) isDependency() {}
func (NativeModule) isDependency()   {}

// AOTFunction binds a natively compiled body to the function at Index.
type AOTFunction struct {
	Index int
	Code  vm.Code
}
