package unit

import (
	"io"

	"linkvm/pkg/compiled"
	"linkvm/pkg/errors"
	"linkvm/pkg/vm"
)

// fakeEngine is a minimal host: modules are registered by exact URL and
// exceptions are recorded rather than thrown.
type fakeEngine struct {
	heap       *vm.Heap
	modules    map[string]Dependency
	exception  error
	translator Translator
	diag       io.Writer
	loads      []string
	// silentMissing makes LoadModule return nil without raising.
	silentMissing bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		heap:    vm.NewHeap(0),
		modules: make(map[string]Dependency),
	}
}

func (e *fakeEngine) Heap() *vm.Heap { return e.heap }

func (e *fakeEngine) LoadModule(url string, referrer *ExecutableUnit) Dependency {
	e.loads = append(e.loads, url)
	if dep, ok := e.modules[url]; ok {
		return dep
	}
	if !e.silentMissing {
		e.ThrowReferenceError("module "+url+" not found", "", 0, 0)
	}
	return nil
}

func (e *fakeEngine) ModuleForURL(url string) Dependency {
	return e.modules[url]
}

func (e *fakeEngine) RegisterNativeModule(url string, v vm.Value) Dependency {
	if dep, ok := e.modules[url]; ok {
		return dep
	}
	cell := new(vm.Value)
	*cell = v
	dep := NativeModule{Value: cell, URL: url}
	e.modules[url] = dep
	return dep
}

func (e *fakeEngine) ThrowReferenceError(msg, file string, line, column int) {
	e.exception = &errors.ReferenceError{Position: errors.Position{File: file, Line: line, Column: column}, Msg: msg}
}

func (e *fakeEngine) ThrowTypeError(msg string) {
	e.exception = &errors.TypeError{Msg: msg}
}

func (e *fakeEngine) HasException() bool { return e.exception != nil }

func (e *fakeEngine) Translator() Translator { return e.translator }

func (e *fakeEngine) Call(fn *vm.Function, scope *vm.CallContext, this vm.Value) vm.Value {
	v, ok := fn.Call(scope, this, nil)
	if !ok {
		e.ThrowTypeError(fn.Name() + " is not callable")
	}
	return v
}

func (e *fakeEngine) Diagnostics() io.Writer { return e.diag }

// addUnit builds b as an ES module and registers it under url.
func (e *fakeEngine) addUnit(url string, b *compiled.Builder, opts ...Option) *ExecutableUnit {
	b.SetFlags(compiled.IsESModule)
	u := New(e, b.Build(), append([]Option{WithURL(url)}, opts...)...)
	e.modules[url] = CompiledModule{Unit: u}
	return u
}

// moduleBuilder starts a module whose root function declares locals.
func moduleBuilder(file string, locals ...string) *compiled.Builder {
	b := compiled.NewBuilder(file)
	b.SetRootFunction(b.AddFunction("%entry", nil, locals, compiled.Location{Line: 1, Column: 1}))
	return b
}

type recordingTranslator struct {
	calls []string
}

func (t *recordingTranslator) Translate(context, source, comment string, n int) string {
	t.calls = append(t.calls, "ctx:"+context+"|"+source+"|"+comment)
	return "T(" + source + ")"
}

func (t *recordingTranslator) TranslateID(id string, n int) string {
	t.calls = append(t.calls, "id:"+id)
	return "ID(" + id + ")"
}
