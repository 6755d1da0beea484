package unit

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"linkvm/pkg/compiled"
	"linkvm/pkg/errors"
	"linkvm/pkg/vm"
)

var noLoc = compiled.Location{}

func mustInstantiate(t *testing.T, e *fakeEngine, u *ExecutableUnit) *ModuleRecord {
	t.Helper()
	m, ok := u.Instantiate()
	if !ok || e.HasException() {
		t.Fatalf("Instantiate(%s) failed: %v", u.URL(), e.exception)
	}
	return m
}

func TestInstantiate_Identity(t *testing.T) {
	e := newFakeEngine()
	u := e.addUnit("/a.mjs", moduleBuilder("/a.mjs", "x"))

	first := mustInstantiate(t, e, u)
	second := mustInstantiate(t, e, u)
	if first != second {
		t.Error("second Instantiate returned a different record")
	}
	if first.LocalsCount() != 1 || first.Scope().Size() != 1 {
		t.Errorf("locals = %d, scope size = %d", first.LocalsCount(), first.Scope().Size())
	}
}

func TestInstantiate_NoRootFunction(t *testing.T) {
	e := newFakeEngine()
	u := e.addUnit("/lib.mjs", compiled.NewBuilder("/lib.mjs"))
	if m, ok := u.Instantiate(); ok || m != nil {
		t.Error("unit without root function should not instantiate")
	}
	if e.HasException() {
		t.Errorf("unexpected exception %v", e.exception)
	}
}

func TestResolveExport_LiveBinding(t *testing.T) {
	e := newFakeEngine()
	a := moduleBuilder("/a.mjs", "x")
	a.AddLocalExport("x", "x", noLoc)
	ua := e.addUnit("/a.mjs", a)

	b := moduleBuilder("/b.mjs")
	b.AddImport("/a.mjs", "x", "x", noLoc)
	ub := e.addUnit("/b.mjs", b)

	mb := mustInstantiate(t, e, ub)
	ma := ua.Module()
	if ma == nil {
		t.Fatal("dependency was not instantiated")
	}

	*ma.Local("x") = vm.NumberValue(42)
	if got := ub.Imports()[0].AsNumber(); got != 42 {
		t.Errorf("import slot = %v, want 42", got)
	}
	if ub.Imports()[0] != ua.ResolveExport("x") {
		t.Error("import slot is not the exporter's slot")
	}
	if mb.Scope().Class().Size() != 1 || mb.LocalsCount() != 0 {
		t.Errorf("importer scope size %d, locals %d", mb.Scope().Class().Size(), mb.LocalsCount())
	}
}

func TestResolveExport_ReexportedImport(t *testing.T) {
	e := newFakeEngine()
	a := moduleBuilder("/a.mjs", "x")
	a.AddLocalExport("x", "x", noLoc)
	ua := e.addUnit("/a.mjs", a)

	// import { x as y } from "/a.mjs"; export { y as z }
	b := moduleBuilder("/b.mjs", "own")
	b.AddImport("/a.mjs", "x", "y", noLoc)
	b.AddLocalExport("z", "y", noLoc)
	ub := e.addUnit("/b.mjs", b)
	mustInstantiate(t, e, ub)

	if got := ub.ResolveExport("z"); got == nil || got != ua.ResolveExport("x") {
		t.Errorf("ResolveExport(z) = %p, want exporter slot %p", got, ua.ResolveExport("x"))
	}
}

func TestResolveExport_Indirect(t *testing.T) {
	e := newFakeEngine()
	a := moduleBuilder("/a.mjs", "x")
	a.AddLocalExport("x", "x", noLoc)
	ua := e.addUnit("/a.mjs", a)

	b := moduleBuilder("/b.mjs")
	b.AddIndirectExport("renamed", "/a.mjs", "x", noLoc)
	ub := e.addUnit("/b.mjs", b)
	mustInstantiate(t, e, ub)

	if got := ub.ResolveExport("renamed"); got == nil || got != ua.ResolveExport("x") {
		t.Error("indirect export did not resolve to the source slot")
	}
	if ub.ResolveExport("x") != nil {
		t.Error("original name should not be exported by the re-exporter")
	}
}

func TestResolveExport_Namespace(t *testing.T) {
	e := newFakeEngine()
	a := moduleBuilder("/a.mjs", "x")
	a.AddLocalExport("x", "x", noLoc)
	ua := e.addUnit("/a.mjs", a)

	b := moduleBuilder("/b.mjs")
	b.AddImport("/a.mjs", "*", "ns", noLoc)
	ub := e.addUnit("/b.mjs", b)
	mustInstantiate(t, e, ub)

	ns := ub.Imports()[0].AsObject()
	if ns == nil || !ns.IsNamespace() || ns != ua.Module().Namespace() {
		t.Fatal("namespace import did not bind the namespace object")
	}
	*ua.Module().Local("x") = vm.NumberValue(7)
	if v, ok := ns.Get("x"); !ok || v.AsNumber() != 7 {
		t.Errorf("ns.x = %v, %v", v.Inspect(), ok)
	}
	if keys := ns.OwnKeys(); !reflect.DeepEqual(keys, []string{"x"}) {
		t.Errorf("namespace keys = %v", keys)
	}
}

func TestResolveExport_DefaultNotThroughStar(t *testing.T) {
	e := newFakeEngine()
	a := moduleBuilder("/a.mjs", "d", "x")
	a.AddLocalExport("default", "d", noLoc)
	a.AddLocalExport("x", "x", noLoc)
	ua := e.addUnit("/a.mjs", a)

	b := moduleBuilder("/b.mjs")
	b.AddStarExport("/a.mjs", noLoc)
	ub := e.addUnit("/b.mjs", b)
	mustInstantiate(t, e, ub)

	if ua.ResolveExport("default") == nil {
		t.Error("exporter should resolve its own default")
	}
	if ub.ResolveExport("default") != nil {
		t.Error("default must not be re-exported through export *")
	}
	if ub.ResolveExport("x") != ua.ResolveExport("x") {
		t.Error("star export did not forward x")
	}
}

func TestResolveExport_StarCycle(t *testing.T) {
	e := newFakeEngine()
	a := moduleBuilder("/a.mjs")
	a.AddStarExport("/b.mjs", noLoc)
	ua := e.addUnit("/a.mjs", a)

	b := moduleBuilder("/b.mjs")
	b.AddStarExport("/a.mjs", noLoc)
	e.addUnit("/b.mjs", b)

	mustInstantiate(t, e, ua)
	if ua.ResolveExport("missing") != nil {
		t.Error("cyclic star export should leave the name unresolved")
	}
}

func TestResolveExport_StarAmbiguity(t *testing.T) {
	e := newFakeEngine()
	shared := moduleBuilder("/shared.mjs", "x")
	shared.AddLocalExport("x", "x", noLoc)
	e.addUnit("/shared.mjs", shared)

	// left and right both forward the same binding.
	left := moduleBuilder("/left.mjs", "y")
	left.AddStarExport("/shared.mjs", noLoc)
	left.AddLocalExport("y", "y", noLoc)
	e.addUnit("/left.mjs", left)
	right := moduleBuilder("/right.mjs", "y")
	right.AddStarExport("/shared.mjs", noLoc)
	right.AddLocalExport("y", "y", noLoc)
	e.addUnit("/right.mjs", right)

	top := moduleBuilder("/top.mjs")
	top.AddStarExport("/left.mjs", noLoc)
	top.AddStarExport("/right.mjs", noLoc)
	ut := e.addUnit("/top.mjs", top)
	mustInstantiate(t, e, ut)

	if ut.ResolveExport("x") == nil {
		t.Error("same binding reached twice should resolve")
	}
	if ut.ResolveExport("y") != nil {
		t.Error("different bindings under one name should be unresolved")
	}
}

func TestResolveExport_UnsortedTableMisses(t *testing.T) {
	e := newFakeEngine()
	b := moduleBuilder("/a.mjs", "a", "b")
	u := e.addUnit("/a.mjs", b)
	d := u.Data()
	d.LocalExportEntries = []compiled.ExportEntry{
		{ExportName: b.String("b"), LocalName: b.String("b")},
		{ExportName: b.String("a"), LocalName: b.String("a")},
	}
	mustInstantiate(t, e, u)

	if u.ResolveExport("a") != nil {
		t.Error("lookup in an unsorted table unexpectedly found a")
	}

	compiled.SortExportTable(d, d.LocalExportEntries)
	if u.ResolveExport("a") == nil {
		t.Error("lookup in the sorted table should find a")
	}
}

func TestExportedNames(t *testing.T) {
	e := newFakeEngine()
	a := moduleBuilder("/a.mjs", "d", "x", "shared")
	a.AddLocalExport("default", "d", noLoc)
	a.AddLocalExport("x", "x", noLoc)
	a.AddLocalExport("shared", "shared", noLoc)
	e.addUnit("/a.mjs", a)

	b := moduleBuilder("/b.mjs", "d", "shared")
	b.AddLocalExport("default", "d", noLoc)
	b.AddLocalExport("shared", "shared", noLoc)
	b.AddIndirectExport("renamed", "/a.mjs", "x", noLoc)
	b.AddStarExport("/a.mjs", noLoc)
	b.AddStarExport("/b.mjs", noLoc)
	ub := e.addUnit("/b.mjs", b)

	got := ub.ExportedNames()
	want := []string{"default", "renamed", "shared", "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExportedNames = %v, want %v", got, want)
	}
}

func TestInstantiate_UnresolvedImport(t *testing.T) {
	e := newFakeEngine()
	e.addUnit("/a.mjs", moduleBuilder("/a.mjs", "x"))
	b := moduleBuilder("/b.mjs")
	b.AddImport("/a.mjs", "nope", "nope", compiled.Location{Line: 3, Column: 9})
	ub := e.addUnit("/b.mjs", b)

	if _, ok := ub.Instantiate(); ok {
		t.Fatal("Instantiate should fail")
	}
	var refErr *errors.ReferenceError
	if !errors.As(e.exception, &refErr) {
		t.Fatalf("exception = %v, want ReferenceError", e.exception)
	}
	if refErr.Msg != "Unable to resolve import reference nope" {
		t.Errorf("message = %q", refErr.Msg)
	}
	if refErr.File != "/b.mjs" || refErr.Line != 3 || refErr.Column != 9 {
		t.Errorf("position = %s", refErr.Position)
	}
}

func TestInstantiate_UnresolvedReexport(t *testing.T) {
	e := newFakeEngine()
	e.addUnit("/a.mjs", moduleBuilder("/a.mjs"))
	b := moduleBuilder("/b.mjs")
	b.AddIndirectExport("y", "/a.mjs", "x", noLoc)
	ub := e.addUnit("/b.mjs", b)

	if _, ok := ub.Instantiate(); ok {
		t.Fatal("Instantiate should fail")
	}
	if e.exception == nil || !strings.Contains(e.exception.Error(), "Unable to resolve re-export reference x") {
		t.Errorf("exception = %v", e.exception)
	}
}

func TestInstantiate_MissingModule(t *testing.T) {
	e := newFakeEngine()
	b := moduleBuilder("/b.mjs")
	b.AddImport("/nowhere.mjs", "x", "x", noLoc)
	ub := e.addUnit("/b.mjs", b)

	if _, ok := ub.Instantiate(); ok {
		t.Fatal("Instantiate should fail")
	}
	if !strings.Contains(e.exception.Error(), "/nowhere.mjs") {
		t.Errorf("exception = %v", e.exception)
	}
}

func TestInstantiate_MissingModuleWithoutException(t *testing.T) {
	e := newFakeEngine()
	e.silentMissing = true
	b := moduleBuilder("/b.mjs")
	b.AddImport("/gone.mjs", "x", "x", noLoc)
	ub := e.addUnit("/b.mjs", b)

	if _, ok := ub.Instantiate(); ok {
		t.Fatal("Instantiate should fail")
	}
	if e.exception == nil || !strings.Contains(e.exception.Error(), "Unable to load module /gone.mjs") {
		t.Errorf("exception = %v", e.exception)
	}
}

func TestInstantiate_NativeImports(t *testing.T) {
	e := newFakeEngine()
	obj := e.heap.NewObject()
	obj.Set("answer", vm.NumberValue(42))
	native := e.RegisterNativeModule("host:math", vm.ObjectValue(obj)).(NativeModule)

	b := moduleBuilder("/b.mjs")
	b.AddImport("host:math", "answer", "answer", noLoc)
	b.AddImport("host:math", "default", "math", noLoc)
	b.AddImport("host:math", "missing", "missing", noLoc)
	ub := e.addUnit("/b.mjs", b)
	mustInstantiate(t, e, ub)

	imports := ub.Imports()
	if imports[0].AsNumber() != 42 {
		t.Errorf("answer = %v", imports[0].Inspect())
	}
	frag, ok := e.ModuleForURL("host:math#answer").(NativeModule)
	if !ok || frag.Value != imports[0] {
		t.Error("named native import should bind the fragment module's cell")
	}
	if imports[1] != native.Value {
		t.Error("default import should bind the native module cell")
	}
	if !imports[2].IsUndefined() {
		t.Errorf("missing property = %v, want undefined", imports[2].Inspect())
	}
	if _, ok := e.ModuleForURL("host:math#missing").(NativeModule); !ok {
		t.Error("fragment should be registered even for undefined properties")
	}
}

func TestInstantiate_NativeImportFromNull(t *testing.T) {
	e := newFakeEngine()
	e.RegisterNativeModule("host:null", vm.Null)
	b := moduleBuilder("/b.mjs")
	b.AddImport("host:null", "x", "x", noLoc)
	ub := e.addUnit("/b.mjs", b)

	if _, ok := ub.Instantiate(); ok {
		t.Fatal("Instantiate should fail")
	}
	var typeErr *errors.TypeError
	if !errors.As(e.exception, &typeErr) {
		t.Errorf("exception = %v, want TypeError", e.exception)
	}
}

func TestNativeReexports(t *testing.T) {
	e := newFakeEngine()
	obj := e.heap.NewObject()
	obj.Set("pi", vm.NumberValue(3.14))
	obj.Set("default", vm.NumberValue(1))
	e.RegisterNativeModule("host:m", vm.ObjectValue(obj))

	b := moduleBuilder("/b.mjs")
	b.AddIndirectExport("PI", "host:m", "pi", noLoc)
	b.AddStarExport("host:m", noLoc)
	ub := e.addUnit("/b.mjs", b)
	mustInstantiate(t, e, ub)

	if v := ub.ResolveExport("PI"); v == nil || v.AsNumber() != 3.14 {
		t.Error("indirect export of a native property did not resolve")
	}
	if v := ub.ResolveExport("pi"); v == nil || v.AsNumber() != 3.14 {
		t.Error("star export of a native property did not resolve")
	}
	if ub.ResolveExport("default") != nil {
		t.Error("default should not come through a native star export")
	}
	if ub.ResolveExport("absent") != nil {
		t.Error("absent native property should not resolve")
	}
	if got, want := ub.ExportedNames(), []string{"PI", "pi"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExportedNames = %v, want %v", got, want)
	}
}

func TestEvaluate_DependenciesFirst(t *testing.T) {
	e := newFakeEngine()
	var order []string
	entry := func(name string) []AOTFunction {
		return []AOTFunction{{Index: 0, Code: func(fr *vm.Frame) vm.Value {
			order = append(order, name)
			return vm.Undefined
		}}}
	}

	c := moduleBuilder("/c.mjs")
	e.addUnit("/c.mjs", c, WithAOTFunctions(entry("c")))
	a := moduleBuilder("/a.mjs")
	a.AddModuleRequest("/c.mjs")
	e.addUnit("/a.mjs", a, WithAOTFunctions(entry("a")))
	b := moduleBuilder("/b.mjs")
	b.AddModuleRequest("/a.mjs")
	b.AddModuleRequest("/c.mjs")
	ub := e.addUnit("/b.mjs", b, WithAOTFunctions(entry("b")))

	m := mustInstantiate(t, e, ub)
	ub.Evaluate()
	ub.Evaluate()

	if want := []string{"c", "a", "b"}; !reflect.DeepEqual(order, want) {
		t.Errorf("evaluation order = %v, want %v", order, want)
	}
	if !m.IsEvaluated() {
		t.Error("record not marked evaluated")
	}
}

func TestEvaluate_WritesModuleScope(t *testing.T) {
	e := newFakeEngine()
	a := moduleBuilder("/a.mjs", "x")
	a.AddLocalExport("x", "x", noLoc)
	ua := e.addUnit("/a.mjs", a, WithAOTFunctions([]AOTFunction{{Index: 0, Code: func(fr *vm.Frame) vm.Value {
		if slot, ok := fr.Scope.Lookup("x"); ok {
			*slot = vm.NumberValue(5)
		}
		return vm.Undefined
	}}}))

	b := moduleBuilder("/b.mjs")
	b.AddImport("/a.mjs", "x", "x", noLoc)
	ub := e.addUnit("/b.mjs", b)
	mustInstantiate(t, e, ub)
	ub.Evaluate()

	if !ua.Module().IsEvaluated() {
		t.Error("dependency was not evaluated")
	}
	if got := ub.Imports()[0].AsNumber(); got != 5 {
		t.Errorf("imported x = %v after evaluation, want 5", got)
	}
}

func TestEvaluate_NotInstantiated(t *testing.T) {
	e := newFakeEngine()
	u := e.addUnit("/a.mjs", moduleBuilder("/a.mjs"))
	u.Evaluate()

	var typeErr *errors.TypeError
	if !errors.As(e.exception, &typeErr) {
		t.Errorf("exception = %v, want TypeError", e.exception)
	}
}

func TestResolveSet(t *testing.T) {
	e := newFakeEngine()
	u := e.addUnit("/a.mjs", moduleBuilder("/a.mjs"))
	set := NewResolveSet()
	if !set.Add(u, "x") || set.Add(u, "x") {
		t.Error("Add should report first insertion only")
	}
	if !set.Add(u, "y") || set.Len() != 2 || !set.Contains(u, "y") {
		t.Error("distinct names are distinct entries")
	}
}

func TestNativeImport_FragmentUsesRegisteredURL(t *testing.T) {
	e := newFakeEngine()
	cell := new(vm.Value)
	obj := e.heap.NewObject()
	obj.Set("x", vm.NumberValue(7))
	*cell = vm.ObjectValue(obj)
	e.modules["./lib"] = NativeModule{Value: cell, URL: "/a/lib"}

	b := moduleBuilder("/a/m.mjs")
	b.AddImport("./lib", "x", "x", noLoc)
	u := e.addUnit("/a/m.mjs", b)
	mustInstantiate(t, e, u)

	frag, ok := e.ModuleForURL("/a/lib#x").(NativeModule)
	if !ok || frag.Value != u.Imports()[0] {
		t.Error("fragment should be registered under the module URL")
	}
	if e.ModuleForURL("./lib#x") != nil {
		t.Error("fragment registered under the relative request")
	}
	if got := u.Imports()[0].AsNumber(); got != 7 {
		t.Errorf("x = %v, want 7", got)
	}
}

func TestInstantiate_LogsDependencyWithoutRecord(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	e := newFakeEngine()
	e.addUnit("/lib.mjs", compiled.NewBuilder("/lib.mjs"))
	b := moduleBuilder("/main.mjs")
	b.AddModuleRequest("/lib.mjs")
	u := e.addUnit("/main.mjs", b)
	mustInstantiate(t, e, u)

	entries := logs.FilterMessage("dependency has no module record").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["dependency"]; got != "/lib.mjs" {
		t.Errorf("dependency field = %v", got)
	}
}
