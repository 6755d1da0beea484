package unit

import (
	"bytes"
	"strings"
	"testing"

	"linkvm/pkg/compiled"
	"linkvm/pkg/errors"
	"linkvm/pkg/vm"
)

func TestPopulate_Idempotent(t *testing.T) {
	e := newFakeEngine()
	b := moduleBuilder("/src/a.mjs", "x")
	b.AddRegExp("a+b", compiled.RegExpGlobal)
	b.AddLookup(compiled.LookupGetter, "length", false)
	b.AddJSClass([]string{"p", "q"}, nil)
	b.AddBlock([]string{"i"})
	u := e.addUnit("/src/a.mjs", b)

	if u.IsPopulated() {
		t.Fatal("unit populated before Populate")
	}
	if err := u.Populate(); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	s := u.RuntimeString(1)
	fn := u.RootFunction()
	re := u.RuntimeRegExp(0)

	if err := u.Populate(); err != nil {
		t.Fatalf("second Populate: %v", err)
	}
	if u.RuntimeString(1) != s || u.RootFunction() != fn || u.RuntimeRegExp(0) != re {
		t.Error("second Populate replaced runtime objects")
	}
	if got := s.String(); got != "/src/a.mjs" {
		t.Errorf("RuntimeString(1) = %q, want file name", got)
	}
	if re.Source() != "a+b" || !re.Global() {
		t.Errorf("regexp = /%s/%s", re.Source(), re.Flags())
	}
	if l := u.RuntimeLookup(0); l == nil || l.Name.Name() != "length" {
		t.Errorf("lookup 0 = %v", l)
	}
	if c := u.RuntimeClass(0); c == nil || c.Size() != 2 {
		t.Errorf("class 0 size = %v", c)
	}
	if blk := u.RuntimeBlock(0); blk == nil || blk.Kind() != vm.ClassCallContext || blk.Size() != 1 {
		t.Errorf("block 0 = %v", blk)
	}
}

func TestPopulate_TablesMatchStaticSizes(t *testing.T) {
	e := newFakeEngine()
	b := moduleBuilder("/src/sizes.mjs")
	b.AddFunction("f", []string{"a", "b"}, []string{"c"}, compiled.Location{})
	b.AddFunction("g", nil, nil, compiled.Location{})
	u := e.addUnit("/src/sizes.mjs", b)
	if err := u.Populate(); err != nil {
		t.Fatal(err)
	}

	if got, want := len(u.rt.strings), len(u.data.Strings); got != want {
		t.Errorf("strings = %d, want %d", got, want)
	}
	if got, want := len(u.rt.functions), len(u.data.Functions); got != want {
		t.Errorf("functions = %d, want %d", got, want)
	}
	f := u.RuntimeFunction(1)
	if f.Name() != "f" || f.Class().Size() != 3 {
		t.Errorf("function f: name %q, class size %d", f.Name(), f.Class().Size())
	}
	if f.Owner() != u {
		t.Error("function owner is not the unit")
	}
	if u.RuntimeFunction(3) != nil || u.RuntimeString(1000) != nil {
		t.Error("out of range accessors should return nil")
	}
}

func TestPopulate_AOTFunctions(t *testing.T) {
	e := newFakeEngine()
	b := compiled.NewBuilder("/src/aot.mjs")
	for i := 0; i < 6; i++ {
		b.AddFunction("f"+string(rune('0'+i)), nil, nil, compiled.Location{})
	}
	code := func(*vm.Frame) vm.Value { return vm.Undefined }
	u := New(e, b.Build(), WithAOTFunctions([]AOTFunction{
		{Index: 5, Code: code},
		{Index: 0, Code: code},
		{Index: 2, Code: code},
	}))
	if err := u.Populate(); err != nil {
		t.Fatal(err)
	}

	want := []bool{true, false, true, false, false, true}
	for i, native := range want {
		if got := u.RuntimeFunction(i).IsNative(); got != native {
			t.Errorf("function %d native = %v, want %v", i, got, native)
		}
	}
	if n := u.NativeFunctionCount(); n != 3 {
		t.Errorf("NativeFunctionCount = %d, want 3", n)
	}
}

func TestPopulate_ReleasesGCGuard(t *testing.T) {
	e := newFakeEngine()
	u := e.addUnit("/src/a.mjs", moduleBuilder("/src/a.mjs", "x"))
	if err := u.Populate(); err != nil {
		t.Fatal(err)
	}
	if e.heap.Suppressed() {
		t.Error("heap still suppressed after Populate")
	}
	if _, ok := u.Instantiate(); !ok {
		t.Fatalf("Instantiate failed: %v", e.exception)
	}
	if e.heap.Suppressed() {
		t.Error("heap still suppressed after Instantiate")
	}
}

func TestPopulate_WritesDiagnostics(t *testing.T) {
	e := newFakeEngine()
	var buf bytes.Buffer
	e.diag = &buf
	b := moduleBuilder("/src/a.mjs", "x")
	b.AddLocalExport("x", "x", compiled.Location{})
	u := e.addUnit("/src/a.mjs", b)
	if err := u.Populate(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"unit /src/a.mjs", "functions: 1", "export x as x", "%entry/0 locals=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestClear_Twice(t *testing.T) {
	e := newFakeEngine()
	b := moduleBuilder("/src/a.mjs", "x")
	b.AddLookup(compiled.LookupGetter, "x", false)
	u := e.addUnit("/src/a.mjs", b)
	if _, ok := u.Instantiate(); !ok {
		t.Fatal(e.exception)
	}
	root := u.RootFunction()

	u.Clear()
	u.Clear()

	if !u.IsCleared() || u.IsPopulated() {
		t.Error("unit should be cleared and unpopulated")
	}
	if !root.IsDestroyed() {
		t.Error("functions should be destroyed by Clear")
	}
	if u.Module() != nil || u.Imports() != nil {
		t.Error("Clear kept the module record")
	}
	ms := vm.NewMarkStack()
	u.MarkObjects(ms)
	ms.Drain()
	if ms.Marked() != 0 {
		t.Errorf("cleared unit marked %d objects", ms.Marked())
	}
}

func TestPopulate_AfterClear(t *testing.T) {
	e := newFakeEngine()
	u := e.addUnit("/src/a.mjs", moduleBuilder("/src/a.mjs"))
	u.Clear()

	if err := u.Populate(); !errors.Is(err, errors.ErrUnitCleared) {
		t.Errorf("Populate after Clear = %v, want ErrUnitCleared", err)
	}
	if _, ok := u.Instantiate(); ok {
		t.Error("Instantiate after Clear succeeded")
	}
	var typeErr *errors.TypeError
	if !errors.As(e.exception, &typeErr) {
		t.Errorf("exception = %v, want TypeError", e.exception)
	}
}

func TestMarkObjects_Unpopulated(t *testing.T) {
	e := newFakeEngine()
	u := e.addUnit("/src/a.mjs", moduleBuilder("/src/a.mjs", "x"))

	ms := vm.NewMarkStack()
	u.MarkObjects(ms)
	ms.Drain()
	if ms.Marked() != 0 {
		t.Errorf("unpopulated unit marked %d objects", ms.Marked())
	}
}

func TestMarkObjects_KeepsRuntimeTablesAlive(t *testing.T) {
	e := newFakeEngine()
	b := moduleBuilder("/src/a.mjs", "x")
	b.AddTemplateObject([]string{"a"}, []string{"a"})
	u := e.addUnit("/src/a.mjs", b)
	if _, ok := u.Instantiate(); !ok {
		t.Fatal(e.exception)
	}
	tmpl := u.TemplateObjectAt(0)
	remove := e.heap.AddRoot(vm.RootFunc(u.MarkObjects))
	defer remove()

	e.heap.Collect()

	if vm.IsFreed(u.RuntimeString(1)) || vm.IsFreed(u.RootFunction()) || vm.IsFreed(tmpl) {
		t.Error("collection freed objects owned by a rooted unit")
	}
	if vm.IsFreed(u.Module().Scope()) || vm.IsFreed(u.Module().Namespace()) {
		t.Error("collection freed the module record")
	}
}

func TestTemplateObjectAt(t *testing.T) {
	e := newFakeEngine()
	b := moduleBuilder("/src/t.mjs")
	b.AddTemplateObject([]string{"a\n", "b"}, []string{`a\n`, "b"})
	u := e.addUnit("/src/t.mjs", b)

	obj := u.TemplateObjectAt(0)
	if obj == nil {
		t.Fatal("TemplateObjectAt returned nil")
	}
	if obj != u.TemplateObjectAt(0) {
		t.Error("template object identity changed between calls")
	}
	if !obj.IsArray() || obj.Length() != 2 || obj.ElementAt(0).ToString() != "a\n" {
		t.Errorf("cooked strings = %s", vm.ObjectValue(obj).Inspect())
	}
	if !obj.IsFrozen() {
		t.Error("template object is not frozen")
	}
	raw, ok := obj.Get("raw")
	if !ok || raw.AsObject() == nil {
		t.Fatal("template object has no raw array")
	}
	if got := raw.AsObject().ElementAt(0).ToString(); got != `a\n` {
		t.Errorf("raw[0] = %q", got)
	}
	if !raw.AsObject().IsFrozen() {
		t.Error("raw array is not frozen")
	}
	if obj.Set("raw", vm.Null) {
		t.Error("raw property should be read-only")
	}
	if u.TemplateObjectAt(1) != nil {
		t.Error("out of range template index should return nil")
	}
}

func TestNamedObjectsPerComponent(t *testing.T) {
	e := newFakeEngine()
	b := compiled.NewBuilder("/src/Main.qml")
	root := b.AddObject("", 0)
	header := b.AddObject("header", 1)
	footer := b.AddObject("footer", 2)
	b.AddNamedObjectToComponent(root, header)
	b.AddNamedObjectToComponent(root, footer)
	empty := b.AddObject("", 3)
	u := New(e, b.Build())

	got := u.NamedObjectsPerComponent(root)
	if len(got) != 2 || got["header"] != 1 || got["footer"] != 2 {
		t.Errorf("NamedObjectsPerComponent = %v", got)
	}
	got["extra"] = 9
	if again := u.NamedObjectsPerComponent(root); again["extra"] != 9 {
		t.Error("result was recomputed instead of memoized")
	}

	defer func() {
		if recover() == nil {
			t.Error("component without named objects should panic")
		}
	}()
	u.NamedObjectsPerComponent(empty)
}
