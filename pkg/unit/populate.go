package unit

import (
	"go.uber.org/zap"

	"linkvm/pkg/compiled"
	"linkvm/pkg/errors"
	"linkvm/pkg/vm"
)

// runtimeTables are the live mirrors of a unit's static tables, index for
// index. They are built in one piece by buildRuntimeTables and released in one
// piece by Clear; a unit never holds a partially built set.
type runtimeTables struct {
	strings   []*vm.String
	regexps   []*vm.RegExpObject
	lookups   []vm.Lookup
	classes   []*vm.InternalClass
	functions []*vm.Function
	blocks    []*vm.InternalClass
}

// Populate materializes the runtime tables. It is a no-op once populated and
// fails with errors.ErrUnitCleared after Clear. Collection is suppressed for
// the whole allocation burst.
func (u *ExecutableUnit) Populate() error {
	if u.cleared {
		return errors.ErrUnitCleared
	}
	if u.rt != nil {
		return nil
	}

	heap := u.heap()
	guard := heap.Suppress()
	defer guard.Release()

	u.rt = buildRuntimeTables(heap, u.data, u.aot, u)

	u.logger().Debug("unit populated",
		zap.Int("strings", len(u.rt.strings)),
		zap.Int("functions", len(u.rt.functions)),
		zap.Int("aot", u.NativeFunctionCount()))

	if w := u.engine.Diagnostics(); w != nil {
		u.Dump(w)
	}
	return nil
}

func buildRuntimeTables(heap *vm.Heap, data *compiled.Unit, aot []AOTFunction, owner *ExecutableUnit) *runtimeTables {
	ids := heap.Identifiers()
	rt := &runtimeTables{}

	rt.strings = make([]*vm.String, len(data.Strings))
	for i, s := range data.Strings {
		rt.strings[i] = heap.NewString(s)
	}
	key := func(i uint32) vm.PropertyKey {
		if int(i) < len(rt.strings) {
			return ids.AsPropertyKey(rt.strings[i])
		}
		return ids.Intern("")
	}
	keys := func(idx []uint32) []vm.PropertyKey {
		out := make([]vm.PropertyKey, len(idx))
		for i, n := range idx {
			out[i] = key(n)
		}
		return out
	}
	str := func(i uint32) *vm.String {
		if int(i) < len(rt.strings) {
			return rt.strings[i]
		}
		return nil
	}

	rt.regexps = make([]*vm.RegExpObject, len(data.RegExps))
	for i, re := range data.RegExps {
		rt.regexps[i] = heap.NewRegExp(data.StringAt(re.StringIndex), re.Flags.String())
	}

	rt.lookups = make([]vm.Lookup, len(data.Lookups))
	for i, l := range data.Lookups {
		rt.lookups[i] = vm.NewLookup(vm.LookupKind(l.Type), l.NameIndex, key(l.NameIndex), l.ForCall)
	}

	rt.classes = make([]*vm.InternalClass, len(data.JSClasses))
	for i, cls := range data.JSClasses {
		ic := heap.EmptyClass(vm.ClassObject)
		for _, m := range cls.Members {
			attrs := vm.AttrData
			if m.IsAccessor {
				attrs = vm.AttrAccessor
			}
			ic = ic.AddMember(key(m.NameIndex), attrs)
		}
		rt.classes[i] = ic
	}

	// aot is sorted by index; one cursor walks it alongside the function table.
	rt.functions = make([]*vm.Function, len(data.Functions))
	cursor := 0
	for i, fn := range data.Functions {
		for cursor < len(aot) && aot[cursor].Index < i {
			cursor++
		}
		var code vm.Code
		if cursor < len(aot) && aot[cursor].Index == i {
			code = aot[cursor].Code
			cursor++
		}
		rt.functions[i] = heap.NewFunction(vm.FunctionSpec{
			Name:    str(fn.NameIndex),
			Index:   i,
			Formals: keys(fn.Formals),
			Locals:  keys(fn.Locals),
			Code:    code,
			Owner:   owner,
		})
	}

	rt.blocks = make([]*vm.InternalClass, len(data.Blocks))
	for i, blk := range data.Blocks {
		ic := heap.EmptyClass(vm.ClassCallContext)
		for _, local := range blk.Locals {
			ic = ic.AddMember(key(local), vm.AttrNotConfigurable)
		}
		rt.blocks[i] = ic
	}
	return rt
}

// NativeFunctionCount is the number of functions bound to native code.
func (u *ExecutableUnit) NativeFunctionCount() int {
	if u.rt == nil {
		return 0
	}
	n := 0
	for _, f := range u.rt.functions {
		if f.IsNative() {
			n++
		}
	}
	return n
}
