package unit

import "linkvm/pkg/vm"

// MarkObjects pushes every heap reference the unit owns. Tables that were
// never populated are skipped.
func (u *ExecutableUnit) MarkObjects(ms *vm.MarkStack) {
	if rt := u.rt; rt != nil {
		for _, s := range rt.strings {
			ms.Push(s)
		}
		for _, re := range rt.regexps {
			ms.Push(re)
		}
		for _, c := range rt.classes {
			ms.Push(c)
		}
		for _, f := range rt.functions {
			ms.Push(f)
		}
		for _, b := range rt.blocks {
			ms.Push(b)
		}
		for i := range rt.lookups {
			rt.lookups[i].MarkObjects(ms)
		}
	}
	for _, t := range u.templateObjects {
		ms.Push(t)
	}
	for _, slot := range u.imports {
		if slot != nil {
			ms.PushValue(*slot)
		}
	}
	if m := u.module; m != nil {
		m.markObjects(ms)
	}
}

// Clear releases the runtime state: import slots, lookup caches, function
// objects and every runtime table. Clearing twice is a no-op, and the unit
// cannot be populated again afterwards.
func (u *ExecutableUnit) Clear() {
	if u.cleared {
		return
	}
	u.cleared = true

	u.imports = nil
	if rt := u.rt; rt != nil {
		for i := range rt.lookups {
			rt.lookups[i].Release()
		}
		rt.lookups = nil
		for _, f := range rt.functions {
			if f != nil {
				f.Destroy()
			}
		}
		rt.functions = nil
		rt.strings = nil
		rt.regexps = nil
		rt.classes = nil
		rt.blocks = nil
		u.rt = nil
	}
	u.templateObjects = nil
	u.namedObjects = nil
	u.module = nil

	u.logger().Debug("unit cleared")
}

// Close is Clear; it lets an owner release a unit with a deferred call.
func (u *ExecutableUnit) Close() error {
	u.Clear()
	return nil
}
