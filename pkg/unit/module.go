package unit

import (
	"go.uber.org/zap"

	"linkvm/pkg/vm"
)

// ModuleRecord is the live side of an instantiated unit: the module scope and
// the namespace object exported as "*".
//
// The scope's class is the root function's class followed by one member per
// import entry. Slots below LocalsCount are the module's own locals; members
// past it name imports and are backed by the unit's import slots.
type ModuleRecord struct {
	unit        *ExecutableUnit
	scope       *vm.CallContext
	localsCount int
	self        vm.Value
	evaluated   bool
}

func newModuleRecord(u *ExecutableUnit) *ModuleRecord {
	heap := u.heap()
	root := u.RootFunction()

	class := root.Class()
	localsCount := class.Size()
	for _, entry := range u.data.ImportEntries {
		class = class.AddMember(u.propertyKey(entry.LocalName), vm.AttrNotConfigurable)
	}

	m := &ModuleRecord{
		unit:        u,
		scope:       heap.NewCallContext(class),
		localsCount: localsCount,
	}
	m.self = vm.ObjectValue(heap.NewNamespaceObject(m))
	return m
}

func (m *ModuleRecord) Unit() *ExecutableUnit  { return m.unit }
func (m *ModuleRecord) Scope() *vm.CallContext { return m.scope }
func (m *ModuleRecord) LocalsCount() int       { return m.localsCount }
func (m *ModuleRecord) IsEvaluated() bool      { return m.evaluated }

// Namespace returns the module namespace object.
func (m *ModuleRecord) Namespace() *vm.Object { return m.self.AsObject() }

// Local returns the slot of a module-level local by name.
func (m *ModuleRecord) Local(name string) *vm.Value {
	member, ok := m.scope.Class().Find(name)
	if !ok || member.Index >= m.localsCount {
		return nil
	}
	return m.scope.Slot(member.Index)
}

// ResolveExportSlot implements vm.NamespaceResolver.
func (m *ModuleRecord) ResolveExportSlot(name string) *vm.Value {
	if name == "*" {
		return nil
	}
	return m.unit.ResolveExport(name)
}

// ExportedNames implements vm.NamespaceResolver.
func (m *ModuleRecord) ExportedNames() []string {
	return m.unit.ExportedNames()
}

// Evaluate runs the module once: dependencies first, then the root function
// in the module scope. Re-entrant calls during a cycle return immediately.
func (m *ModuleRecord) Evaluate() {
	if m.evaluated {
		return
	}
	m.evaluated = true

	u := m.unit
	u.EvaluateModuleRequests()
	if u.engine.HasException() {
		return
	}
	root := u.RootFunction()
	if root == nil {
		return
	}
	u.logger().Debug("evaluating module", zap.String("function", root.Name()))
	u.engine.Call(root, m.scope, vm.Undefined)
}

func (m *ModuleRecord) markObjects(ms *vm.MarkStack) {
	ms.Push(m.scope)
	ms.PushValue(m.self)
}
