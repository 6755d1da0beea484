package unit

import (
	"linkvm/pkg/compiled"
	"linkvm/pkg/vm"
)

// BindingValue converts binding i to a runtime value. Script bindings have no
// constant value and yield undefined; translations are rendered to strings.
func (u *ExecutableUnit) BindingValue(i int) vm.Value {
	if i < 0 || i >= len(u.data.Bindings) {
		return vm.Undefined
	}
	b := u.data.Bindings[i]
	switch b.Type {
	case compiled.BindingBoolean:
		return vm.BooleanValue(b.Bool)
	case compiled.BindingNumber:
		return vm.NumberValue(b.Number)
	case compiled.BindingNull:
		return vm.Null
	case compiled.BindingString:
		if s := u.RuntimeString(b.StringIndex); s != nil {
			return vm.StringValue(s)
		}
		return vm.StringValue(u.heap().NewString(u.data.StringAt(b.StringIndex)))
	case compiled.BindingTranslation, compiled.BindingTranslationByID:
		return vm.StringValue(u.heap().NewString(u.BindingValueAsString(i)))
	}
	return vm.Undefined
}

// InitializeLocals writes the unit's constant initializers into scope.
// Initializers naming a local the scope does not declare are skipped.
func (u *ExecutableUnit) InitializeLocals(scope *vm.CallContext) int {
	n := 0
	for _, init := range u.data.Initializers {
		slot, ok := scope.Lookup(u.data.StringAt(init.LocalName))
		if !ok {
			continue
		}
		*slot = u.BindingValue(int(init.Binding))
		n++
	}
	return n
}
