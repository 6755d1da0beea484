package unit

import "linkvm/pkg/vm"

// TemplateObjectAt returns the template object for tagged template i: a
// frozen array of cooked strings whose read-only "raw" property is a frozen
// array of raw strings. The object is created on first use and cached, so
// every evaluation of the same template sees the same identity.
func (u *ExecutableUnit) TemplateObjectAt(i int) *vm.Object {
	if i < 0 || i >= len(u.data.TemplateObjects) {
		return nil
	}
	if err := u.Populate(); err != nil {
		return nil
	}
	if u.templateObjects == nil {
		u.templateObjects = make([]*vm.Object, len(u.data.TemplateObjects))
	}
	if t := u.templateObjects[i]; t != nil {
		return t
	}

	heap := u.heap()
	guard := heap.Suppress()
	defer guard.Release()

	tmpl := u.data.TemplateObjects[i]
	cooked := make([]vm.Value, len(tmpl.Strings))
	for j, s := range tmpl.Strings {
		cooked[j] = vm.StringValue(u.RuntimeString(s))
	}
	raw := make([]vm.Value, len(tmpl.RawStrings))
	for j, s := range tmpl.RawStrings {
		raw[j] = vm.StringValue(u.RuntimeString(s))
	}

	rawArray := heap.NewArray(raw)
	rawArray.Freeze()
	obj := heap.NewArray(cooked)
	obj.DefineReadonlyProperty("raw", vm.ObjectValue(rawArray))
	obj.Freeze()

	u.templateObjects[i] = obj
	return obj
}
