package unit

import (
	"go.uber.org/zap"

	"linkvm/pkg/compiled"
	"linkvm/pkg/vm"
)

// Instantiate links the unit and, transitively, its static module requests.
// It returns the unit's module record, or false when the unit has no root
// function or linking failed; failures are reported through the engine's
// exception flag. An ES module is instantiated at most once.
func (u *ExecutableUnit) Instantiate() (*ModuleRecord, bool) {
	if u.data.IsESModule() && u.module != nil {
		return u.module, true
	}
	if !u.data.HasRootFunction() {
		return nil, false
	}
	if err := u.Populate(); err != nil {
		u.engine.ThrowTypeError("cannot instantiate " + u.url + ": " + err.Error())
		return nil, false
	}

	// The record is unreachable from any root until it is bound below.
	guard := u.heap().Suppress()
	defer guard.Release()

	record := newModuleRecord(u)
	// Bind before recursing so cyclic graphs see this record.
	if u.data.IsESModule() {
		u.module = record
	}
	u.logger().Debug("instantiating unit", zap.Int("requests", len(u.data.ModuleRequests)))

	for _, request := range u.data.ModuleRequestURLs() {
		dep := u.engine.LoadModule(request, u)
		if u.engine.HasException() {
			return nil, false
		}
		if cm, ok := dep.(CompiledModule); ok {
			_, linked := cm.Unit.Instantiate()
			if u.engine.HasException() {
				return nil, false
			}
			if !linked {
				u.logger().Debug("dependency has no module record",
					zap.String("request", request),
					zap.String("dependency", cm.Unit.URL()))
			}
		}
	}

	u.imports = make([]*vm.Value, len(u.data.ImportEntries))
	for i, entry := range u.data.ImportEntries {
		url := u.data.StringAt(entry.ModuleRequest)
		importName := u.data.StringAt(entry.ImportName)
		dep := u.loadDependency(url, entry.Location)
		if dep == nil {
			return nil, false
		}

		var slot *vm.Value
		switch dep := dep.(type) {
		case CompiledModule:
			slot = dep.Unit.ResolveExport(importName)
		case NativeModule:
			slot = u.resolveNativeImport(url, importName, dep)
			if u.engine.HasException() {
				return nil, false
			}
		}
		if slot == nil {
			u.throwReferenceError("Unable to resolve import reference "+importName, entry.Location)
			return nil, false
		}
		u.imports[i] = slot
	}

	for _, entry := range u.data.IndirectExportEntries {
		url := u.data.StringAt(entry.ModuleRequest)
		importName := u.data.StringAt(entry.ImportName)
		dep := u.loadDependency(url, entry.Location)
		if dep == nil {
			return nil, false
		}

		var slot *vm.Value
		switch dep := dep.(type) {
		case CompiledModule:
			slot = dep.Unit.ResolveExport(importName)
		case NativeModule:
			slot = u.resolveNativeExport(url, importName, dep)
		}
		if slot == nil {
			u.throwReferenceError("Unable to resolve re-export reference "+importName, entry.Location)
			return nil, false
		}
	}

	return record, true
}

// loadDependency loads url and reports a missing module at loc when the engine
// returned nothing without raising an exception itself.
func (u *ExecutableUnit) loadDependency(url string, loc compiled.Location) Dependency {
	dep := u.engine.LoadModule(url, u)
	if u.engine.HasException() {
		return nil
	}
	if dep == nil {
		u.throwReferenceError("Unable to load module "+url, loc)
		return nil
	}
	return dep
}

// resolveNativeImport binds an import from a host value. "default" and "*"
// bind the value itself; any other name binds a fragment module url#name
// holding the named property, registered on first use.
func (u *ExecutableUnit) resolveNativeImport(url, name string, dep NativeModule) *vm.Value {
	if name == "default" || name == "*" {
		return dep.Value
	}
	fragment := dep.fragmentURL(url, name)
	if existing, ok := u.engine.ModuleForURL(fragment).(NativeModule); ok {
		return existing.Value
	}
	v := *dep.Value
	if v.IsNullOrUndefined() {
		u.engine.ThrowTypeError("Cannot read property '" + name + "' of " + v.ToString() + " exported by " + url)
		return nil
	}
	obj := v.AsObject()
	if obj == nil {
		u.engine.ThrowTypeError("Module " + url + " does not export an object")
		return nil
	}
	prop, _ := obj.Get(name)
	return u.registerFragment(fragment, prop)
}

// resolveNativeExport resolves a re-exported name of a host value: "*" is the
// value itself, "default" is never re-exported, anything else resolves
// through a fragment module.
func (u *ExecutableUnit) resolveNativeExport(url, name string, dep NativeModule) *vm.Value {
	switch name {
	case "*":
		return dep.Value
	case "default":
		return nil
	}
	fragment := dep.fragmentURL(url, name)
	if existing, ok := u.engine.ModuleForURL(fragment).(NativeModule); ok {
		return existing.Value
	}
	obj := dep.Value.AsObject()
	if obj == nil {
		return nil
	}
	prop, _ := obj.Get(name)
	return u.registerFragment(fragment, prop)
}

// resolveNativeStar resolves name through `export * from native`. Only
// properties the value actually has take part.
func (u *ExecutableUnit) resolveNativeStar(url, name string, dep NativeModule) *vm.Value {
	if name == "*" || name == "default" {
		return nil
	}
	fragment := dep.fragmentURL(url, name)
	if existing, ok := u.engine.ModuleForURL(fragment).(NativeModule); ok {
		return existing.Value
	}
	obj := dep.Value.AsObject()
	if obj == nil {
		return nil
	}
	prop, ok := obj.Get(name)
	if !ok {
		return nil
	}
	return u.registerFragment(fragment, prop)
}

// fragmentURL names the fragment module holding member name. Relative
// requests from different referrers reach different modules, so the key
// is the registered URL; request is only a fallback for hosts that leave
// URL empty.
func (dep NativeModule) fragmentURL(request, name string) string {
	base := dep.URL
	if base == "" {
		base = request
	}
	return base + "#" + name
}

func (u *ExecutableUnit) registerFragment(url string, v vm.Value) *vm.Value {
	if nm, ok := u.engine.RegisterNativeModule(url, v).(NativeModule); ok {
		return nm.Value
	}
	return nil
}
