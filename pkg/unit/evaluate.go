package unit

// Evaluate runs the instantiated module. Evaluating a unit that was never
// instantiated raises a TypeError.
func (u *ExecutableUnit) Evaluate() {
	if u.module == nil {
		u.engine.ThrowTypeError("module " + u.url + " is not instantiated")
		return
	}
	u.module.Evaluate()
}

// EvaluateModuleRequests evaluates every statically requested dependency in
// declaration order, stopping at the first exception. Host modules have
// nothing to evaluate.
func (u *ExecutableUnit) EvaluateModuleRequests() {
	for _, request := range u.data.ModuleRequestURLs() {
		dep := u.engine.LoadModule(request, u)
		if u.engine.HasException() {
			return
		}
		cm, ok := dep.(CompiledModule)
		if !ok {
			continue
		}
		cm.Unit.Evaluate()
		if u.engine.HasException() {
			return
		}
	}
}
