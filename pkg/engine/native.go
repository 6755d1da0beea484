package engine

import (
	"fmt"
	"reflect"
	"sort"

	"linkvm/pkg/unit"
	"linkvm/pkg/vm"
)

// ModuleBuilder provides the declarative API for building native modules.
// Every member becomes a property of the module object that imports bind to.
type ModuleBuilder struct {
	engine *Engine
	object *vm.Object
	err    error
}

// Const adds a constant converted from a Go value
func (m *ModuleBuilder) Const(name string, value any) *ModuleBuilder {
	v, err := m.engine.ToValue(value)
	if err != nil {
		m.fail(fmt.Errorf("const %s: %w", name, err))
		return m
	}
	m.object.DefineReadonlyProperty(name, v)
	return m
}

// Value adds a runtime value as a writable property
func (m *ModuleBuilder) Value(name string, v vm.Value) *ModuleBuilder {
	m.object.Set(name, v)
	return m
}

// JSON adds a constant decoded from a JSON document
func (m *ModuleBuilder) JSON(name string, data []byte) *ModuleBuilder {
	v, err := m.engine.heap.ParseJSON(data)
	if err != nil {
		m.fail(fmt.Errorf("json %s: %w", name, err))
		return m
	}
	m.object.DefineReadonlyProperty(name, v)
	return m
}

// Function adds a natively implemented function
func (m *ModuleBuilder) Function(name string, code vm.Code) *ModuleBuilder {
	fn := m.engine.heap.NewNativeFunction(name, code)
	m.object.DefineReadonlyProperty(name, vm.FunctionValue(fn))
	return m
}

// Namespace adds a nested object built by build
func (m *ModuleBuilder) Namespace(name string, build func(*ModuleBuilder)) *ModuleBuilder {
	nested := &ModuleBuilder{engine: m.engine, object: m.engine.heap.NewObject()}
	build(nested)
	if nested.err != nil {
		m.fail(fmt.Errorf("namespace %s: %w", name, nested.err))
	}
	m.object.DefineReadonlyProperty(name, vm.ObjectValue(nested.object))
	return m
}

func (m *ModuleBuilder) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

// DefineNativeModule builds a module object and registers it under url.
// The first member that cannot be converted aborts the registration.
func (e *Engine) DefineNativeModule(url string, build func(*ModuleBuilder)) (unit.Dependency, error) {
	// The object is unreachable until it is registered.
	guard := e.heap.Suppress()
	defer guard.Release()

	m := &ModuleBuilder{engine: e, object: e.heap.NewObject()}
	build(m)
	if m.err != nil {
		return nil, fmt.Errorf("native module %s: %w", url, m.err)
	}
	return e.RegisterNativeModule(url, vm.ObjectValue(m.object)), nil
}

// ToValue converts a Go value to a runtime value. Slices become arrays and
// string-keyed maps become objects; anything else must be a primitive.
// Collection is suppressed for the whole conversion; the result is unrooted
// once ToValue returns.
func (e *Engine) ToValue(value any) (vm.Value, error) {
	guard := e.heap.Suppress()
	defer guard.Release()
	return e.toValue(value)
}

func (e *Engine) toValue(value any) (vm.Value, error) {
	switch v := value.(type) {
	case nil:
		return vm.Null, nil
	case vm.Value:
		return v, nil
	case bool:
		return vm.BooleanValue(v), nil
	case string:
		return vm.StringValue(e.heap.NewString(v)), nil
	case vm.Code:
		return vm.FunctionValue(e.heap.NewNativeFunction("", v)), nil
	case func(fr *vm.Frame) vm.Value:
		return vm.FunctionValue(e.heap.NewNativeFunction("", v)), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vm.NumberValue(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return vm.NumberValue(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return vm.NumberValue(rv.Float()), nil
	case reflect.String:
		return vm.StringValue(e.heap.NewString(rv.String())), nil
	case reflect.Bool:
		return vm.BooleanValue(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		elements := make([]vm.Value, rv.Len())
		for i := range elements {
			el, err := e.toValue(rv.Index(i).Interface())
			if err != nil {
				return vm.Undefined, fmt.Errorf("[%d]: %w", i, err)
			}
			elements[i] = el
		}
		return vm.ObjectValue(e.heap.NewArray(elements)), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return vm.Undefined, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		obj := e.heap.NewObject()
		for _, k := range keys {
			el, err := e.toValue(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return vm.Undefined, fmt.Errorf("%s: %w", k, err)
			}
			obj.Set(k, el)
		}
		return vm.ObjectValue(obj), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return vm.Null, nil
		}
		return e.toValue(rv.Elem().Interface())
	}
	return vm.Undefined, fmt.Errorf("unsupported Go type %T", value)
}
