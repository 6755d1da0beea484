package vm

// Frame is the activation passed to native code.
type Frame struct {
	Function *Function
	Scope    *CallContext
	This     Value
	Args     []Value
}

// Arg returns argument i or undefined.
func (f *Frame) Arg(i int) Value {
	if i < 0 || i >= len(f.Args) {
		return Undefined
	}
	return f.Args[i]
}

// Code is a natively compiled function body.
type Code func(fr *Frame) Value

// Function is a runtime function object. Its class lays out the call context:
// formals first, then locals, all non-configurable. A function without code must be run by an
// interpreter.
type Function struct {
	hdr       cellHeader
	name      *String
	index     int
	class     *InternalClass
	code      Code
	owner     any
	destroyed bool
}

func (f *Function) header() *cellHeader {
	if f == nil {
		return nil
	}
	return &f.hdr
}

func (f *Function) markChildren(ms *MarkStack) {
	ms.Push(f.name)
	ms.Push(f.class)
}

// FunctionSpec describes a function to allocate.
type FunctionSpec struct {
	Name    *String
	Index   int
	Formals []PropertyKey
	Locals  []PropertyKey
	Code    Code
	Owner   any
}

// NewFunction allocates a function and its call-context class.
func (h *Heap) NewFunction(spec FunctionSpec) *Function {
	class := h.emptyClass[ClassCallContext]
	for _, k := range spec.Formals {
		class = class.AddMember(k, AttrNotConfigurable)
	}
	for _, k := range spec.Locals {
		class = class.AddMember(k, AttrNotConfigurable)
	}
	return Allocate(h, &Function{
		name:  spec.Name,
		index: spec.Index,
		class: class,
		code:  spec.Code,
		owner: spec.Owner,
	})
}

// NewNativeFunction allocates a standalone function backed by code.
func (h *Heap) NewNativeFunction(name string, code Code) *Function {
	return h.NewFunction(FunctionSpec{Name: h.NewString(name), Index: -1, Code: code})
}

func (f *Function) Name() string          { return f.name.String() }
func (f *Function) Index() int            { return f.index }
func (f *Function) Class() *InternalClass { return f.class }
func (f *Function) Code() Code            { return f.code }
func (f *Function) IsNative() bool        { return f.code != nil }
func (f *Function) Owner() any            { return f.owner }
func (f *Function) IsDestroyed() bool     { return f.destroyed }

// NewCallContext allocates a fresh scope laid out by f's class.
func (f *Function) NewCallContext(h *Heap) *CallContext {
	return h.NewCallContext(f.class)
}

// Destroy detaches f from its owner and code. A destroyed function cannot be
// called.
func (f *Function) Destroy() {
	f.destroyed = true
	f.code = nil
	f.owner = nil
}

// Call invokes native code. ok is false when f has no code or was destroyed.
func (f *Function) Call(scope *CallContext, this Value, args []Value) (v Value, ok bool) {
	if f.destroyed || f.code == nil {
		return Undefined, false
	}
	return f.code(&Frame{Function: f, Scope: scope, This: this, Args: args}), true
}
