package vm

import "sort"

// Accessor holds the getter and setter of an accessor member.
type Accessor struct {
	Getter *Function
	Setter *Function
}

// NamespaceResolver backs a module namespace object. Exports are resolved on
// every read so the namespace observes live bindings.
type NamespaceResolver interface {
	ResolveExportSlot(name string) *Value
	ExportedNames() []string
}

// Object is a property bag laid out by an InternalClass. Arrays keep their
// indexed elements separately. Namespace objects have no own members; reads
// go through their resolver.
type Object struct {
	hdr        cellHeader
	class      *InternalClass
	values     []Value
	accessors  map[int]*Accessor
	elements   []Value
	extensible bool
	namespace  NamespaceResolver
}

func (o *Object) header() *cellHeader {
	if o == nil {
		return nil
	}
	return &o.hdr
}

func (o *Object) markChildren(ms *MarkStack) {
	ms.Push(o.class)
	for _, v := range o.values {
		ms.PushValue(v)
	}
	for _, a := range o.accessors {
		ms.Push(a.Getter)
		ms.Push(a.Setter)
	}
	for _, v := range o.elements {
		ms.PushValue(v)
	}
}

// NewObject allocates an empty extensible object.
func (h *Heap) NewObject() *Object {
	return h.NewObjectWithClass(h.emptyClass[ClassObject])
}

// NewObjectWithClass allocates an object whose slots follow class. All
// slots start undefined.
func (h *Heap) NewObjectWithClass(class *InternalClass) *Object {
	o := &Object{class: class, values: make([]Value, class.Size()), extensible: !class.frozen}
	return Allocate(h, o)
}

// NewArray allocates an array holding a copy of values.
func (h *Heap) NewArray(values []Value) *Object {
	o := &Object{
		class:      h.emptyClass[ClassArray],
		elements:   append([]Value(nil), values...),
		extensible: true,
	}
	return Allocate(h, o)
}

// NewNamespaceObject allocates a read-only module namespace backed by r.
func (h *Heap) NewNamespaceObject(r NamespaceResolver) *Object {
	o := &Object{class: h.emptyClass[ClassNamespace], namespace: r}
	return Allocate(h, o)
}

func (o *Object) Class() *InternalClass { return o.class }
func (o *Object) IsArray() bool         { return o.class.kind == ClassArray }
func (o *Object) IsNamespace() bool     { return o.namespace != nil }
func (o *Object) IsExtensible() bool    { return o.extensible }
func (o *Object) heap() *Heap           { return o.class.heap }

// IsFrozen reports whether Freeze has been applied.
func (o *Object) IsFrozen() bool {
	return !o.extensible && o.class.frozen
}

// Get reads an own property. Accessor members call their getter with o as
// this; calling requires an interpreter, so only native getters are invoked.
func (o *Object) Get(name string) (Value, bool) {
	if o.namespace != nil {
		slot := o.namespace.ResolveExportSlot(name)
		if slot == nil {
			return Undefined, false
		}
		return *slot, true
	}
	if o.IsArray() {
		if name == "length" {
			return NumberValue(float64(len(o.elements))), true
		}
		if i, ok := arrayIndex(name); ok && i < len(o.elements) {
			return o.elements[i], true
		}
	}
	key := o.heap().identifiers.Intern(name)
	i, ok := o.class.IndexOf(key)
	if !ok {
		return Undefined, false
	}
	return o.slotValue(i), true
}

// GetKey reads an own property by interned key.
func (o *Object) GetKey(key PropertyKey) (Value, bool) {
	if o.namespace != nil {
		return o.Get(key.Name())
	}
	i, ok := o.class.IndexOf(key)
	if !ok {
		return o.Get(key.Name())
	}
	return o.slotValue(i), true
}

func (o *Object) slotValue(i int) Value {
	if a, ok := o.accessors[i]; ok {
		if a.Getter != nil && a.Getter.code != nil {
			return a.Getter.code(&Frame{Function: a.Getter, This: ObjectValue(o)})
		}
		return Undefined
	}
	return o.values[i]
}

// ValueAt returns the data slot i without invoking accessors.
func (o *Object) ValueAt(i int) Value {
	if i < 0 || i >= len(o.values) {
		return Undefined
	}
	return o.values[i]
}

// Has reports whether name is an own property.
func (o *Object) Has(name string) bool {
	_, ok := o.Get(name)
	return ok
}

// Set writes an own data property, adding it when o is extensible. It returns
// false when the write is rejected.
func (o *Object) Set(name string, v Value) bool {
	if o.namespace != nil {
		return false
	}
	if o.IsArray() {
		if i, ok := arrayIndex(name); ok {
			return o.SetElement(i, v)
		}
	}
	return o.SetKey(o.heap().identifiers.Intern(name), v)
}

// SetKey is Set for an interned key.
func (o *Object) SetKey(key PropertyKey, v Value) bool {
	if o.namespace != nil {
		return false
	}
	if i, ok := o.class.IndexOf(key); ok {
		m := o.class.members[i]
		if m.Attrs.IsAccessor() {
			a := o.accessors[i]
			if a == nil || a.Setter == nil || a.Setter.code == nil {
				return false
			}
			a.Setter.code(&Frame{Function: a.Setter, This: ObjectValue(o), Args: []Value{v}})
			return true
		}
		if !m.Attrs.IsWritable() {
			return false
		}
		o.values[i] = v
		return true
	}
	return o.DefineProperty(key, v, AttrData)
}

// DefineProperty adds or redefines key with attrs. Non-configurable members
// cannot be redefined.
func (o *Object) DefineProperty(key PropertyKey, v Value, attrs Attr) bool {
	if o.namespace != nil {
		return false
	}
	if i, ok := o.class.IndexOf(key); ok {
		if !o.class.members[i].Attrs.IsConfigurable() {
			return false
		}
		o.class = o.class.AddMember(key, attrs)
		o.values[i] = v
		return true
	}
	if !o.extensible {
		return false
	}
	o.class = o.class.AddMember(key, attrs)
	o.values = append(o.values, v)
	return true
}

// DefineReadonlyProperty adds name as a read-only, permanent data member.
func (o *Object) DefineReadonlyProperty(name string, v Value) bool {
	return o.DefineProperty(o.heap().identifiers.Intern(name), v, AttrNotWritable|AttrNotConfigurable)
}

// DefineAccessor adds name as an accessor member.
func (o *Object) DefineAccessor(name string, getter, setter *Function, attrs Attr) bool {
	key := o.heap().identifiers.Intern(name)
	if !o.DefineProperty(key, Undefined, attrs|AttrAccessor) {
		return false
	}
	i, _ := o.class.IndexOf(key)
	if o.accessors == nil {
		o.accessors = make(map[int]*Accessor)
	}
	o.accessors[i] = &Accessor{Getter: getter, Setter: setter}
	return true
}

// Freeze makes o non-extensible and every member read-only and permanent.
// Array elements become immutable as well.
func (o *Object) Freeze() {
	o.extensible = false
	o.class = o.class.Frozen()
}

// PreventExtensions stops new members from being added.
func (o *Object) PreventExtensions() { o.extensible = false }

// OwnKeys lists enumerable own property names: array indices first, then
// members in insertion order. Namespace keys come sorted from the resolver.
func (o *Object) OwnKeys() []string {
	if o.namespace != nil {
		names := o.namespace.ExportedNames()
		sort.Strings(names)
		return names
	}
	keys := make([]string, 0, len(o.elements)+len(o.class.members))
	for i := range o.elements {
		keys = append(keys, intToString(i))
	}
	for _, m := range o.class.members {
		if m.Attrs.IsEnumerable() {
			keys = append(keys, m.Key.Name())
		}
	}
	return keys
}

// Length is the number of indexed elements.
func (o *Object) Length() int { return len(o.elements) }

// ElementAt returns element i, or undefined when out of range.
func (o *Object) ElementAt(i int) Value {
	if i < 0 || i >= len(o.elements) {
		return Undefined
	}
	return o.elements[i]
}

// SetElement writes element i, growing the array when o is extensible.
func (o *Object) SetElement(i int, v Value) bool {
	if i < 0 || o.class.frozen {
		return false
	}
	if i >= len(o.elements) {
		if !o.extensible {
			return false
		}
		for len(o.elements) <= i {
			o.elements = append(o.elements, Undefined)
		}
	}
	o.elements[i] = v
	return true
}

func arrayIndex(name string) (int, bool) {
	if name == "" || len(name) > 9 || (len(name) > 1 && name[0] == '0') {
		return 0, false
	}
	n := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func intToString(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
