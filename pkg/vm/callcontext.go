package vm

// CallContext is a scope: a fixed set of local slots laid out by a
// ClassCallContext class. Slots never move, so a *Value taken from Slot stays
// valid for the context's lifetime.
type CallContext struct {
	hdr    cellHeader
	class  *InternalClass
	locals []Value
	outer  *CallContext
}

func (c *CallContext) header() *cellHeader {
	if c == nil {
		return nil
	}
	return &c.hdr
}

func (c *CallContext) markChildren(ms *MarkStack) {
	ms.Push(c.class)
	ms.Push(c.outer)
	for _, v := range c.locals {
		ms.PushValue(v)
	}
}

// NewCallContext allocates a scope with one undefined slot per class member.
func (h *Heap) NewCallContext(class *InternalClass) *CallContext {
	return Allocate(h, &CallContext{class: class, locals: make([]Value, class.Size())})
}

func (c *CallContext) Class() *InternalClass   { return c.class }
func (c *CallContext) Size() int               { return len(c.locals) }
func (c *CallContext) Outer() *CallContext     { return c.outer }
func (c *CallContext) SetOuter(o *CallContext) { c.outer = o }

// Slot returns a stable pointer to local i, or nil when out of range.
func (c *CallContext) Slot(i int) *Value {
	if i < 0 || i >= len(c.locals) {
		return nil
	}
	return &c.locals[i]
}

// Lookup finds name in this scope only.
func (c *CallContext) Lookup(name string) (*Value, bool) {
	m, ok := c.class.Find(name)
	if !ok {
		return nil, false
	}
	return &c.locals[m.Index], true
}

// Resolve searches this scope and its outer chain.
func (c *CallContext) Resolve(name string) (*Value, bool) {
	for s := c; s != nil; s = s.outer {
		if slot, ok := s.Lookup(name); ok {
			return slot, true
		}
	}
	return nil, false
}
