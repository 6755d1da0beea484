package vm

import "strings"

// ClassKind selects the family of shapes a class belongs to. Each kind has its
// own empty root class.
type ClassKind uint8

const (
	ClassObject ClassKind = iota
	ClassArray
	ClassCallContext
	ClassNamespace
	classKindCount
)

func (k ClassKind) String() string {
	switch k {
	case ClassObject:
		return "Object"
	case ClassArray:
		return "Array"
	case ClassCallContext:
		return "CallContext"
	case ClassNamespace:
		return "Namespace"
	default:
		return "<unknown>"
	}
}

// Attr are per-member property attributes.
type Attr uint8

const (
	AttrData     Attr = 0
	AttrAccessor Attr = 1 << iota
	AttrNotWritable
	AttrNotEnumerable
	AttrNotConfigurable

	// AttrFrozen is what Object.freeze applies to data members.
	AttrFrozen = AttrNotWritable | AttrNotConfigurable
)

func (a Attr) IsAccessor() bool     { return a&AttrAccessor != 0 }
func (a Attr) IsWritable() bool     { return a&AttrNotWritable == 0 }
func (a Attr) IsEnumerable() bool   { return a&AttrNotEnumerable == 0 }
func (a Attr) IsConfigurable() bool { return a&AttrNotConfigurable == 0 }

func (a Attr) String() string {
	var parts []string
	if a.IsAccessor() {
		parts = append(parts, "accessor")
	} else {
		parts = append(parts, "data")
	}
	if !a.IsWritable() {
		parts = append(parts, "readonly")
	}
	if !a.IsEnumerable() {
		parts = append(parts, "hidden")
	}
	if !a.IsConfigurable() {
		parts = append(parts, "permanent")
	}
	return strings.Join(parts, "|")
}

// Member is one slot of an InternalClass.
type Member struct {
	Key   PropertyKey
	Attrs Attr
	Index int
}

type transitionKey struct {
	id     *String
	attrs  Attr
	freeze bool
}

// InternalClass is a hidden class: an ordered list of members shared by every
// object with the same layout. Classes form a transition tree rooted at the
// heap's empty class for their kind; adding a member to a class yields the
// same child class every time.
type InternalClass struct {
	hdr         cellHeader
	heap        *Heap
	kind        ClassKind
	parent      *InternalClass
	members     []Member
	index       map[*String]int
	transitions map[transitionKey]*InternalClass
	frozen      bool
}

func newInternalClass(h *Heap, kind ClassKind, parent *InternalClass) *InternalClass {
	return &InternalClass{
		heap:        h,
		kind:        kind,
		parent:      parent,
		index:       make(map[*String]int),
		transitions: make(map[transitionKey]*InternalClass),
	}
}

func (c *InternalClass) header() *cellHeader {
	if c == nil {
		return nil
	}
	return &c.hdr
}

// markChildren keeps the parent chain and member names alive. Children are
// reachable only through the objects that use them.
func (c *InternalClass) markChildren(ms *MarkStack) {
	ms.Push(c.parent)
	for _, m := range c.members {
		ms.Push(m.Key.id)
	}
}

// detach drops a swept class from its parent's transition table.
func (c *InternalClass) detach() {
	if c.parent == nil {
		return
	}
	for k, child := range c.parent.transitions {
		if child == c {
			delete(c.parent.transitions, k)
		}
	}
}

func (c *InternalClass) Kind() ClassKind        { return c.kind }
func (c *InternalClass) Size() int              { return len(c.members) }
func (c *InternalClass) Parent() *InternalClass { return c.parent }
func (c *InternalClass) IsFrozen() bool         { return c.frozen }

// Members returns the members in slot order. The slice must not be modified.
func (c *InternalClass) Members() []Member { return c.members }

// MemberAt returns the member in slot i.
func (c *InternalClass) MemberAt(i int) Member { return c.members[i] }

// IndexOf returns the slot of key.
func (c *InternalClass) IndexOf(key PropertyKey) (int, bool) {
	if !key.IsValid() {
		return -1, false
	}
	i, ok := c.index[key.id]
	return i, ok
}

// Find resolves name through the heap's identifier table.
func (c *InternalClass) Find(name string) (Member, bool) {
	key := c.heap.identifiers.Intern(name)
	i, ok := c.IndexOf(key)
	if !ok {
		return Member{}, false
	}
	return c.members[i], true
}

// AddMember returns the class that extends c with key. Adding a key that is
// already present returns c unchanged when the attributes match, otherwise the
// class with that member's attributes replaced.
func (c *InternalClass) AddMember(key PropertyKey, attrs Attr) *InternalClass {
	if i, ok := c.IndexOf(key); ok {
		if c.members[i].Attrs == attrs {
			return c
		}
		return c.changeMember(i, attrs)
	}
	tk := transitionKey{id: key.id, attrs: attrs}
	if next, ok := c.transitions[tk]; ok {
		return next
	}
	next := c.derive()
	next.index[key.id] = len(next.members)
	next.members = append(next.members, Member{Key: key, Attrs: attrs, Index: len(next.members)})
	c.transitions[tk] = next
	return Allocate(c.heap, next)
}

// AddName is AddMember for a plain string name.
func (c *InternalClass) AddName(name string, attrs Attr) *InternalClass {
	return c.AddMember(c.heap.identifiers.Intern(name), attrs)
}

// Frozen returns the class with every member read-only and permanent.
func (c *InternalClass) Frozen() *InternalClass {
	if c.frozen {
		return c
	}
	tk := transitionKey{freeze: true}
	if next, ok := c.transitions[tk]; ok {
		return next
	}
	next := c.derive()
	for i := range next.members {
		if next.members[i].Attrs.IsAccessor() {
			next.members[i].Attrs |= AttrNotConfigurable
		} else {
			next.members[i].Attrs |= AttrFrozen
		}
	}
	next.frozen = true
	c.transitions[tk] = next
	return Allocate(c.heap, next)
}

func (c *InternalClass) changeMember(i int, attrs Attr) *InternalClass {
	tk := transitionKey{id: c.members[i].Key.id, attrs: attrs | 0x80}
	if next, ok := c.transitions[tk]; ok {
		return next
	}
	next := c.derive()
	next.members[i].Attrs = attrs
	c.transitions[tk] = next
	return Allocate(c.heap, next)
}

func (c *InternalClass) derive() *InternalClass {
	next := newInternalClass(c.heap, c.kind, c)
	next.members = make([]Member, len(c.members), len(c.members)+1)
	copy(next.members, c.members)
	for k, v := range c.index {
		next.index[k] = v
	}
	next.frozen = c.frozen
	return next
}
