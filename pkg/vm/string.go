package vm

// String is an immutable heap string.
type String struct {
	hdr cellHeader
	s   string
}

func (s *String) header() *cellHeader {
	if s == nil {
		return nil
	}
	return &s.hdr
}

func (s *String) markChildren(*MarkStack) {}

func (s *String) String() string {
	if s == nil {
		return ""
	}
	return s.s
}

// PropertyKey is an interned identifier. Two keys for the same name obtained
// from the same IdentifierTable compare equal with ==.
type PropertyKey struct {
	id *String
}

func (k PropertyKey) IsValid() bool  { return k.id != nil }
func (k PropertyKey) Name() string   { return k.id.String() }
func (k PropertyKey) String() string { return k.id.String() }

// Identifier returns the interned string backing the key.
func (k PropertyKey) Identifier() *String { return k.id }

// IdentifierTable interns property names. Identifiers are never collected
// while the table lives.
type IdentifierTable struct {
	heap  *Heap
	names map[string]*String
}

func newIdentifierTable(h *Heap) *IdentifierTable {
	return &IdentifierTable{heap: h, names: make(map[string]*String)}
}

// Intern returns the key for name, allocating its identifier on first use.
func (t *IdentifierTable) Intern(name string) PropertyKey {
	if s, ok := t.names[name]; ok {
		return PropertyKey{id: s}
	}
	s := t.heap.NewString(name)
	t.names[name] = s
	return PropertyKey{id: s}
}

// AsPropertyKey interns the contents of s.
func (t *IdentifierTable) AsPropertyKey(s *String) PropertyKey {
	if s == nil {
		return PropertyKey{}
	}
	if id, ok := t.names[s.s]; ok {
		return PropertyKey{id: id}
	}
	t.names[s.s] = s
	return PropertyKey{id: s}
}

// Len is the number of interned identifiers.
func (t *IdentifierTable) Len() int { return len(t.names) }

func (t *IdentifierTable) markObjects(ms *MarkStack) {
	for _, s := range t.names {
		ms.Push(s)
	}
}
