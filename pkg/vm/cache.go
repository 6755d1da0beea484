package vm

import "fmt"

// LookupKind mirrors the compiled lookup types.
type LookupKind uint8

const (
	LookupGetter LookupKind = iota
	LookupSetter
	LookupGlobalGetter
	LookupContextPropertyGetter
)

func (k LookupKind) String() string {
	switch k {
	case LookupGetter:
		return "getter"
	case LookupSetter:
		return "setter"
	case LookupGlobalGetter:
		return "global-getter"
	case LookupContextPropertyGetter:
		return "context-property-getter"
	default:
		return "<unknown>"
	}
}

// CacheState represents the different states of a lookup's inline cache
type CacheState uint8

const (
	CacheStateUninitialized CacheState = iota
	CacheStateMonomorphic              // Single class cached
	CacheStatePolymorphic              // Multiple classes cached
	CacheStateMegamorphic              // Too many classes, fallback to full lookup
)

func (s CacheState) String() string {
	switch s {
	case CacheStateUninitialized:
		return "uninitialized"
	case CacheStateMonomorphic:
		return "monomorphic"
	case CacheStatePolymorphic:
		return "polymorphic"
	case CacheStateMegamorphic:
		return "megamorphic"
	default:
		return "<unknown>"
	}
}

const maxLookupEntries = 4

var (
	// MaxPolymorphicEntries controls how many classes a lookup tracks before going megamorphic
	MaxPolymorphicEntries = clampEntries(getEnvInt("LINKVM_MAX_POLY_ENTRIES", maxLookupEntries))

	// EnableLookupStats makes Lookup.String include hit and miss counters
	EnableLookupStats = getEnvBool("LINKVM_LOOKUP_STATS", false)
)

func clampEntries(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxLookupEntries {
		return maxLookupEntries
	}
	return n
}

type lookupEntry struct {
	class *InternalClass
	index int
}

// Lookup is a property access site with an inline cache keyed by class. The
// cached classes are GC references owned by the lookup.
type Lookup struct {
	Kind      LookupKind
	NameIndex uint32 // index of Name in the owning unit's string table
	Name      PropertyKey
	ForCall   bool

	state      CacheState
	entries    [maxLookupEntries]lookupEntry
	entryCount int
	hitCount   uint32
	missCount  uint32
}

// NewLookup creates an uninitialized lookup for name.
func NewLookup(kind LookupKind, nameIndex uint32, name PropertyKey, forCall bool) Lookup {
	return Lookup{Kind: kind, NameIndex: nameIndex, Name: name, ForCall: forCall}
}

func (l *Lookup) State() CacheState { return l.state }
func (l *Lookup) Hits() uint32      { return l.hitCount }
func (l *Lookup) Misses() uint32    { return l.missCount }

// CachedClasses returns the number of classes currently cached.
func (l *Lookup) CachedClasses() int { return l.entryCount }

func (l *Lookup) lookupInCache(class *InternalClass) (int, bool) {
	switch l.state {
	case CacheStateMonomorphic:
		if l.entries[0].class == class {
			l.hitCount++
			return l.entries[0].index, true
		}
	case CacheStatePolymorphic:
		for i := 0; i < l.entryCount; i++ {
			if l.entries[i].class == class {
				l.hitCount++
				// Move hit entry to front
				if i > 0 {
					entry := l.entries[i]
					copy(l.entries[1:i+1], l.entries[0:i])
					l.entries[0] = entry
				}
				return l.entries[0].index, true
			}
		}
	}
	l.missCount++
	return -1, false
}

func (l *Lookup) updateCache(class *InternalClass, index int) {
	switch l.state {
	case CacheStateUninitialized:
		l.state = CacheStateMonomorphic
		l.entries[0] = lookupEntry{class: class, index: index}
		l.entryCount = 1
	case CacheStateMonomorphic, CacheStatePolymorphic:
		for i := 0; i < l.entryCount; i++ {
			if l.entries[i].class == class {
				l.entries[i].index = index
				return
			}
		}
		if l.entryCount < MaxPolymorphicEntries {
			l.entries[l.entryCount] = lookupEntry{class: class, index: index}
			l.entryCount++
			l.state = CacheStatePolymorphic
			return
		}
		l.Release()
		l.state = CacheStateMegamorphic
	}
}

// Get reads the looked-up property of o.
func (l *Lookup) Get(o *Object) (Value, bool) {
	if o == nil {
		return Undefined, false
	}
	if o.namespace != nil || o.IsArray() {
		return o.GetKey(l.Name)
	}
	if idx, ok := l.lookupInCache(o.class); ok {
		return o.slotValue(idx), true
	}
	idx, ok := o.class.IndexOf(l.Name)
	if !ok {
		return Undefined, false
	}
	l.updateCache(o.class, idx)
	return o.slotValue(idx), true
}

// Set writes the looked-up property of o. Only writable data members are
// cached; everything else takes the slow path.
func (l *Lookup) Set(o *Object, v Value) bool {
	if o == nil {
		return false
	}
	if idx, ok := l.lookupInCache(o.class); ok {
		o.values[idx] = v
		return true
	}
	if !o.SetKey(l.Name, v) {
		return false
	}
	if idx, ok := o.class.IndexOf(l.Name); ok {
		m := o.class.members[idx]
		if !m.Attrs.IsAccessor() && m.Attrs.IsWritable() {
			l.updateCache(o.class, idx)
		}
	}
	return true
}

// GetContext reads name from a scope chain, for context property getters.
func (l *Lookup) GetContext(scope *CallContext) (Value, bool) {
	if scope == nil {
		return Undefined, false
	}
	slot, ok := scope.Resolve(l.Name.Name())
	if !ok {
		return Undefined, false
	}
	return *slot, true
}

// MarkObjects pushes the cached classes.
func (l *Lookup) MarkObjects(ms *MarkStack) {
	ms.Push(l.Name.id)
	for i := 0; i < l.entryCount; i++ {
		ms.Push(l.entries[i].class)
	}
}

// Release drops every cached class reference. The lookup is reusable
// afterwards and starts uninitialized.
func (l *Lookup) Release() {
	for i := range l.entries {
		l.entries[i] = lookupEntry{}
	}
	l.entryCount = 0
	l.state = CacheStateUninitialized
}

func (l *Lookup) String() string {
	s := fmt.Sprintf("%s %q", l.Kind, l.Name.Name())
	if l.ForCall {
		s += " (call)"
	}
	if EnableLookupStats {
		s += fmt.Sprintf(" [%s hits=%d misses=%d]", l.state, l.hitCount, l.missCount)
	}
	return s
}
