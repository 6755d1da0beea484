package vm

// HeapObject is implemented by every cell the Heap manages. header returns the
// cell's mark bits; markChildren pushes every reference the cell holds.
type HeapObject interface {
	header() *cellHeader
	markChildren(ms *MarkStack)
}

type cellHeader struct {
	marked bool
	freed  bool
}

// Root is something the collector asks for live references on every cycle.
type Root interface {
	MarkObjects(ms *MarkStack)
}

// RootFunc adapts a function to Root.
type RootFunc func(ms *MarkStack)

func (f RootFunc) MarkObjects(ms *MarkStack) { f(ms) }

// MarkStack is the worklist of a marking pass. Pushing an already marked cell
// is a no-op, so cyclic graphs terminate.
type MarkStack struct {
	stack  []HeapObject
	marked int
}

func NewMarkStack() *MarkStack {
	return &MarkStack{}
}

// Push marks o and queues it for tracing. nil is ignored.
func (ms *MarkStack) Push(o HeapObject) {
	if o == nil {
		return
	}
	h := o.header()
	if h == nil || h.marked {
		return
	}
	h.marked = true
	ms.marked++
	ms.stack = append(ms.stack, o)
}

// PushValue marks the heap cell behind v, if any.
func (ms *MarkStack) PushValue(v Value) {
	if v.ref != nil {
		ms.Push(v.ref)
	}
}

// Drain traces queued cells until the worklist is empty.
func (ms *MarkStack) Drain() {
	for len(ms.stack) > 0 {
		o := ms.stack[len(ms.stack)-1]
		ms.stack = ms.stack[:len(ms.stack)-1]
		o.markChildren(ms)
	}
}

// Marked is the number of cells this stack has marked.
func (ms *MarkStack) Marked() int { return ms.marked }

// IsMarked reports whether o carries a mark bit.
func IsMarked(o HeapObject) bool {
	if o == nil || o.header() == nil {
		return false
	}
	return o.header().marked
}

// IsFreed reports whether o was swept by a collection.
func IsFreed(o HeapObject) bool {
	if o == nil || o.header() == nil {
		return false
	}
	return o.header().freed
}

// HeapStats is a snapshot of collector activity.
type HeapStats struct {
	Allocations        int
	Collections        int
	SkippedCollections int // threshold reached while collection was suppressed
	Freed              int
	Live               int
}

// DefaultGCThreshold is the allocation count between automatic collections.
const DefaultGCThreshold = 4096

// Heap is a non-moving mark and sweep collector. Cells are ordinary Go values;
// sweeping only flags them so that stale references are detectable in tests.
// A Heap is not safe for concurrent use; it is owned by one engine.
type Heap struct {
	objects      []HeapObject
	roots        map[int]Root
	nextRoot     int
	suppressed   int
	threshold    int
	sinceCollect int
	stats        HeapStats

	identifiers *IdentifierTable
	emptyClass  [classKindCount]*InternalClass
}

// NewHeap creates a heap collecting every threshold allocations.
// A threshold <= 0 disables automatic collection.
func NewHeap(threshold int) *Heap {
	h := &Heap{threshold: threshold, roots: make(map[int]Root)}
	h.identifiers = newIdentifierTable(h)
	for k := ClassKind(0); k < classKindCount; k++ {
		h.emptyClass[k] = newInternalClass(h, k, nil)
	}
	return h
}

// Allocate registers o with h and returns it. Reaching the threshold runs a
// collection first, unless collection is suppressed; o itself always survives
// the cycle it triggers. Code that builds a graph over several allocations
// before linking it to a root must hold a GCGuard.
func Allocate[T HeapObject](h *Heap, o T) T {
	h.sinceCollect++
	if h.threshold > 0 && h.sinceCollect >= h.threshold {
		if h.suppressed > 0 {
			h.stats.SkippedCollections++
		} else {
			h.Collect()
		}
	}
	h.objects = append(h.objects, o)
	h.stats.Allocations++
	return o
}

// AddRoot registers r for marking on every collection. The returned function
// unregisters it.
func (h *Heap) AddRoot(r Root) (remove func()) {
	id := h.nextRoot
	h.nextRoot++
	h.roots[id] = r
	return func() { delete(h.roots, id) }
}

// GCGuard keeps collection suppressed until Release is called.
type GCGuard struct {
	heap     *Heap
	released bool
}

// Suppress disables collection until the returned guard is released.
// Guards nest.
func (h *Heap) Suppress() *GCGuard {
	h.suppressed++
	return &GCGuard{heap: h}
}

// Release re-enables collection. Releasing twice is a no-op.
func (g *GCGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.heap.suppressed--
}

// Suppressed reports whether any guard is outstanding.
func (h *Heap) Suppressed() bool { return h.suppressed > 0 }

// Collect runs a full mark and sweep. It returns false without doing anything
// while collection is suppressed.
func (h *Heap) Collect() bool {
	if h.suppressed > 0 {
		h.stats.SkippedCollections++
		return false
	}
	for _, o := range h.objects {
		o.header().marked = false
	}
	for _, c := range h.emptyClass {
		c.hdr.marked = false
	}

	ms := NewMarkStack()
	h.identifiers.markObjects(ms)
	for _, c := range h.emptyClass {
		ms.Push(c)
	}
	for _, r := range h.roots {
		r.MarkObjects(ms)
		ms.Drain()
	}
	ms.Drain()

	live := h.objects[:0]
	freed := 0
	for _, o := range h.objects {
		if o.header().marked {
			live = append(live, o)
			continue
		}
		o.header().freed = true
		if c, ok := o.(*InternalClass); ok {
			c.detach()
		}
		freed++
	}
	for i := len(live); i < len(h.objects); i++ {
		h.objects[i] = nil
	}
	h.objects = live

	h.sinceCollect = 0
	h.stats.Collections++
	h.stats.Freed += freed
	return true
}

// Stats returns the current collector statistics.
func (h *Heap) Stats() HeapStats {
	s := h.stats
	s.Live = len(h.objects)
	return s
}

// Identifiers is the heap's identifier table.
func (h *Heap) Identifiers() *IdentifierTable { return h.identifiers }

// EmptyClass returns the root class for kind.
func (h *Heap) EmptyClass(kind ClassKind) *InternalClass { return h.emptyClass[kind] }

// NewString allocates a string cell.
func (h *Heap) NewString(s string) *String {
	return Allocate(h, &String{s: s})
}
