package vm

// Default generation caps (spec §4.2): nursery ~8 MiB, retirement ~64
// MiB of accounted header bytes. Both are overridable via vmconfig.
const (
	DefaultNurseryCapBytes    uint64 = 8 * 1024 * 1024
	DefaultRetirementCapBytes uint64 = 64 * 1024 * 1024
)

// Roots is anything the GC can walk for its root set. ValueStack
// implements this, and the interpreter's interpreterRoots combines it
// with the global table; tests can substitute a plain slice.
type Roots interface {
	// EachRoot calls fn once for every live Value currently reachable
	// as a root.
	EachRoot(fn func(Value))
}

// HeapStats is a point-in-time snapshot of generation occupancy, used
// by the CBOR-encoded inspector dump (see package snapshot) and by
// tests asserting the accounting invariant of spec §8.
type HeapStats struct {
	NurseryObjects    int    `cbor:"nursery_objects"`
	NurseryBytes      uint64 `cbor:"nursery_bytes"`
	RetirementObjects int    `cbor:"retirement_objects"`
	RetirementBytes   uint64 `cbor:"retirement_bytes"`
	Collections       uint64 `cbor:"collections"`
	Promotions        uint64 `cbor:"promotions"`
}

// Heap is the two-generation mark-and-sweep garbage collector. It owns
// every heap object allocated through its create* methods and is the
// sole authority on object lifetime: a Value's Object reference is
// non-owning.
type Heap struct {
	nurseryCap    uint64
	retirementCap uint64

	nursery       []HeapObject
	nurseryBytes  uint64
	retirement    []HeapObject
	retirementBytes uint64

	roots Roots

	collections uint64
	promotions  uint64

	// onCollect, if set, is invoked with before/after stats around each
	// collection pass; wired to structured logging when enabled.
	onCollect func(before, after HeapStats)
}

// NewHeap creates a Heap with the given generation caps. roots must not
// be nil; it is consulted on every allocation that crosses a threshold.
func NewHeap(nurseryCap, retirementCap uint64, roots Roots) *Heap {
	if nurseryCap == 0 {
		nurseryCap = DefaultNurseryCapBytes
	}
	if retirementCap == 0 {
		retirementCap = DefaultRetirementCapBytes
	}
	return &Heap{
		nurseryCap:    nurseryCap,
		retirementCap: retirementCap,
		roots:         roots,
	}
}

// SetCollectHook installs a callback invoked around every collection
// pass, used by vmlog to emit GC diagnostics.
func (h *Heap) SetCollectHook(fn func(before, after HeapStats)) {
	h.onCollect = fn
}

// Stats returns a snapshot of current generation occupancy.
func (h *Heap) Stats() HeapStats {
	return HeapStats{
		NurseryObjects:    len(h.nursery),
		NurseryBytes:      h.nurseryBytes,
		RetirementObjects: len(h.retirement),
		RetirementBytes:   h.retirementBytes,
		Collections:       h.collections,
		Promotions:        h.promotions,
	}
}

// register adds a freshly-constructed object to the nursery and
// accounts its byte size. It is called by every create* allocator
// after the threshold check, per the allocation contract of spec §4.2.
func (h *Heap) register(obj HeapObject) {
	h.nursery = append(h.nursery, obj)
	h.nurseryBytes += obj.byteSize()
}

// collectIfNeeded runs the mandatory collection(s) triggered by the
// nursery exceeding its cap, promoting survivors and, if the
// retirement home is then also over cap, sweeping it too.
func (h *Heap) collectIfNeeded() {
	if h.nurseryBytes < h.nurseryCap {
		return
	}

	before := h.Stats()
	h.collectNursery()

	if h.retirementBytes >= h.retirementCap {
		h.collectRetirement()
	}

	if h.onCollect != nil {
		h.onCollect(before, h.Stats())
	}
}

// mark implements the idempotent mark operation of spec §4.2: if v is
// not an Object, or its target is already marked, this is a no-op;
// otherwise the target is marked and the walk recurses into its
// outgoing Object references. The idempotent short-circuit makes
// cyclic heap graphs safe.
func (h *Heap) mark(v Value) {
	obj := v.Object()
	if obj == nil {
		return
	}
	hdr := obj.header()
	if hdr.isMarked() {
		return
	}
	hdr.setMarked(true)
	obj.markChildren(h)
}

// markRoots walks the live root set and marks everything reachable
// from it.
func (h *Heap) markRoots() {
	h.roots.EachRoot(h.mark)
}

// collectNursery performs the nursery sweep of spec §4.2: unmarked
// objects are destroyed and their bytes reclaimed; marked objects are
// unmarked and promoted to the retirement home.
func (h *Heap) collectNursery() {
	h.markRoots()
	h.collections++

	for _, obj := range h.nursery {
		hdr := obj.header()
		if !hdr.isMarked() {
			h.nurseryBytes -= obj.byteSize()
			obj.destroy()
			continue
		}
		hdr.setMarked(false)
		h.nurseryBytes -= obj.byteSize()
		h.retirementBytes += obj.byteSize()
		h.retirement = append(h.retirement, obj)
		h.promotions++
	}
	// every survivor has been moved into h.retirement above.
	h.nursery = h.nursery[:0]

	// The mark phase also reached live retirement objects; clear them so
	// no mark outlives this collection.
	for _, obj := range h.retirement {
		obj.header().setMarked(false)
	}
}

// collectRetirement re-runs the mark phase (the nursery pass may have
// just promoted newly-live objects) and sweeps the retirement home.
func (h *Heap) collectRetirement() {
	h.markRoots()

	kept := h.retirement[:0]
	for _, obj := range h.retirement {
		hdr := obj.header()
		if !hdr.isMarked() {
			h.retirementBytes -= obj.byteSize()
			obj.destroy()
			continue
		}
		hdr.setMarked(false)
		kept = append(kept, obj)
	}
	h.retirement = kept
}

// Collect forces an immediate nursery collection followed by a
// retirement collection, regardless of whether either generation has
// reached its cap. Used by tests exercising
// spec §8's GC survival scenario and by the --gc-stats CLI path.
func (h *Heap) Collect() {
	before := h.Stats()
	h.collectNursery()
	h.collectRetirement()
	if h.onCollect != nil {
		h.onCollect(before, h.Stats())
	}
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------
//
// Every create* method returns an Object-variant Value whose target is
// already registered in the nursery. The caller must push the returned
// Value onto the stack before any further allocation that could
// trigger a collection (spec §4.2's allocation contract) — otherwise
// an in-progress construction with no stack-visible reference could be
// collected out from under it.

func (h *Heap) CreateString(b []byte) Value {
	h.collectIfNeeded()
	obj := &StringObject{Bytes: b}
	h.register(obj)
	return ObjectValue(obj)
}

func (h *Heap) CreateAtom(b []byte) Value {
	h.collectIfNeeded()
	obj := &AtomObject{Bytes: b}
	h.register(obj)
	return ObjectValue(obj)
}

func (h *Heap) CreateList(elems []Value) Value {
	h.collectIfNeeded()
	obj := &ListObject{Elems: elems}
	h.register(obj)
	return ObjectValue(obj)
}

func (h *Heap) CreateTable() Value {
	h.collectIfNeeded()
	obj := newTableObject()
	h.register(obj)
	return ObjectValue(obj)
}

func (h *Heap) CreateTuple(elems []Value) Value {
	h.collectIfNeeded()
	obj := &TupleObject{Elems: elems}
	h.register(obj)
	return ObjectValue(obj)
}

func (h *Heap) CreateFunction(name string, arity uint16, code []byte) *FunctionObject {
	h.collectIfNeeded()
	obj := &FunctionObject{Name: name, Arity: arity, Code: code}
	h.register(obj)
	return obj
}

// CreateOpenUpvalue allocates an Upvalue that aliases stack slot idx
// (an absolute stack index) until it is closed.
func (h *Heap) CreateOpenUpvalue(stack *ValueStack, idx int) *UpvalueObject {
	h.collectIfNeeded()
	obj := &UpvalueObject{stack: stack, idx: idx}
	h.register(obj)
	return obj
}

func (h *Heap) CreateClosure(fn *FunctionObject, upvalues []*UpvalueObject) Value {
	h.collectIfNeeded()
	obj := &ClosureObject{Fn: fn, Upvalues: upvalues}
	h.register(obj)
	return ObjectValue(obj)
}
