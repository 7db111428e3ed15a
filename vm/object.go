package vm

import (
	"fmt"
	"strings"
)

// objHeader is embedded in every HeapObject variant. marked is set by
// the mark phase and always false outside of a collection window (spec
// §3 Invariant 2).
type objHeader struct {
	marked bool
}

func (h *objHeader) isMarked() bool   { return h.marked }
func (h *objHeader) setMarked(b bool) { h.marked = b }

// HeapObject is the closed set of heap-resident variants: String, Atom,
// List, Table, Tuple, Function, Upvalue, Closure. Every variant exposes
// a mark hook for the GC, a stable accounted byte size, and a renderer
// used by Value.String/Value.DebugString.
type HeapObject interface {
	header() *objHeader
	byteSize() uint64
	render(debug bool) string
	// markChildren is invoked exactly once per collection, the first
	// time this object is reached from the root set; it must recurse
	// into every Value this object owns by calling Heap.mark on each.
	markChildren(h *Heap)
	// destroy releases owned payloads. Called by the sweeper on an
	// object the mark phase did not reach.
	destroy()
}

// Accounted header sizes (spec §3 Invariant 3): a stable property of
// the variant, not of the transitive size of its payload.
const (
	sizeofString   uint64 = 32
	sizeofAtom     uint64 = 32
	sizeofList     uint64 = 40
	sizeofTable    uint64 = 48
	sizeofTuple    uint64 = 32
	sizeofFunction uint64 = 48
	sizeofUpvalue  uint64 = 16
	sizeofClosure  uint64 = 40
)

// ---------------------------------------------------------------------------
// String
// ---------------------------------------------------------------------------

// StringObject owns a UTF-8 byte sequence. Equality is by byte sequence.
type StringObject struct {
	objHeader
	Bytes []byte
}

func (o *StringObject) header() *objHeader       { return &o.objHeader }
func (o *StringObject) byteSize() uint64         { return sizeofString }
func (o *StringObject) markChildren(h *Heap)     {} // leaf
func (o *StringObject) destroy()                 { o.Bytes = nil }
func (o *StringObject) render(debug bool) string {
	if debug {
		return "'" + string(o.Bytes) + "'"
	}
	return string(o.Bytes)
}

// ---------------------------------------------------------------------------
// Atom
// ---------------------------------------------------------------------------

// AtomObject is an interned-like symbolic identifier. Equality is by
// byte sequence, exactly like String, but Atoms are a distinct variant
// and never compare equal to a String.
type AtomObject struct {
	objHeader
	Bytes []byte
}

func (o *AtomObject) header() *objHeader       { return &o.objHeader }
func (o *AtomObject) byteSize() uint64         { return sizeofAtom }
func (o *AtomObject) markChildren(h *Heap)     {} // leaf
func (o *AtomObject) destroy()                 { o.Bytes = nil }
func (o *AtomObject) render(debug bool) string { return string(o.Bytes) }

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// ListObject is an ordered, mutable sequence of Value.
type ListObject struct {
	objHeader
	Elems []Value
}

func (o *ListObject) header() *objHeader { return &o.objHeader }
func (o *ListObject) byteSize() uint64   { return sizeofList }
func (o *ListObject) destroy()           { o.Elems = nil }

func (o *ListObject) markChildren(h *Heap) {
	for _, v := range o.Elems {
		h.mark(v)
	}
}

func (o *ListObject) render(debug bool) string {
	parts := make([]string, len(o.Elems))
	for i, v := range o.Elems {
		parts[i] = v.render(debug)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

// TableObject is a mapping from UTF-8 key to Value. Insertion order is
// not preserved (spec §4.1 does not require it).
type TableObject struct {
	objHeader
	Entries map[string]Value
}

func newTableObject() *TableObject {
	return &TableObject{Entries: make(map[string]Value)}
}

func (o *TableObject) header() *objHeader { return &o.objHeader }
func (o *TableObject) byteSize() uint64   { return sizeofTable }
func (o *TableObject) destroy()           { o.Entries = nil }

func (o *TableObject) markChildren(h *Heap) {
	for _, v := range o.Entries {
		h.mark(v)
	}
}

func (o *TableObject) render(debug bool) string {
	parts := make([]string, 0, len(o.Entries))
	for k, v := range o.Entries {
		parts = append(parts, fmt.Sprintf("%s: %s", k, v.render(debug)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ---------------------------------------------------------------------------
// Tuple
// ---------------------------------------------------------------------------

// TupleObject is a fixed-length array of Value, length <= 255.
type TupleObject struct {
	objHeader
	Elems []Value
}

func (o *TupleObject) header() *objHeader { return &o.objHeader }
func (o *TupleObject) byteSize() uint64   { return sizeofTuple }
func (o *TupleObject) destroy()           { o.Elems = nil }

func (o *TupleObject) markChildren(h *Heap) {
	for _, v := range o.Elems {
		h.mark(v)
	}
}

func (o *TupleObject) render(debug bool) string {
	parts := make([]string, len(o.Elems))
	for i, v := range o.Elems {
		parts[i] = v.render(debug)
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// ---------------------------------------------------------------------------
// Function
// ---------------------------------------------------------------------------

// FunctionObject holds a name, arity, and owned instruction bytes. Code
// is not itself a Value; it is a leaf from the GC's point of view, and
// may only be referenced from this one Function object (spec §3
// Invariant 4) — a Closure shares a pointer to it rather than copying.
type FunctionObject struct {
	objHeader
	Name  string
	Arity uint16
	Code  []byte
}

func (o *FunctionObject) header() *objHeader   { return &o.objHeader }
func (o *FunctionObject) byteSize() uint64     { return sizeofFunction }
func (o *FunctionObject) markChildren(h *Heap) {} // leaf: code is not a Value
func (o *FunctionObject) destroy()              { o.Code = nil }

func (o *FunctionObject) render(debug bool) string {
	if o.Name != "" {
		return fmt.Sprintf("<function %s>", o.Name)
	}
	return fmt.Sprintf("<function @%p>", o)
}

// ---------------------------------------------------------------------------
// Upvalue
// ---------------------------------------------------------------------------

// UpvalueObject is a single mutable Value cell shared between a
// closure and the frame that captured it. While open, it aliases a
// live stack slot (by absolute index, re-resolved through the stack on
// every access so a stack reallocation never invalidates it); Close
// copies the current value into the cell and severs the alias, done
// when the owning frame returns.
type UpvalueObject struct {
	objHeader
	stack  *ValueStack
	idx    int
	closed bool
	cell   Value
}

func (o *UpvalueObject) header() *objHeader { return &o.objHeader }
func (o *UpvalueObject) byteSize() uint64   { return sizeofUpvalue }

func (o *UpvalueObject) destroy() {
	o.stack = nil
	o.cell = Empty
}

// Get returns the current value of the cell.
func (o *UpvalueObject) Get() Value {
	if !o.closed {
		return o.stack.values[o.idx]
	}
	return o.cell
}

// Set stores v into the cell.
func (o *UpvalueObject) Set(v Value) {
	if !o.closed {
		o.stack.values[o.idx] = v
		return
	}
	o.cell = v
}

// Close snapshots the aliased stack slot into the cell and severs the
// alias. A no-op if already closed.
func (o *UpvalueObject) Close() {
	if o.closed {
		return
	}
	o.cell = o.stack.values[o.idx]
	o.stack = nil
	o.closed = true
}

func (o *UpvalueObject) markChildren(h *Heap) {
	h.mark(o.Get())
}

func (o *UpvalueObject) render(debug bool) string {
	return "<upvalue>"
}

// ---------------------------------------------------------------------------
// Closure
// ---------------------------------------------------------------------------

// ClosureObject pairs a Function with the ordered Upvalues it captured.
// The Function is the Closure's unique child (spec §3 Invariant 4) and
// is marked transitively, not copied.
type ClosureObject struct {
	objHeader
	Fn       *FunctionObject
	Upvalues []*UpvalueObject
}

func (o *ClosureObject) header() *objHeader { return &o.objHeader }
func (o *ClosureObject) byteSize() uint64   { return sizeofClosure }

func (o *ClosureObject) destroy() {
	o.Fn = nil
	o.Upvalues = nil
}

func (o *ClosureObject) markChildren(h *Heap) {
	if o.Fn != nil {
		h.mark(ObjectValue(o.Fn))
	}
	for _, uv := range o.Upvalues {
		h.mark(ObjectValue(uv))
	}
}

func (o *ClosureObject) render(debug bool) string {
	if o.Fn == nil {
		return "<function @0x0>"
	}
	return o.Fn.render(debug)
}
