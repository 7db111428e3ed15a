package vm

import "math"

// Interpreter is the fetch-decode-execute engine of spec §4.5. It owns
// the heap, the value stack, the bounded call-frame array, the global
// table, and the currently-executing code region.
type Interpreter struct {
	heap   *Heap
	stack  *ValueStack
	frames callFrames

	globals map[string]Value

	image *Image
	code  []byte
	pc    int

	currentClosure *ClosureObject
	openUpvalues   []*UpvalueObject

	reporter *Reporter
}

// NewInterpreter builds an Interpreter ready to run img.Code from
// offset 0. nurseryCap/retirementCap of 0 select the package defaults;
// maxCallFrames of 0 selects CallFramesMax.
func NewInterpreter(img *Image, nurseryCap, retirementCap uint64, maxCallFrames int) *Interpreter {
	it := &Interpreter{
		stack:   NewValueStack(256),
		frames:  newCallFrames(maxCallFrames),
		globals: make(map[string]Value),
		image:   img,
		code:    img.Code,
	}
	it.heap = NewHeap(nurseryCap, retirementCap, interpreterRoots{it})
	it.reporter = NewReporter(img.ErrorInfo)
	it.reporter.StackTrace = it.stackTrace
	return it
}

// interpreterRoots is the Interpreter's full GC root set: the live
// stack (spec §4.2's roots) plus the global symbol table, which also
// keeps heap objects alive independent of any call frame.
type interpreterRoots struct {
	it *Interpreter
}

func (r interpreterRoots) EachRoot(fn func(Value)) {
	r.it.stack.EachRoot(fn)
	for _, v := range r.it.globals {
		fn(v)
	}
}

// Heap exposes the interpreter's heap, e.g. for --gc-stats and snapshot.
func (it *Interpreter) Heap() *Heap { return it.heap }

// Reporter exposes the interpreter's error reporter so main can install
// a crash-log BeforeExit hook.
func (it *Interpreter) Reporter() *Reporter { return it.reporter }

// raise unwinds directly to the top of Run via panic/recover, the
// idiomatic Go stand-in for a non-returning fatal-error path (spec §7,
// §9): nothing downstream of raise ever resumes.
func (it *Interpreter) raise(err *FatalError) {
	panic(err)
}

func (it *Interpreter) raisef(format string, args ...any) {
	it.raise(Fatalf(format, args...))
}

func (it *Interpreter) raiseAt(errInfoIdx int, format string, args ...any) {
	it.raise(FatalAt(errInfoIdx, format, args...))
}

// stackTrace renders the currently executing call frames, innermost
// first, for Reporter.Report.
func (it *Interpreter) stackTrace() []string {
	names := make([]string, 0, it.frames.depth()+1)
	for i := it.frames.depth() - 1; i >= 0; i-- {
		f := it.frames.frames[i]
		if f.Fn != nil && f.Fn.Name != "" {
			names = append(names, f.Fn.Name)
		} else {
			names = append(names, "<anonymous>")
		}
	}
	names = append(names, "<main>")
	return names
}

// ---------------------------------------------------------------------------
// Primitive code-region decoding
// ---------------------------------------------------------------------------
//
// These mirror reader's decoders in image.go but operate directly on
// the interpreter's running code cursor (spec §4.4 point 4: "the
// interpreter drives decoding from there").

func (it *Interpreter) u8() byte {
	if it.pc >= len(it.code) {
		it.raisef("fell off the end of the code region")
	}
	b := it.code[it.pc]
	it.pc++
	return b
}

func (it *Interpreter) u16() uint16 {
	lo := uint16(it.u8())
	hi := uint16(it.u8())
	return lo | hi<<8
}

func (it *Interpreter) u32() uint32 {
	b0 := uint32(it.u8())
	b1 := uint32(it.u8())
	b2 := uint32(it.u8())
	b3 := uint32(it.u8())
	return b0 | b1<<8 | b2<<16 | b3<<24
}

func (it *Interpreter) bytesN(n int) []byte {
	if it.pc+n > len(it.code) {
		it.raisef("fell off the end of the code region")
	}
	b := make([]byte, n)
	copy(b, it.code[it.pc:it.pc+n])
	it.pc += n
	return b
}

func (it *Interpreter) shortString() []byte { return it.bytesN(int(it.u8())) }
func (it *Interpreter) longString() []byte  { return it.bytesN(int(it.u16())) }

func (it *Interpreter) wireInteger() int64 {
	return int64(int32(it.u32()))
}

func (it *Interpreter) wireFloat() float64 {
	return math.Float64frombits(uint64(it.u32()))
}

// decodeValue decodes one encoded Value record (spec §4.4 point 4, §6),
// allocating through the heap for the Object-bearing variants.
func (it *Interpreter) decodeValue() Value {
	switch tag := it.u8(); tag {
	case tagInteger:
		return IntegerValue(it.wireInteger())
	case tagFloat:
		return FloatValue(it.wireFloat())
	case tagBool:
		return BoolValue(it.u8() == 1)
	case tagEmpty:
		return Empty
	case tagString:
		return it.heap.CreateString(it.longString())
	case tagAtom:
		return it.heap.CreateAtom(it.shortString())
	case tagFunction:
		return it.decodeFunction()
	default:
		it.raisef("unknown value tag %d", tag)
		return Empty
	}
}

// decodeFunction decodes a nested Function record: a short-string name,
// a u16 arity, an Integer-encoded body length, that many raw body
// bytes, and a mandatory EndFn terminator.
func (it *Interpreter) decodeFunction() Value {
	name := it.shortString()
	arity := it.u16()
	bodyLen := it.wireInteger()
	if bodyLen < 0 {
		it.raisef("malformed function %q: negative body length", name)
	}
	body := it.bytesN(int(bodyLen))
	if term := Opcode(it.u8()); term != OpEndFn {
		it.raisef("malformed function %q: missing EndFn terminator", name)
	}
	fn := it.heap.CreateFunction(string(name), arity, body)
	return ObjectValue(fn)
}

// ---------------------------------------------------------------------------
// Upvalue capture
// ---------------------------------------------------------------------------

// captureLocal returns the open upvalue aliasing absolute stack index
// idx, reusing one already open for that slot so two closures capturing
// the same local share one cell (spec §4.5, §8's mutation-sharing
// property).
func (it *Interpreter) captureLocal(idx int) *UpvalueObject {
	for _, uv := range it.openUpvalues {
		if !uv.closed && uv.idx == idx {
			return uv
		}
	}
	uv := it.heap.CreateOpenUpvalue(it.stack, idx)
	it.openUpvalues = append(it.openUpvalues, uv)
	return uv
}

// closeUpvalues closes and forgets every open upvalue aliasing a slot
// at or above threshold, called when the frame owning those slots
// returns (spec §4.5's closure/GC-liveness guarantee).
func (it *Interpreter) closeUpvalues(threshold int) {
	kept := it.openUpvalues[:0]
	for _, uv := range it.openUpvalues {
		if !uv.closed && uv.idx >= threshold {
			uv.Close()
			continue
		}
		kept = append(kept, uv)
	}
	it.openUpvalues = kept
}

// ---------------------------------------------------------------------------
// Value helpers
// ---------------------------------------------------------------------------

func asString(v Value) (*StringObject, bool) {
	if !v.IsObject() {
		return nil, false
	}
	s, ok := v.Object().(*StringObject)
	return s, ok
}

func asAtom(v Value) (*AtomObject, bool) {
	if !v.IsObject() {
		return nil, false
	}
	a, ok := v.Object().(*AtomObject)
	return a, ok
}

func numeric(v Value) (float64, bool) {
	switch {
	case v.IsInteger():
		return float64(v.Int()), true
	case v.IsFloat():
		return v.Float(), true
	default:
		return 0, false
	}
}

// asCallable resolves a Value that should be invoked by CallFn into its
// underlying Function and, when it was reached through a Closure, that
// Closure too.
func asCallable(v Value) (fn *FunctionObject, closure *ClosureObject, ok bool) {
	if !v.IsObject() {
		return nil, nil, false
	}
	switch obj := v.Object().(type) {
	case *FunctionObject:
		return obj, nil, true
	case *ClosureObject:
		return obj.Fn, obj, true
	default:
		return nil, nil, false
	}
}

// ---------------------------------------------------------------------------
// Binary/unary operand helpers
// ---------------------------------------------------------------------------

// binaryOp peeks the top two Values (so both remain stack-rooted across
// any allocation compute performs — spec §8's operand-liveness
// property), replaces them with compute's result, and leaves the result
// on top.
func (it *Interpreter) binaryOp(compute func(left, right Value) Value) {
	right := it.stack.IndexFromTop(0)
	left := it.stack.IndexFromTop(1)
	result := compute(left, right)
	it.stack.Pop()
	it.stack.Pop()
	it.stack.Push(result)
}

// nip implements Nip (k=1) and NipN k (spec §4.5): it saves the current
// top of stack, pops 1+k Values, and re-pushes the saved top, so the k
// Values directly beneath the top are discarded.
func (it *Interpreter) nip(k int) {
	top := it.stack.Last()
	it.stack.Truncate(it.stack.Len() - (1 + k))
	it.stack.Push(top)
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func (it *Interpreter) add(errIdx int, left, right Value) Value {
	if left.IsInteger() && right.IsInteger() {
		return IntegerValue(left.Int() + right.Int())
	}
	if lf, lok := numeric(left); lok {
		if rf, rok := numeric(right); rok {
			return FloatValue(lf + rf)
		}
	}
	if ls, ok := asString(left); ok {
		if rs, ok := asString(right); ok {
			combined := make([]byte, 0, len(ls.Bytes)+len(rs.Bytes))
			combined = append(combined, ls.Bytes...)
			combined = append(combined, rs.Bytes...)
			return it.heap.CreateString(combined)
		}
	}
	it.raiseAt(errIdx, "cannot add %s and %s", left.Kind(), right.Kind())
	return Empty
}

func (it *Interpreter) arith(errIdx int, op Opcode, left, right Value) Value {
	lf, lok := numeric(left)
	rf, rok := numeric(right)
	if !lok || !rok {
		it.raiseAt(errIdx, "cannot apply %s to %s and %s", op, left.Kind(), right.Kind())
	}
	bothInt := left.IsInteger() && right.IsInteger()

	switch op {
	case OpSub:
		if bothInt {
			return IntegerValue(left.Int() - right.Int())
		}
		return FloatValue(lf - rf)
	case OpMul:
		if bothInt {
			return IntegerValue(left.Int() * right.Int())
		}
		return FloatValue(lf * rf)
	case OpDiv:
		if bothInt {
			if right.Int() == 0 {
				it.raiseAt(errIdx, "cannot divide by zero")
			}
			return IntegerValue(left.Int() / right.Int())
		}
		if rf == 0 {
			it.raiseAt(errIdx, "cannot divide by zero")
		}
		return FloatValue(lf / rf)
	case OpMod:
		if bothInt {
			if right.Int() == 0 {
				it.raiseAt(errIdx, "cannot mod by zero")
			}
			return IntegerValue(left.Int() % right.Int())
		}
		if rf == 0 {
			it.raiseAt(errIdx, "cannot mod by zero")
		}
		return FloatValue(math.Mod(lf, rf))
	default:
		it.raisef("not an arithmetic opcode: %s", op)
		return Empty
	}
}

// ---------------------------------------------------------------------------
// Equality and ordering
// ---------------------------------------------------------------------------

func (it *Interpreter) equal(errIdx int, left, right Value) bool {
	if left.IsEmpty() || right.IsEmpty() {
		return true
	}
	if left.IsInteger() && right.IsInteger() {
		return left.Int() == right.Int()
	}
	if lf, lok := numeric(left); lok {
		if rf, rok := numeric(right); rok {
			return lf == rf
		}
	}
	if left.IsBool() && right.IsBool() {
		return left.Bool() == right.Bool()
	}
	if ls, ok := asString(left); ok {
		if rs, ok := asString(right); ok {
			return string(ls.Bytes) == string(rs.Bytes)
		}
	}
	if la, ok := asAtom(left); ok {
		if ra, ok := asAtom(right); ok {
			return string(la.Bytes) == string(ra.Bytes)
		}
	}
	it.raiseAt(errIdx, "cannot compare %s and %s", left.Kind(), right.Kind())
	return false
}

// compare is the three-way ordering (-1, 0, 1) used by LT/LTE/GT/GTE:
// numeric promotion or byte-lexicographic comparison of like
// String/Atom operands applies, and any other pair is fatal. Bool is not
// an orderable pair. The Empty-wildcard rule (an Empty operand on either
// side is always "in order") is applied by the LT/LTE/GT/GTE cases in
// Run before compare is called.
func (it *Interpreter) compare(errIdx int, left, right Value) int {
	if lf, lok := numeric(left); lok {
		if rf, rok := numeric(right); rok {
			switch {
			case lf < rf:
				return -1
			case lf > rf:
				return 1
			default:
				return 0
			}
		}
	}
	if ls, ok := asString(left); ok {
		if rs, ok := asString(right); ok {
			return compareBytes(ls.Bytes, rs.Bytes)
		}
	}
	if la, ok := asAtom(left); ok {
		if ra, ok := asAtom(right); ok {
			return compareBytes(la.Bytes, ra.Bytes)
		}
	}
	it.raiseAt(errIdx, "cannot order %s and %s", left.Kind(), right.Kind())
	return 0
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run executes the image's code region from the beginning until Halt or
// a FatalError. On a FatalError it reports the error and returns a
// nonzero exit code (production Reporter.Exit terminates the process
// directly and Run never returns at all).
func (it *Interpreter) Run() (exitCode int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		fe, ok := r.(*FatalError)
		if !ok {
			panic(r)
		}
		it.reporter.Report(fe)
		exitCode = 1
	}()

	for {
		op := Opcode(it.u8())
		switch op {

		case OpHalt:
			return 0

		case OpLoadNeg1:
			it.stack.Push(IntegerValue(-1))
		case OpLoad0:
			it.stack.Push(IntegerValue(0))
		case OpLoad1:
			it.stack.Push(IntegerValue(1))
		case OpLoad2:
			it.stack.Push(IntegerValue(2))
		case OpLoad3:
			it.stack.Push(IntegerValue(3))
		case OpLoad4:
			it.stack.Push(IntegerValue(4))
		case OpLoad5:
			it.stack.Push(IntegerValue(5))

		case OpLoad:
			it.stack.Push(it.decodeValue())

		case OpPush:
			n := int(it.u8())
			for i := 0; i < n; i++ {
				it.stack.Push(it.decodeValue())
			}

		case OpPop:
			it.stack.Truncate(it.stack.Len() - 1)

		case OpPopN:
			k := int(it.u8())
			it.stack.Truncate(it.stack.Len() - k)

		case OpNip:
			it.nip(1)

		case OpNipN:
			it.nip(int(it.u8()))

		case OpDup:
			it.stack.Push(it.stack.Last())

		case OpAdd:
			errIdx := int(it.u16())
			it.binaryOp(func(l, r Value) Value { return it.add(errIdx, l, r) })

		case OpSub, OpMul, OpDiv, OpMod:
			errIdx := int(it.u16())
			it.binaryOp(func(l, r Value) Value { return it.arith(errIdx, op, l, r) })

		case OpEq:
			errIdx := int(it.u16())
			it.binaryOp(func(l, r Value) Value { return BoolValue(it.equal(errIdx, l, r)) })

		case OpNEq:
			errIdx := int(it.u16())
			it.binaryOp(func(l, r Value) Value { return BoolValue(!it.equal(errIdx, l, r)) })

		case OpLT:
			errIdx := int(it.u16())
			it.binaryOp(func(l, r Value) Value {
				if l.IsEmpty() || r.IsEmpty() {
					return BoolValue(true)
				}
				return BoolValue(it.compare(errIdx, l, r) < 0)
			})

		case OpLTE:
			errIdx := int(it.u16())
			it.binaryOp(func(l, r Value) Value {
				if l.IsEmpty() || r.IsEmpty() {
					return BoolValue(true)
				}
				return BoolValue(it.compare(errIdx, l, r) <= 0)
			})

		case OpGT:
			errIdx := int(it.u16())
			it.binaryOp(func(l, r Value) Value {
				if l.IsEmpty() || r.IsEmpty() {
					return BoolValue(true)
				}
				return BoolValue(it.compare(errIdx, l, r) > 0)
			})

		case OpGTE:
			errIdx := int(it.u16())
			it.binaryOp(func(l, r Value) Value {
				if l.IsEmpty() || r.IsEmpty() {
					return BoolValue(true)
				}
				return BoolValue(it.compare(errIdx, l, r) >= 0)
			})

		case OpAnd:
			it.binaryOp(func(l, r Value) Value { return BoolValue(l.Truthy() && r.Truthy()) })

		case OpOr:
			it.binaryOp(func(l, r Value) Value { return BoolValue(l.Truthy() || r.Truthy()) })

		case OpNot:
			v := it.stack.Last()
			it.stack.Truncate(it.stack.Len() - 1)
			it.stack.Push(BoolValue(!v.Truthy()))

		case OpNegate:
			errIdx := int(it.u16())
			v := it.stack.Last()
			var result Value
			switch {
			case v.IsInteger():
				result = IntegerValue(-v.Int())
			case v.IsFloat():
				result = FloatValue(-v.Float())
			default:
				it.raiseAt(errIdx, "cannot negate %s", v.Kind())
			}
			it.stack.Truncate(it.stack.Len() - 1)
			it.stack.Push(result)

		case OpJmp:
			delta := int32(it.u32())
			it.pc += int(delta)

		case OpJz:
			delta := int32(it.u32())
			v := it.stack.Last()
			it.stack.Truncate(it.stack.Len() - 1)
			if !v.Truthy() {
				it.pc += int(delta)
			}

		case OpJnz:
			delta := int32(it.u32())
			v := it.stack.Last()
			it.stack.Truncate(it.stack.Len() - 1)
			if v.Truthy() {
				it.pc += int(delta)
			}

		case OpInitList:
			it.initSeq(int(it.u32()), it.heap.CreateList)

		case OpInitTup:
			it.initSeq(int(it.u32()), it.heap.CreateTuple)

		case OpInitTable:
			n := int(it.u32())
			tblVal := it.heap.CreateTable()
			tbl := tblVal.Object().(*TableObject)
			for i := 0; i < n; i++ {
				key := it.shortString()
				val := it.stack.Last()
				it.stack.Truncate(it.stack.Len() - 1)
				tbl.Entries[string(key)] = val
			}
			it.stack.Push(tblVal)

		case OpIdxListOrTup:
			errIdx := int(it.u16())
			idx := it.wireInteger()
			container := it.stack.Last()
			result := it.indexSeq(errIdx, container, IntegerValue(idx))
			it.stack.Truncate(it.stack.Len() - 1)
			it.stack.Push(result)

		case OpSetList:
			errIdx := int(it.u16())
			idx := it.wireInteger()
			value := it.stack.IndexFromTop(0)
			container := it.stack.IndexFromTop(1)
			it.setListElem(errIdx, container, IntegerValue(idx), value)
			it.stack.Pop()
			it.stack.Pop()

		case OpGetMember:
			errIdx := int(it.u16())
			key := it.shortString()
			container := it.stack.Last()
			tbl, ok := container.Object().(*TableObject)
			if !container.IsObject() || !ok {
				it.raiseAt(errIdx, "cannot read member of %s", container.Kind())
			}
			val, present := tbl.Entries[string(key)]
			if !present {
				it.raiseAt(errIdx, "table has no member %q", key)
			}
			it.stack.Truncate(it.stack.Len() - 1)
			it.stack.Push(val)

		case OpSetMember:
			errIdx := int(it.u16())
			key := it.shortString()
			value := it.stack.IndexFromTop(0)
			container := it.stack.IndexFromTop(1)
			tbl, ok := container.Object().(*TableObject)
			if !container.IsObject() || !ok {
				it.raiseAt(errIdx, "cannot set member of %s", container.Kind())
			}
			tbl.Entries[string(key)] = value
			it.stack.Pop()
			it.stack.Pop()
			it.stack.Push(value)

		case OpDefGlobal:
			errIdx := int(it.u16())
			name := string(it.shortString())
			val := it.stack.Last()
			if _, exists := it.globals[name]; exists {
				it.raiseAt(errIdx, "global %q is already defined", name)
			}
			it.globals[name] = val
			it.stack.Truncate(it.stack.Len() - 1)

		case OpGetGlobal:
			errIdx := int(it.u16())
			name := string(it.shortString())
			val, ok := it.globals[name]
			if !ok {
				it.raiseAt(errIdx, "global %q is not defined", name)
			}
			it.stack.Push(val)

		case OpSetGlobal:
			errIdx := int(it.u16())
			name := string(it.shortString())
			val := it.stack.Last()
			if _, ok := it.globals[name]; !ok {
				it.raiseAt(errIdx, "global %q is not defined", name)
			}
			it.globals[name] = val
			it.stack.Truncate(it.stack.Len() - 1)

		case OpGetLocal:
			i := int(it.u16())
			it.stack.Push(it.stack.IndexFromBase(i))

		case OpSetLocal:
			i := int(it.u16())
			it.stack.SetIndexFromBase(i, it.stack.Last())

		case OpCallFn:
			it.execCall()

		case OpRetFn:
			it.execReturn()

		case OpMakeClosure:
			it.execMakeClosure()

		case OpGetUpvalue:
			i := int(it.u16())
			if it.currentClosure == nil {
				it.raisef("GetUpvalue outside a closure")
			}
			it.stack.Push(it.currentClosure.Upvalues[i].Get())

		case OpSetUpvalue:
			i := int(it.u16())
			if it.currentClosure == nil {
				it.raisef("SetUpvalue outside a closure")
			}
			it.currentClosure.Upvalues[i].Set(it.stack.Last())

		case OpEndFn:
			it.raisef("EndFn reached as an executable instruction")

		default:
			it.raisef("unknown opcode %d", byte(op))
		}
	}
}

// initSeq implements the common shape of InitList/InitTup (spec §4.5):
// the N operand-stack values are peeked (not popped) so they remain
// rooted across the allocation, the sequence is built and pushed, and
// only then are the originals discarded. Element order is the reverse
// of pop order, i.e. the first pushed is element 0.
func (it *Interpreter) initSeq(n int, create func([]Value) Value) {
	elems := make([]Value, n)
	for i := 0; i < n; i++ {
		elems[n-1-i] = it.stack.IndexFromTop(i)
	}
	seqVal := create(elems)
	it.stack.Truncate(it.stack.Len() - n)
	it.stack.Push(seqVal)
}

// indexSeq implements IdxListOrTup: negative indices count from the end.
func (it *Interpreter) indexSeq(errIdx int, container, index Value) Value {
	if !index.IsInteger() {
		it.raiseAt(errIdx, "index must be an Integer, got %s", index.Kind())
	}
	elems, ok := seqElems(container)
	if !ok {
		it.raiseAt(errIdx, "cannot index %s", container.Kind())
	}
	i := resolveIndex(index.Int(), len(elems))
	if i < 0 || i >= len(elems) {
		it.raiseAt(errIdx, "index %d out of range (length %d)", index.Int(), len(elems))
	}
	return elems[i]
}

func (it *Interpreter) setListElem(errIdx int, container, index, value Value) {
	if !index.IsInteger() {
		it.raiseAt(errIdx, "index must be an Integer, got %s", index.Kind())
	}
	list, ok := container.Object().(*ListObject)
	if !container.IsObject() || !ok {
		it.raiseAt(errIdx, "cannot set an element of %s", container.Kind())
	}
	i := resolveIndex(index.Int(), len(list.Elems))
	if i < 0 || i >= len(list.Elems) {
		it.raiseAt(errIdx, "index %d out of range (length %d)", index.Int(), len(list.Elems))
	}
	list.Elems[i] = value
}

func seqElems(v Value) ([]Value, bool) {
	if !v.IsObject() {
		return nil, false
	}
	switch obj := v.Object().(type) {
	case *ListObject:
		return obj.Elems, true
	case *TupleObject:
		return obj.Elems, true
	default:
		return nil, false
	}
}

func resolveIndex(i int64, length int) int {
	if i < 0 {
		return length + int(i)
	}
	return int(i)
}

// ---------------------------------------------------------------------------
// Calls, returns, closures
// ---------------------------------------------------------------------------

func (it *Interpreter) execCall() {
	errIdx := int(it.u16())
	argCount := int(it.u16())

	callee := it.stack.IndexFromTop(argCount)
	fn, closure, ok := asCallable(callee)
	if !ok {
		it.raiseAt(errIdx, "cannot call %s", callee.Kind())
	}
	if int(fn.Arity) != argCount {
		it.raiseAt(errIdx, "%s expects %d arguments, got %d", fn.Name, fn.Arity, argCount)
	}

	if err := it.frames.push(CallFrame{
		ReturnPC:    it.pc,
		PrevBase:    it.stack.FrameBase(),
		CallerCode:  it.code,
		Fn:          fn,
		Closure:     closure,
		PrevClosure: it.currentClosure,
	}); err != nil {
		it.raise(err)
	}

	it.stack.SetFrameBase(argCount)
	it.currentClosure = closure
	it.code = fn.Code
	it.pc = 0
}

func (it *Interpreter) execReturn() {
	it.closeUpvalues(it.stack.FrameBase())
	frame := it.frames.pop()
	it.stack.RestoreFrameBase(frame.PrevBase)
	it.code = frame.CallerCode
	it.pc = frame.ReturnPC
	it.currentClosure = frame.PrevClosure
}

func (it *Interpreter) execMakeClosure() {
	errIdx := int(it.u16())
	upvalCount := int(it.u8())

	type descriptor struct {
		isLocal bool
		index   int
	}
	descriptors := make([]descriptor, upvalCount)
	for i := range descriptors {
		isLocal := it.u8() != 0
		index := int(it.u16())
		descriptors[i] = descriptor{isLocal: isLocal, index: index}
	}

	calleeVal := it.stack.Last()
	fn, _, ok := asCallable(calleeVal)
	if !ok {
		it.raiseAt(errIdx, "MakeClosure target is not a function, got %s", calleeVal.Kind())
	}

	upvalues := make([]*UpvalueObject, upvalCount)
	for i, d := range descriptors {
		if d.isLocal {
			upvalues[i] = it.captureLocal(it.stack.FrameBase() + d.index)
			continue
		}
		if it.currentClosure == nil {
			it.raiseAt(errIdx, "MakeClosure references an enclosing upvalue outside a closure")
		}
		upvalues[i] = it.currentClosure.Upvalues[d.index]
	}

	closureVal := it.heap.CreateClosure(fn, upvalues)
	it.stack.Truncate(it.stack.Len() - 1)
	it.stack.Push(closureVal)
}
