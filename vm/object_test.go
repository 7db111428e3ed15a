package vm

import "testing"

func TestListRender(t *testing.T) {
	l := &ListObject{Elems: []Value{IntegerValue(1), IntegerValue(2)}}
	if got := l.render(false); got != "[1, 2]" {
		t.Errorf("render = %q", got)
	}
}

func TestTupleRender(t *testing.T) {
	tup := &TupleObject{Elems: []Value{IntegerValue(1), BoolValue(true)}}
	if got := tup.render(false); got != "<1, true>" {
		t.Errorf("render = %q", got)
	}
}

func TestTableEntries(t *testing.T) {
	tbl := newTableObject()
	tbl.Entries["x"] = IntegerValue(5)
	if got := tbl.Entries["x"]; got.Int() != 5 {
		t.Errorf("Entries[x] = %v", got)
	}
}

func TestUpvalueOpenAliasesStack(t *testing.T) {
	stack := NewValueStack(4)
	stack.Push(IntegerValue(1))
	stack.Push(IntegerValue(10))

	uv := &UpvalueObject{stack: stack, idx: 1}
	if got := uv.Get().Int(); got != 10 {
		t.Fatalf("Get() = %d, want 10", got)
	}

	stack.SetIndexFromBase(1, IntegerValue(99))
	if got := uv.Get().Int(); got != 99 {
		t.Fatalf("open upvalue did not observe mutation: Get() = %d, want 99", got)
	}

	uv.Close()
	stack.SetIndexFromBase(1, IntegerValue(7))
	if got := uv.Get().Int(); got != 99 {
		t.Fatalf("closed upvalue should retain its snapshot: Get() = %d, want 99", got)
	}
}

func TestUpvalueSetWritesThroughWhenOpen(t *testing.T) {
	stack := NewValueStack(4)
	stack.Push(IntegerValue(1))

	uv := &UpvalueObject{stack: stack, idx: 0}
	uv.Set(IntegerValue(42))
	if got := stack.IndexFromBase(0).Int(); got != 42 {
		t.Fatalf("Set on an open upvalue should write through: stack[0] = %d, want 42", got)
	}
}

func TestClosureMarkChildren(t *testing.T) {
	h := NewHeap(0, 0, &fakeRoots{})
	fn := h.CreateFunction("f", 0, nil)
	stack := NewValueStack(1)
	stack.Push(IntegerValue(0)) // the live slot the open upvalue aliases
	uv := h.CreateOpenUpvalue(stack, 0)
	closure := &ClosureObject{Fn: fn, Upvalues: []*UpvalueObject{uv}}

	h.mark(ObjectValue(closure))

	if !fn.header().isMarked() {
		t.Error("ClosureObject.markChildren did not mark its Function")
	}
	if !uv.header().isMarked() {
		t.Error("ClosureObject.markChildren did not mark its Upvalue")
	}
}

type fakeRoots struct{ values []Value }

func (r *fakeRoots) EachRoot(fn func(Value)) {
	for _, v := range r.values {
		fn(v)
	}
}
