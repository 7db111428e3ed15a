package vm

import "testing"

func TestValueStackPushPop(t *testing.T) {
	s := NewValueStack(4)
	s.Push(IntegerValue(1))
	s.Push(IntegerValue(2))

	if got := s.Pop().Int(); got != 2 {
		t.Fatalf("Pop() = %d, want 2", got)
	}
	if got := s.Pop().Int(); got != 1 {
		t.Fatalf("Pop() = %d, want 1", got)
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestValueStackIndexFromBaseAndTop(t *testing.T) {
	s := NewValueStack(4)
	s.Push(IntegerValue(10))
	s.Push(IntegerValue(20))
	s.Push(IntegerValue(30))
	s.SetFrameBase(2) // base = 3-2-1 = 0

	if got := s.IndexFromBase(0).Int(); got != 10 {
		t.Errorf("IndexFromBase(0) = %d, want 10", got)
	}
	if got := s.IndexFromTop(0).Int(); got != 30 {
		t.Errorf("IndexFromTop(0) = %d, want 30", got)
	}
	if got := s.IndexFromTop(2).Int(); got != 10 {
		t.Errorf("IndexFromTop(2) = %d, want 10", got)
	}
}

func TestValueStackSetIndexFromBaseDoesNotPop(t *testing.T) {
	s := NewValueStack(4)
	s.Push(IntegerValue(1))
	s.SetIndexFromBase(0, IntegerValue(99))

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (SetIndexFromBase must not change height)", s.Len())
	}
	if got := s.Last().Int(); got != 99 {
		t.Errorf("Last() = %d, want 99", got)
	}
}

func TestValueStackTruncateZeroesSlots(t *testing.T) {
	obj := ObjectValue(&StringObject{Bytes: []byte("x")})
	s := NewValueStack(4)
	s.Push(obj)
	s.Truncate(0)

	// The backing array slot must be zeroed, not just the length
	// shrunk, so the GC does not see a stale reference as a root.
	if len(s.values) != 0 {
		t.Fatalf("Truncate did not shrink the stack")
	}
	full := s.values[:1]
	if full[0].Object() != nil {
		t.Fatalf("Truncate left a stale Object reference in the backing array")
	}
}

func TestValueStackFrameBaseRoundTrip(t *testing.T) {
	s := NewValueStack(4)
	s.Push(IntegerValue(1))
	s.Push(IntegerValue(2)) // callable + 1 arg
	prev := s.SetFrameBase(1)
	s.RestoreFrameBase(prev)
	if s.FrameBase() != 0 {
		t.Errorf("FrameBase() = %d, want 0 after restore", s.FrameBase())
	}
}

func TestValueStackEachRoot(t *testing.T) {
	s := NewValueStack(4)
	s.Push(IntegerValue(1))
	s.Push(IntegerValue(2))

	var seen []int64
	s.EachRoot(func(v Value) { seen = append(seen, v.Int()) })

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("EachRoot visited %v, want [1 2]", seen)
	}
}
