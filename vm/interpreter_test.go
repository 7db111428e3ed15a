package vm

import (
	"bytes"
	"testing"
)

// newTestInterpreter builds an Interpreter over w's assembled image,
// with the reporter wired to a buffer instead of os.Stderr/os.Exit so a
// fatal error can be observed rather than terminating the test binary.
func newTestInterpreter(w *ImageWriter) (*Interpreter, *bytes.Buffer) {
	img, err := ReadImage(w.Bytes())
	if err != nil {
		panic(err)
	}
	it := NewInterpreter(img, 0, 0, 0)
	var out bytes.Buffer
	it.reporter.Out = &out
	it.reporter.Exit = func(code int) {}
	return it, &out
}

func TestInterpreterAddIntegers(t *testing.T) {
	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(IntegerValue(2))
	w.Code(byte(OpLoad)).Value(IntegerValue(3))
	w.Code(byte(OpAdd)).U16(0)
	w.Code(byte(OpHalt))

	it, _ := newTestInterpreter(w)
	if code := it.Run(); code != 0 {
		t.Fatalf("Run() exit code = %d, want 0", code)
	}
	if got := it.stack.Last().Int(); got != 5 {
		t.Errorf("result = %d, want 5", got)
	}
}

func TestInterpreterAddPromotesToFloat(t *testing.T) {
	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(IntegerValue(2))
	w.Code(byte(OpLoad)).Value(FloatValue(0.5))
	w.Code(byte(OpAdd)).U16(0)
	w.Code(byte(OpHalt))

	it, _ := newTestInterpreter(w)
	it.Run()
	// The 4-byte float wire encoding keeps only the low 32 bits of 0.5's
	// bit pattern, which are all zero, so the loaded operand is 0.0 (see
	// TestFloatWireIsLossyBitCopy) and the promoted sum is Float 2.0.
	if got := it.stack.Last().Float(); got != 2 {
		t.Errorf("result = %v, want 2", got)
	}
}

func TestInterpreterStringConcatenation(t *testing.T) {
	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(it_mustString("foo"))
	w.Code(byte(OpLoad)).Value(it_mustString("bar"))
	w.Code(byte(OpAdd)).U16(0)
	w.Code(byte(OpHalt))

	it, _ := newTestInterpreter(w)
	it.Run()
	s, ok := it.stack.Last().Object().(*StringObject)
	if !ok {
		t.Fatalf("result is not a String")
	}
	if string(s.Bytes) != "foobar" {
		t.Errorf("result = %q, want %q", s.Bytes, "foobar")
	}
}

func TestInterpreterDivideByZeroIsFatal(t *testing.T) {
	w := NewImageWriter([]ErrorInfo{{Line: 1, Text: "1 / 0"}})
	w.Code(byte(OpLoad)).Value(IntegerValue(1))
	w.Code(byte(OpLoad)).Value(IntegerValue(0))
	w.Code(byte(OpDiv)).U16(0)
	w.Code(byte(OpHalt))

	it, out := newTestInterpreter(w)
	if code := it.Run(); code != 1 {
		t.Fatalf("Run() exit code = %d, want 1", code)
	}
	if !bytes.Contains(out.Bytes(), []byte("divide by zero")) {
		t.Errorf("reported message = %q, expected it to mention divide by zero", out.String())
	}
	if !bytes.Contains(out.Bytes(), []byte("1 / 0")) {
		t.Errorf("reported output %q did not include the offending source line", out.String())
	}
}

func TestInterpreterListIndex(t *testing.T) {
	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(IntegerValue(10))
	w.Code(byte(OpLoad)).Value(IntegerValue(20))
	w.Code(byte(OpLoad)).Value(IntegerValue(30))
	w.Code(byte(OpInitList)).U32(3)
	w.Code(byte(OpIdxListOrTup)).U16(0).Integer(1)
	w.Code(byte(OpHalt))

	it, _ := newTestInterpreter(w)
	it.Run()
	if got := it.stack.Last().Int(); got != 20 {
		t.Errorf("list[1] = %d, want 20 (first pushed is element 0)", got)
	}
}

func TestInterpreterListNegativeIndex(t *testing.T) {
	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(IntegerValue(10))
	w.Code(byte(OpLoad)).Value(IntegerValue(20))
	w.Code(byte(OpInitList)).U32(2)
	w.Code(byte(OpIdxListOrTup)).U16(0).Integer(-1)
	w.Code(byte(OpHalt))

	it, _ := newTestInterpreter(w)
	it.Run()
	if got := it.stack.Last().Int(); got != 20 {
		t.Errorf("list[-1] = %d, want 20", got)
	}
}

func TestInterpreterSetListElement(t *testing.T) {
	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(IntegerValue(10))
	w.Code(byte(OpLoad)).Value(IntegerValue(20))
	w.Code(byte(OpLoad)).Value(IntegerValue(30))
	w.Code(byte(OpInitList)).U32(3)
	w.Code(byte(OpDup)) // keep a reference to the list past SetList's pops
	w.Code(byte(OpLoad)).Value(IntegerValue(99))
	w.Code(byte(OpSetList)).U16(0).Integer(1)
	w.Code(byte(OpIdxListOrTup)).U16(0).Integer(1)
	w.Code(byte(OpHalt))

	it, _ := newTestInterpreter(w)
	it.Run()
	if got := it.stack.Last().Int(); got != 99 {
		t.Errorf("list[1] after SetList = %d, want 99", got)
	}
}

func TestInterpreterGetMemberMissingKeyIsFatal(t *testing.T) {
	w := NewImageWriter([]ErrorInfo{{Line: 1, Text: "t.missing"}})
	w.Code(byte(OpInitTable)).U32(0)
	w.Code(byte(OpGetMember)).U16(0).ShortString("missing")
	w.Code(byte(OpHalt))

	it, out := newTestInterpreter(w)
	if code := it.Run(); code != 1 {
		t.Fatalf("Run() exit code = %d, want 1", code)
	}
	if !bytes.Contains(out.Bytes(), []byte("missing")) {
		t.Errorf("reported message = %q, expected it to mention the missing key", out.String())
	}
}

func TestInterpreterGlobalRedefinitionIsFatal(t *testing.T) {
	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(IntegerValue(1))
	w.Code(byte(OpDefGlobal)).U16(0).ShortString("x")
	w.Code(byte(OpLoad)).Value(IntegerValue(2))
	w.Code(byte(OpDefGlobal)).U16(0).ShortString("x")
	w.Code(byte(OpHalt))

	it, out := newTestInterpreter(w)
	if code := it.Run(); code != 1 {
		t.Fatalf("Run() exit code = %d, want 1", code)
	}
	if !bytes.Contains(out.Bytes(), []byte("already defined")) {
		t.Errorf("reported message = %q", out.String())
	}
}

func TestInterpreterGlobalGetSet(t *testing.T) {
	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(IntegerValue(1))
	w.Code(byte(OpDefGlobal)).U16(0).ShortString("x")
	w.Code(byte(OpLoad)).Value(IntegerValue(9))
	w.Code(byte(OpSetGlobal)).U16(0).ShortString("x")
	w.Code(byte(OpGetGlobal)).U16(0).ShortString("x")
	w.Code(byte(OpHalt))

	it, _ := newTestInterpreter(w)
	it.Run()
	if got := it.stack.Last().Int(); got != 9 {
		t.Errorf("x = %d, want 9", got)
	}
}

func TestInterpreterGCSurvivalAcrossCollections(t *testing.T) {
	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(it_mustString("alive"))
	w.Code(byte(OpDefGlobal)).U16(0).ShortString("kept")
	w.Code(byte(OpHalt))

	it, _ := newTestInterpreter(w)
	it.Run()

	it.heap.Collect()
	it.heap.Collect()

	val := it.globals["kept"]
	s, ok := val.Object().(*StringObject)
	if !ok {
		t.Fatalf("global 'kept' was collected")
	}
	if string(s.Bytes) != "alive" {
		t.Fatalf("global 'kept' payload corrupted: %q", s.Bytes)
	}
}

// TestInterpreterClosureSharedMutableUpvalue builds, by hand, a closure
// capturing a local by reference and calls it twice through a global,
// checking that both calls mutate the same aliased stack slot (spec
// §4.5's upvalue-sharing property) rather than each seeing its own copy.
func TestInterpreterClosureSharedMutableUpvalue(t *testing.T) {
	body := NewImageWriter(nil)
	body.Code(byte(OpGetUpvalue)).U16(0)
	body.Code(byte(OpLoad)).Value(IntegerValue(1))
	body.Code(byte(OpAdd)).U16(0)
	body.Code(byte(OpSetUpvalue)).U16(0)
	body.Code(byte(OpSetLocal)).U16(0)
	body.Code(byte(OpRetFn))

	w := NewImageWriter(nil)
	w.Code(byte(OpLoad)).Value(IntegerValue(0)) // the captured counter, local 0
	w.Code(byte(OpLoad)).Code(tagFunction)
	w.Function("increment", 0, body.CodeBytes())
	w.Code(byte(OpMakeClosure)).U16(0).Code(1).Code(1).U16(0) // 1 upvalue: is_local=1, index=0
	w.Code(byte(OpDefGlobal)).U16(0).ShortString("inc")

	w.Code(byte(OpGetGlobal)).U16(0).ShortString("inc")
	w.Code(byte(OpCallFn)).U16(0).U16(0)
	w.Code(byte(OpNipN)).Code(1)

	w.Code(byte(OpGetGlobal)).U16(0).ShortString("inc")
	w.Code(byte(OpCallFn)).U16(0).U16(0)
	w.Code(byte(OpNipN)).Code(1)

	w.Code(byte(OpHalt))

	it, out := newTestInterpreter(w)
	if code := it.Run(); code != 0 {
		t.Fatalf("Run() exit code = %d, want 0 (output: %s)", code, out.String())
	}
	if got := it.stack.IndexFromBase(0).Int(); got != 2 {
		t.Errorf("shared counter = %d, want 2 after two increments", got)
	}
}

// it_mustString is a test-only helper building a String Value without
// going through a Heap (the ImageWriter.Value encoder only inspects its
// Bytes field).
func it_mustString(s string) Value {
	return ObjectValue(&StringObject{Bytes: []byte(s)})
}
