package vm

import "math"

// ImageWriter builds a well-formed binary image byte-for-byte, the
// mechanical inverse of reader in image.go. It exists for test
// fixtures and tooling, not for the interpreter itself (spec §4.4).
type ImageWriter struct {
	errorInfo []ErrorInfo
	code      []byte
}

// NewImageWriter starts a writer with the given error-info table.
func NewImageWriter(errorInfo []ErrorInfo) *ImageWriter {
	return &ImageWriter{errorInfo: errorInfo}
}

// Code appends raw, already-assembled code bytes to the code region.
func (w *ImageWriter) Code(b ...byte) *ImageWriter {
	w.code = append(w.code, b...)
	return w
}

// U16 appends a little-endian u16.
func (w *ImageWriter) U16(v uint16) *ImageWriter {
	return w.Code(byte(v), byte(v>>8))
}

// U32 appends a little-endian u32.
func (w *ImageWriter) U32(v uint32) *ImageWriter {
	return w.Code(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// Integer appends the 4-byte little-endian Integer wire encoding.
func (w *ImageWriter) Integer(v int32) *ImageWriter {
	return w.U32(uint32(v))
}

// Float appends the source's deliberately lossy float encoding: the low
// 32 bits of bits, bit-copied raw (spec §4.4, §9).
func (w *ImageWriter) Float(bits float64) *ImageWriter {
	raw := uint32(math.Float64bits(bits))
	return w.U32(raw)
}

// ShortString appends a u8-length-prefixed byte sequence.
func (w *ImageWriter) ShortString(s string) *ImageWriter {
	w.Code(byte(len(s)))
	return w.Code([]byte(s)...)
}

// LongString appends a u16-length-prefixed byte sequence.
func (w *ImageWriter) LongString(s string) *ImageWriter {
	w.U16(uint16(len(s)))
	return w.Code([]byte(s)...)
}

// Value appends one encoded Value record.
func (w *ImageWriter) Value(v Value) *ImageWriter {
	switch v.Kind() {
	case KindInteger:
		w.Code(tagInteger)
		return w.Integer(int32(v.Int()))
	case KindFloat:
		w.Code(tagFloat)
		return w.Float(v.Float())
	case KindBool:
		w.Code(tagBool)
		if v.Bool() {
			return w.Code(1)
		}
		return w.Code(0)
	case KindEmpty:
		return w.Code(tagEmpty)
	case KindObject:
		switch obj := v.Object().(type) {
		case *StringObject:
			w.Code(tagString)
			return w.LongString(string(obj.Bytes))
		case *AtomObject:
			w.Code(tagAtom)
			return w.ShortString(string(obj.Bytes))
		default:
			panic("ImageWriter.Value: unsupported object variant for encoding")
		}
	default:
		panic("ImageWriter.Value: unknown Kind")
	}
}

// Function appends a nested Function record: name, arity, the
// Integer-encoded body length, the body bytes themselves, and the EndFn
// terminator.
func (w *ImageWriter) Function(name string, arity uint16, body []byte) *ImageWriter {
	w.ShortString(name)
	w.U16(arity)
	w.Integer(int32(len(body)))
	w.Code(body...)
	return w.Code(byte(OpEndFn))
}

// CodeBytes returns the raw code bytes assembled so far, e.g. to build
// a nested Function body with a second ImageWriter before passing it to
// Function.
func (w *ImageWriter) CodeBytes() []byte { return w.code }

// Bytes assembles the complete image: magic, version, error-info table,
// then the accumulated code region.
func (w *ImageWriter) Bytes() []byte {
	var out []byte
	out = append(out, Magic[:]...)
	out = append(out, RuntimeVersion[:]...)

	lo := byte(len(w.errorInfo))
	hi := byte(len(w.errorInfo) >> 8)
	out = append(out, lo, hi)
	for _, info := range w.errorInfo {
		lineLo := byte(info.Line)
		lineHi := byte(info.Line >> 8)
		out = append(out, lineLo, lineHi)
		textLenLo := byte(len(info.Text))
		textLenHi := byte(len(info.Text) >> 8)
		out = append(out, textLenLo, textLenHi)
		out = append(out, []byte(info.Text)...)
	}

	out = append(out, w.code...)
	return out
}
