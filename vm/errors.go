package vm

import (
	"fmt"
	"io"
	"os"
)

// ErrorInfo is one entry of the image's error-info table: a source
// line number and the text of that line, referenced by instructions
// via a 16-bit index (spec §4.4, §6).
type ErrorInfo struct {
	Line int
	Text string
}

// FatalError is the single error type every fallible operation in the
// interpreter produces. There is no structured recovery (spec §7):
// every FatalError unwinds straight to Report and a process exit.
type FatalError struct {
	Message string
	// ErrInfoIdx is -1 when the failing opcode carries no error-info
	// operand (e.g. a decode error encountered before any instruction
	// runs).
	ErrInfoIdx int
}

func (e *FatalError) Error() string { return e.Message }

// Fatalf builds a FatalError with no associated source location.
func Fatalf(format string, args ...any) *FatalError {
	return &FatalError{Message: fmt.Sprintf(format, args...), ErrInfoIdx: -1}
}

// FatalAt builds a FatalError tied to the given error-info index.
func FatalAt(errInfoIdx int, format string, args ...any) *FatalError {
	return &FatalError{Message: fmt.Sprintf(format, args...), ErrInfoIdx: errInfoIdx}
}

// Reporter renders a FatalError the way spec §4.6 and §7 mandate and
// terminates the process. It is the runtime's only error sink; nothing
// recovers from a FatalError once it reaches here.
type Reporter struct {
	ErrorInfo []ErrorInfo
	// StackTrace, if non-nil, is called to obtain the current call
	// stack's frame names, innermost first, at the moment of the fatal
	// error.
	StackTrace func() []string
	// BeforeExit, if set, runs just before Exit (used to flush logs
	// / persist a crash report). It receives the rendered message.
	BeforeExit func(err *FatalError, rendered string)
	// Exit defaults to os.Exit; tests override it to avoid terminating
	// the test binary.
	Exit func(code int)
	Out  io.Writer
}

// NewReporter creates a Reporter writing to os.Stderr and exiting via
// os.Exit, the production defaults.
func NewReporter(errInfo []ErrorInfo) *Reporter {
	return &Reporter{
		ErrorInfo: errInfo,
		Exit:      os.Exit,
		Out:       os.Stderr,
	}
}

// Report prints the stack trace (if available), the source line
// referenced by err.ErrInfoIdx (if any), the error message, and exits
// with a nonzero status. With the default Exit (os.Exit) it never
// returns; an overridden Exit that returns lets Report return too.
func (r *Reporter) Report(err *FatalError) {
	var trace []string
	if r.StackTrace != nil {
		trace = r.StackTrace()
	}
	for _, frame := range trace {
		fmt.Fprintf(r.Out, "  at %s\n", frame)
	}

	rendered := "Error: " + err.Message
	if err.ErrInfoIdx >= 0 && err.ErrInfoIdx < len(r.ErrorInfo) {
		info := r.ErrorInfo[err.ErrInfoIdx]
		fmt.Fprintf(r.Out, "%d | %s\n", info.Line, info.Text)
	}
	fmt.Fprintln(r.Out, rendered)

	if r.BeforeExit != nil {
		r.BeforeExit(err, rendered)
	}

	exit := r.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(1)
}
