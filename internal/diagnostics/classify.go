package diagnostics

import (
	"fmt"
	"runtime"
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// Linux si_code values for the faults the Go runtime turns into panics.
const (
	codeSEGVMapErr = 1 // SEGV_MAPERR: address not mapped
	codeFPEIntDiv  = 1 // FPE_INTDIV: integer divide by zero
)

const (
	msgNilDeref   = "runtime error: invalid memory address or nil pointer dereference"
	msgDivideZero = "runtime error: integer divide by zero"
)

// faultAddresser is implemented by runtime errors raised for memory faults
// on goroutines running with debug.SetPanicOnFault(true).
type faultAddresser interface {
	Addr() uintptr
}

// ClassifyPanic turns a recovered panic value into a crash cause.
//
// Synchronous faults in Go code reach user code as runtime panics; they are
// reported as the signal the hardware raised so that a nil dereference reads
// as SIGSEGV and an integer division by zero as SIGFPE. Everything else is an
// exception named after the dynamic type of the value.
func ClassifyPanic(v any) core.Cause {
	if rerr, ok := v.(runtime.Error); ok {
		if fa, ok := v.(faultAddresser); ok {
			return core.SignalCause(syscall.SIGSEGV, codeSEGVMapErr, fa.Addr())
		}
		switch rerr.Error() {
		case msgNilDeref:
			return core.SignalCause(syscall.SIGSEGV, codeSEGVMapErr, 0)
		case msgDivideZero:
			return core.SignalCause(syscall.SIGFPE, codeFPEIntDiv, 0)
		}
	}
	return core.ExceptionCause(fmt.Sprintf("%T", v), panicReason(v))
}

func panicReason(v any) string {
	switch val := v.(type) {
	case nil:
		return "panic(nil)"
	case string:
		return val
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
