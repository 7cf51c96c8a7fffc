package core

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
)

// FatalSignals is the conventional set of signals that terminate a process
// because of a fault in the process itself.
var FatalSignals = []syscall.Signal{
	syscall.SIGABRT,
	syscall.SIGILL,
	syscall.SIGSEGV,
	syscall.SIGBUS,
	syscall.SIGFPE,
}

var signalNames = map[syscall.Signal]string{
	syscall.SIGABRT: "SIGABRT",
	syscall.SIGILL:  "SIGILL",
	syscall.SIGSEGV: "SIGSEGV",
	syscall.SIGBUS:  "SIGBUS",
	syscall.SIGFPE:  "SIGFPE",
}

// SignalName returns the conventional name of sig, e.g. "SIGSEGV".
func SignalName(sig syscall.Signal) string {
	if name, ok := signalNames[sig]; ok {
		return name
	}
	return "SIG" + strconv.Itoa(int(sig))
}

// IsFatalSignal reports whether sig belongs to FatalSignals.
func IsFatalSignal(sig syscall.Signal) bool {
	_, ok := signalNames[sig]
	return ok
}

// ParseSignal parses a fatal signal by name ("SIGSEGV", "segv") or number.
func ParseSignal(s string) (syscall.Signal, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		sig := syscall.Signal(n)
		if !IsFatalSignal(sig) {
			return 0, ErrValidation(CodeInvalidSignal, fmt.Sprintf("signal %d is not a supported fatal signal", n))
		}
		return sig, nil
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	for sig, n := range signalNames {
		if n == name {
			return sig, nil
		}
	}
	return 0, ErrValidation(CodeInvalidSignal, fmt.Sprintf("unknown fatal signal %q", s))
}
