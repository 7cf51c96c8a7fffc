package diagnostics

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

func recovered(fn func()) (v any) {
	defer func() { v = recover() }()
	fn()
	return nil
}

//go:noinline
func divide(a, b int) int {
	return a / b
}

type stringer struct{}

func (stringer) String() string { return "custom" }

func TestClassifyPanic_Faults(t *testing.T) {
	t.Parallel()

	t.Run("nil dereference", func(t *testing.T) {
		v := recovered(func() {
			var p *struct{ n int }
			_ = fmt.Sprint(p.n)
		})
		cause := ClassifyPanic(v)
		if !cause.IsSignal() || cause.Sig() != syscall.SIGSEGV {
			t.Fatalf("cause = %v, want SIGSEGV", cause)
		}
		if cause.Code != codeSEGVMapErr {
			t.Errorf("code = %d", cause.Code)
		}
	})

	t.Run("divide by zero", func(t *testing.T) {
		v := recovered(func() { divide(1, 0) })
		cause := ClassifyPanic(v)
		if !cause.IsSignal() || cause.Sig() != syscall.SIGFPE {
			t.Fatalf("cause = %v, want SIGFPE", cause)
		}
		if cause.SignalName != "SIGFPE" || cause.Code != codeFPEIntDiv {
			t.Errorf("unexpected cause %+v", cause)
		}
	})
}

func TestClassifyPanic_Exceptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		value      func()
		wantName   string
		wantReason string
	}{
		{"string", func() { panic("Y") }, "string", "Y"},
		{"error", func() { panic(errors.New("boom")) }, "*errors.errorString", "boom"},
		{"stringer", func() { panic(stringer{}) }, "diagnostics.stringer", "custom"},
		{"int", func() { panic(42) }, "int", "42"},
		{"bounds", func() {
			s := []int{}
			i := 3
			_ = s[i]
		}, "runtime.boundsError", "index out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cause := ClassifyPanic(recovered(tt.value))
			if cause.Kind != core.CauseException {
				t.Fatalf("kind = %s", cause.Kind)
			}
			if cause.Name != tt.wantName {
				t.Errorf("name = %q, want %q", cause.Name, tt.wantName)
			}
			if !strings.Contains(cause.Reason, tt.wantReason) {
				t.Errorf("reason = %q, want it to contain %q", cause.Reason, tt.wantReason)
			}
		})
	}
}

type faultErr struct{ addr uintptr }

func (faultErr) Error() string   { return "runtime error: invalid memory address or nil pointer dereference" }
func (faultErr) RuntimeError()   {}
func (e faultErr) Addr() uintptr { return e.addr }

func TestClassifyPanic_FaultAddress(t *testing.T) {
	t.Parallel()
	cause := ClassifyPanic(faultErr{addr: 0xdead})
	if cause.Sig() != syscall.SIGSEGV || cause.Address != 0xdead {
		t.Fatalf("cause = %+v", cause)
	}
}

func TestClassifyPanic_Nil(t *testing.T) {
	t.Parallel()
	cause := ClassifyPanic(nil)
	if cause.Kind != core.CauseException || cause.Reason != "panic(nil)" {
		t.Fatalf("cause = %+v", cause)
	}
}
