package core

import (
	"syscall"
	"testing"
)

func TestParseSignal(t *testing.T) {
	tests := []struct {
		in   string
		want syscall.Signal
	}{
		{"SIGSEGV", syscall.SIGSEGV},
		{"segv", syscall.SIGSEGV},
		{" fpe ", syscall.SIGFPE},
		{"SIGABRT", syscall.SIGABRT},
		{"bus", syscall.SIGBUS},
		{"ill", syscall.SIGILL},
	}
	for _, tt := range tests {
		got, err := ParseSignal(tt.in)
		if err != nil {
			t.Fatalf("ParseSignal(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSignal(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSignal_Rejects(t *testing.T) {
	for _, in := range []string{"SIGKILL", "term", "", "9"} {
		if _, err := ParseSignal(in); err == nil {
			t.Errorf("ParseSignal(%q) expected error", in)
		} else if !IsCategory(err, ErrCatValidation) {
			t.Errorf("ParseSignal(%q) category = %s", in, GetCategory(err))
		}
	}
}

func TestFatalSignals(t *testing.T) {
	if len(FatalSignals) != 5 {
		t.Fatalf("expected the fatal five, got %d", len(FatalSignals))
	}
	for _, sig := range FatalSignals {
		if !IsFatalSignal(sig) {
			t.Errorf("%v not reported as fatal", sig)
		}
		if SignalName(sig) == "" {
			t.Errorf("%v has no name", sig)
		}
	}
	if SignalName(syscall.Signal(64)) != "SIG64" {
		t.Errorf("unexpected name for unknown signal: %s", SignalName(syscall.Signal(64)))
	}
}
