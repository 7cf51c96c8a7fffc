package diagnostics

import (
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

func TestReportBuilder_Build(t *testing.T) {
	t.Parallel()
	md := core.NewMetadata(map[string]string{"app": "demo"})
	b := NewReportBuilder("session-1", md, false)

	before := time.Now().UTC()
	r := b.Build(core.SignalCause(syscall.SIGFPE, 1, 0), 0)

	if r.ID != "session-1" {
		t.Errorf("ID = %q", r.ID)
	}
	if r.Cause.Sig() != syscall.SIGFPE {
		t.Errorf("cause = %v", r.Cause)
	}
	if r.GoroutineID == 0 {
		t.Error("expected goroutine id")
	}
	if runtime.GOOS == "linux" && r.ThreadID == 0 {
		t.Error("expected thread id on linux")
	}
	if r.Timestamp.Before(before) {
		t.Errorf("timestamp %v before %v", r.Timestamp, before)
	}
	if r.Backtrace.Len() == 0 {
		t.Fatal("expected frames")
	}
	if v, _ := r.Metadata.Get("app"); v != "demo" {
		t.Errorf("metadata app = %q", v)
	}
	if r.Resources.Goroutines == 0 || r.Resources.HeapAllocBytes == 0 {
		t.Errorf("resources not filled: %+v", r.Resources)
	}
	if r.Goroutines != nil {
		t.Error("goroutine dump should be absent")
	}

	first, _ := runtime.CallersFrames(r.Backtrace.Frames()).Next()
	if !strings.Contains(first.Function, "TestReportBuilder_Build") {
		t.Errorf("first frame = %s, want the caller of Build", first.Function)
	}
}

func TestReportBuilder_GoroutineDump(t *testing.T) {
	t.Parallel()
	b := NewReportBuilder("s", nil, true)

	r := b.Build(core.ExceptionCause("X", "Y"), 0)
	if !strings.HasPrefix(string(r.Goroutines), "goroutine ") {
		t.Fatalf("dump = %.40q", r.Goroutines)
	}
	if len(r.Goroutines) > GoroutineDumpSize {
		t.Errorf("dump exceeds buffer: %d", len(r.Goroutines))
	}
}

func TestReportBuilder_ReusesSlot(t *testing.T) {
	t.Parallel()
	b := NewReportBuilder("s", nil, false)

	first := b.Build(core.ExceptionCause("A", ""), 0)
	second := b.Build(core.ExceptionCause("B", ""), 0)
	if first != second {
		t.Fatal("expected the same slot")
	}
	if second.Cause.Name != "B" {
		t.Errorf("slot not overwritten: %v", second.Cause)
	}
}

func TestReportBuilder_DeepStackBounded(t *testing.T) {
	t.Parallel()
	b := NewReportBuilder("s", nil, false)

	var build func(depth int) *core.CrashReport
	build = func(depth int) *core.CrashReport {
		if depth == 0 {
			return b.Build(core.ExceptionCause("Deep", ""), 0)
		}
		return build(depth - 1)
	}

	r := build(core.MaxFrames * 4)
	if r.Backtrace.Len() != core.MaxFrames {
		t.Fatalf("backtrace length = %d, want %d", r.Backtrace.Len(), core.MaxFrames)
	}
}
