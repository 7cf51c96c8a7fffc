package core

import (
	"encoding/json"
	"strings"
	"syscall"
	"testing"
	"time"
)

func sampleReport() CrashReport {
	r := CrashReport{
		ID:          "0b7f3c1e-7d4e-4f55-9a7a-0d1f0c3b5a11",
		Cause:       SignalCause(syscall.SIGFPE, 1, 0x4010),
		ThreadID:    4242,
		GoroutineID: 17,
		Timestamp:   time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC),
		Metadata: NewMetadata(map[string]string{
			"app.name": "demo",
			"note":     "quote \" backslash \\ newline \n tab \t <tag>  ",
		}),
		Resources:  Resources{Goroutines: 3, HeapAllocBytes: 1024, NumGC: 2},
		Goroutines: Dump("goroutine 1 [running]:\nmain.main()\n"),
	}
	buf := r.Backtrace.Buffer()
	for i := 0; i < 5; i++ {
		buf[i] = uintptr(0x401000 + i*0x10)
	}
	r.Backtrace.SetLen(5)
	return r
}

func TestCrashReport_AppendJSON_IsValidJSON(t *testing.T) {
	r := sampleReport()
	data := r.AppendJSON(nil)

	if !json.Valid(data) {
		t.Fatalf("AppendJSON produced invalid JSON: %s", data)
	}

	decoded, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if decoded.ID != r.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, r.ID)
	}
	if decoded.Cause != r.Cause {
		t.Errorf("Cause = %+v, want %+v", decoded.Cause, r.Cause)
	}
	if decoded.ThreadID != r.ThreadID || decoded.GoroutineID != r.GoroutineID {
		t.Errorf("thread/goroutine mismatch: %d/%d", decoded.ThreadID, decoded.GoroutineID)
	}
	if !decoded.Timestamp.Equal(r.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, r.Timestamp)
	}
	if decoded.Backtrace.Len() != 5 || decoded.Backtrace.At(4) != 0x401040 {
		t.Errorf("Backtrace = %v", decoded.Backtrace.Frames())
	}
	note, _ := decoded.Metadata.Get("note")
	want, _ := r.Metadata.Get("note")
	if note != want {
		t.Errorf("metadata note = %q, want %q", note, want)
	}
	if string(decoded.Goroutines) != string(r.Goroutines) {
		t.Errorf("goroutine dump mismatch")
	}
}

func TestCrashReport_AppendJSON_InvalidUTF8(t *testing.T) {
	r := CrashReport{ID: "x", Cause: ExceptionCause("string", "bad \xff byte")}
	data := r.AppendJSON(nil)
	if !json.Valid(data) {
		t.Fatalf("invalid JSON: %s", data)
	}
	decoded, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if !strings.Contains(decoded.Cause.Reason, "�") {
		t.Errorf("expected replacement rune, got %q", decoded.Cause.Reason)
	}
}

func TestCrashReport_AppendJSON_NoAllocWithCapacity(t *testing.T) {
	r := sampleReport()
	buf := make([]byte, 0, 64<<10)

	allocs := testing.AllocsPerRun(100, func() {
		buf = r.AppendJSON(buf[:0])
	})
	if allocs != 0 {
		t.Fatalf("AppendJSON allocated %.0f times with a preallocated buffer", allocs)
	}
}

func TestCrashReport_StdlibMarshalMatchesShape(t *testing.T) {
	r := sampleReport()
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	decoded, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if decoded.Cause.SignalName != "SIGFPE" || decoded.Cause.Address != 0x4010 {
		t.Errorf("unexpected cause %+v", decoded.Cause)
	}
}

func TestDecodeReport_Garbage(t *testing.T) {
	_, err := DecodeReport([]byte(`{"id": `))
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsCategory(err, ErrCatPersistence) {
		t.Errorf("expected persistence category, got %s", GetCategory(err))
	}
}

func TestBacktrace_SetLenClamps(t *testing.T) {
	var b Backtrace
	b.SetLen(MaxFrames + 10)
	if b.Len() != MaxFrames {
		t.Errorf("Len = %d, want %d", b.Len(), MaxFrames)
	}
	b.SetLen(-1)
	if b.Len() != 0 {
		t.Errorf("Len = %d, want 0", b.Len())
	}
}

func TestBacktrace_UnmarshalTruncates(t *testing.T) {
	frames := make([]string, MaxFrames+20)
	for i := range frames {
		frames[i] = `"0x1"`
	}
	var b Backtrace
	if err := b.UnmarshalJSON([]byte("[" + strings.Join(frames, ",") + "]")); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if b.Len() != MaxFrames {
		t.Errorf("Len = %d, want %d", b.Len(), MaxFrames)
	}
}

func TestCause_String(t *testing.T) {
	if got := ExceptionCause("X", "Y").String(); got != "exception X: Y" {
		t.Errorf("got %q", got)
	}
	if got := SignalCause(syscall.SIGSEGV, 1, 0).String(); got != "signal SIGSEGV (code=1, addr=0x0)" {
		t.Errorf("got %q", got)
	}
}

func TestMetadata_SortedAndLookup(t *testing.T) {
	md := NewMetadata(map[string]string{"b": "2", "a": "1", "c": "3"})
	if md[0].Key != "a" || md[2].Key != "c" {
		t.Fatalf("metadata not sorted: %+v", md)
	}
	if v, ok := md.Get("b"); !ok || v != "2" {
		t.Errorf("Get(b) = %q, %v", v, ok)
	}
	if _, ok := md.Get("z"); ok {
		t.Errorf("Get(z) should miss")
	}
}
