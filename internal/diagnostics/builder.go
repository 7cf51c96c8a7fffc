package diagnostics

import (
	"runtime"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// GoroutineDumpSize bounds the all-goroutine dump attached to a report.
const GoroutineDumpSize = 64 << 10

// ReportBuilder assembles crash reports into storage owned by the builder.
// Everything it needs is allocated by NewReportBuilder so that Build only
// fills fixed buffers.
type ReportBuilder struct {
	sessionID string
	metadata  core.Metadata

	slot core.CrashReport
	mem  runtime.MemStats
	dump []byte
}

// NewReportBuilder creates a builder for one install session. When
// includeGoroutines is set a dump buffer of GoroutineDumpSize is reserved.
func NewReportBuilder(sessionID string, metadata core.Metadata, includeGoroutines bool) *ReportBuilder {
	b := &ReportBuilder{
		sessionID: sessionID,
		metadata:  metadata,
	}
	if includeGoroutines {
		b.dump = make([]byte, GoroutineDumpSize)
	}
	return b
}

// SessionID returns the id stamped on every report.
func (b *ReportBuilder) SessionID() string {
	return b.sessionID
}

// Build captures the calling goroutine's stack and returns a report for
// cause. skip counts frames above the caller of Build to leave out, so that
// handler plumbing does not show up in the backtrace.
//
// The returned pointer refers to the builder's slot; a later Build
// overwrites it.
func (b *ReportBuilder) Build(cause core.Cause, skip int) *core.CrashReport {
	r := &b.slot
	CaptureFrames(skip+1, &r.Backtrace)

	r.ID = b.sessionID
	r.Cause = cause
	r.ThreadID = CurrentThreadID()
	r.GoroutineID = CurrentGoroutineID()
	r.Timestamp = time.Now().UTC()
	r.Metadata = b.metadata

	runtime.ReadMemStats(&b.mem)
	r.Resources = core.Resources{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: b.mem.HeapAlloc,
		HeapInuseBytes: b.mem.HeapInuse,
		StackInuse:     b.mem.StackInuse,
		NumGC:          b.mem.NumGC,
	}

	r.Goroutines = nil
	if b.dump != nil {
		n := runtime.Stack(b.dump, true)
		r.Goroutines = core.Dump(b.dump[:n])
	}
	return r
}
