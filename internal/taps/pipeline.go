// Package taps connects the process hook tables to the crash pipeline:
// classify, capture, persist, notify, chain and terminate.
package taps

import (
	"context"
	"log/slog"
	"sync"
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
	"github.com/hugo-lorenzo-mato/crashguard/internal/notice"
)

// ReportBuilder fills a report from preallocated storage.
type ReportBuilder interface {
	Build(cause core.Cause, skip int) *core.CrashReport
}

// ReportWriter persists a built report.
type ReportWriter interface {
	Write(report *core.CrashReport) (string, error)
}

// Notifier runs the optional notice step.
type Notifier interface {
	Present(ctx context.Context, report *core.CrashReport, path string) notice.Outcome
}

// Terminator ends the process by a signal with its default disposition.
type Terminator func(sig syscall.Signal)

// Pipeline is the work done for one failure. Every step is isolated: a
// panic inside a step is swallowed and the next step still runs.
type Pipeline struct {
	Builder ReportBuilder
	Writer  ReportWriter
	Notice  Notifier
	Logger  *slog.Logger
}

// run executes the pipeline and returns the path of the written report.
// skip counts the caller's frames to leave out of the backtrace.
func (p *Pipeline) run(cause core.Cause, skip int) string {
	report := p.build(cause, skip+1)
	if report == nil {
		return ""
	}

	path := p.persist(report)
	if p.Notice != nil {
		outcome := p.notify(report, path)
		p.log(func(l *slog.Logger) {
			l.Info("crash notice finished", "outcome", outcome.String())
		})
	}
	return path
}

func (p *Pipeline) build(cause core.Cause, skip int) (report *core.CrashReport) {
	defer func() {
		if recover() != nil {
			report = nil
		}
	}()
	return p.Builder.Build(cause, skip+1)
}

func (p *Pipeline) persist(report *core.CrashReport) (path string) {
	defer func() {
		if recover() != nil {
			path = ""
		}
	}()
	path, err := p.Writer.Write(report)
	if err != nil {
		p.log(func(l *slog.Logger) {
			l.Error("crash report dropped", "error", err)
		})
		return ""
	}
	p.log(func(l *slog.Logger) {
		l.Error("crash report written", "path", path, "cause", report.Cause.String())
	})
	return path
}

func (p *Pipeline) notify(report *core.CrashReport, path string) (outcome notice.Outcome) {
	defer func() {
		if recover() != nil {
			outcome = notice.OutcomeFailed
		}
	}()
	return p.Notice.Present(context.Background(), report, path)
}

func (p *Pipeline) log(fn func(l *slog.Logger)) {
	if p.Logger == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(p.Logger)
}

// owned remembers every handler created by this package so a tap never
// chains into itself or into an older instance of itself.
var owned sync.Map

func own(h any) {
	owned.Store(h, struct{}{})
}

func isOwn(h any) bool {
	_, ok := owned.Load(h)
	return ok
}

func callPanicHandler(h *hooks.PanicHandler, v any) {
	defer func() { _ = recover() }()
	h.Handle(v)
}

func callSignalHandler(h *hooks.SignalHandler, sig syscall.Signal) {
	defer func() { _ = recover() }()
	h.Handle(sig)
}
