package taps

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
	"github.com/hugo-lorenzo-mato/crashguard/internal/notice"
)

// fakeRegistry records every registration in order.
type fakeRegistry struct {
	mu     sync.Mutex
	panicH *hooks.PanicHandler
	sigs   map[syscall.Signal]*hooks.SignalHandler
	calls  []string
	failOn syscall.Signal
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{sigs: make(map[syscall.Signal]*hooks.SignalHandler)}
}

func (r *fakeRegistry) SetPanicHandler(h *hooks.PanicHandler) (*hooks.PanicHandler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "panic:"+h.Name())
	prev := r.panicH
	r.panicH = h
	return prev, nil
}

func (r *fakeRegistry) SetSignalHandler(sig syscall.Signal, h *hooks.SignalHandler) (*hooks.SignalHandler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sig == r.failOn && h != nil {
		return nil, errors.New("sigaction failed")
	}
	r.calls = append(r.calls, fmt.Sprintf("%s:%s", core.SignalName(sig), h.Name()))
	prev := r.sigs[sig]
	r.sigs[sig] = h
	return prev, nil
}

func (r *fakeRegistry) signal(sig syscall.Signal) *hooks.SignalHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sigs[sig]
}

func (r *fakeRegistry) panicHandler() *hooks.PanicHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.panicH
}

// recorder collects the order in which pipeline steps and chained handlers
// run.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeBuilder struct {
	rec  *recorder
	slot core.CrashReport
}

func (b *fakeBuilder) Build(cause core.Cause, _ int) *core.CrashReport {
	b.rec.add("build:" + cause.String())
	b.slot = core.CrashReport{ID: "test", Cause: cause}
	return &b.slot
}

type fakeWriter struct {
	rec     *recorder
	err     error
	panics  bool
	reports []core.CrashReport
}

func (w *fakeWriter) Write(r *core.CrashReport) (string, error) {
	w.rec.add("persist")
	if w.panics {
		panic("disk exploded")
	}
	if w.err != nil {
		return "", w.err
	}
	w.reports = append(w.reports, *r)
	return "/reports/crash-test.json", nil
}

type fakeNotifier struct {
	rec     *recorder
	gotPath string
	reenter func()
}

func (n *fakeNotifier) Present(_ context.Context, _ *core.CrashReport, path string) notice.Outcome {
	n.rec.add("notice")
	n.gotPath = path
	if n.reenter != nil {
		n.reenter()
	}
	return notice.OutcomeAcknowledged
}

type fakeTerminator struct {
	rec  *recorder
	sigs []syscall.Signal
}

func (f *fakeTerminator) terminate(sig syscall.Signal) {
	f.rec.add("terminate:" + core.SignalName(sig))
	f.sigs = append(f.sigs, sig)
}

type fixture struct {
	rec      *recorder
	registry *fakeRegistry
	guard    *Guard
	builder  *fakeBuilder
	writer   *fakeWriter
	notifier *fakeNotifier
	term     *fakeTerminator
	pipeline *Pipeline
}

func newFixture() *fixture {
	rec := &recorder{}
	f := &fixture{
		rec:      rec,
		registry: newFakeRegistry(),
		guard:    &Guard{},
		builder:  &fakeBuilder{rec: rec},
		writer:   &fakeWriter{rec: rec},
		notifier: &fakeNotifier{rec: rec},
		term:     &fakeTerminator{rec: rec},
	}
	f.pipeline = &Pipeline{Builder: f.builder, Writer: f.writer, Notice: f.notifier}
	return f
}
