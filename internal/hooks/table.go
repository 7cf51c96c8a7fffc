package hooks

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// Default is the process-wide table used by Recover and Go.
var Default = NewTable()

// Table holds the process-wide panic handler and one handler per fatal
// signal. Reads on the crash path are atomic loads; the mutex only
// serializes installs.
type Table struct {
	mu      sync.Mutex
	panicH  atomic.Pointer[PanicHandler]
	signals map[syscall.Signal]*atomic.Pointer[SignalHandler]

	notify      chan os.Signal
	dispatching bool
	raise       func(sig syscall.Signal)
}

// Option configures a Table.
type Option func(*Table)

// WithRaise replaces the default-disposition re-raise. Tests use it to
// observe termination without dying.
func WithRaise(fn func(sig syscall.Signal)) Option {
	return func(t *Table) { t.raise = fn }
}

// NewTable creates an empty table. Signals are only subscribed through
// os/signal once a handler is set for them.
func NewTable(opts ...Option) *Table {
	t := &Table{
		signals: make(map[syscall.Signal]*atomic.Pointer[SignalHandler], len(core.FatalSignals)),
		notify:  make(chan os.Signal, len(core.FatalSignals)),
		raise:   RaiseDefault,
	}
	for _, sig := range core.FatalSignals {
		t.signals[sig] = new(atomic.Pointer[SignalHandler])
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetPanicHandler installs h and returns the previous handler.
func (t *Table) SetPanicHandler(h *PanicHandler) (*PanicHandler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.panicH.Swap(h), nil
}

// PanicHandler returns the installed panic handler.
func (t *Table) PanicHandler() *PanicHandler {
	return t.panicH.Load()
}

// SetSignalHandler installs h for sig and returns the previous handler.
// Setting nil restores the Go runtime's behavior for sig.
func (t *Table) SetSignalHandler(sig syscall.Signal, h *SignalHandler) (*SignalHandler, error) {
	slot, ok := t.signals[sig]
	if !ok {
		return nil, core.ErrInstallation(core.CodeUnsupportedSig, "signal is not a supported fatal signal").
			WithDetail("signal", core.SignalName(sig))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := slot.Swap(h)
	t.resubscribe()
	return prev, nil
}

// SignalHandler returns the handler installed for sig.
func (t *Table) SignalHandler(sig syscall.Signal) *SignalHandler {
	if slot, ok := t.signals[sig]; ok {
		return slot.Load()
	}
	return nil
}

// resubscribe points the notify channel at exactly the signals that have a
// handler. Stop and Notify are per channel, so subscriptions made by other
// packages are left alone.
func (t *Table) resubscribe() {
	var active []os.Signal
	for _, sig := range core.FatalSignals {
		if t.signals[sig].Load() != nil {
			active = append(active, sig)
		}
	}
	signal.Stop(t.notify)
	if len(active) == 0 {
		return
	}
	signal.Notify(t.notify, active...)
	if !t.dispatching {
		t.dispatching = true
		go t.dispatch()
	}
}

// dispatch is the cooperating goroutine of the signal path. The runtime's
// own handler only queues the signal; each delivery is handled on a fresh
// goroutine so a second signal is never stuck behind a blocked first one.
func (t *Table) dispatch() {
	for s := range t.notify {
		sig, ok := s.(syscall.Signal)
		if !ok {
			continue
		}
		go t.deliver(sig)
	}
}

// deliver runs the handler for sig, then terminates with the default
// disposition whether the handler returned or panicked.
func (t *Table) deliver(sig syscall.Signal) {
	defer t.raise(sig)
	defer func() { _ = recover() }()
	t.SignalHandler(sig).Handle(sig)
}

// Raise terminates the process by sig with the default disposition.
func (t *Table) Raise(sig syscall.Signal) {
	t.raise(sig)
}

// DispatchPanic hands a recovered panic value to the installed handler and
// then panics again with the same value, so the Go runtime reports it and
// exits exactly as if nothing had intercepted it.
func (t *Table) DispatchPanic(v any) {
	if h := t.panicH.Load(); h != nil {
		func() {
			defer func() { _ = recover() }()
			h.Handle(v)
		}()
	}
	panic(v)
}

// Recover routes an escaping panic through the table. It must be deferred
// directly: defer table.Recover().
func (t *Table) Recover() {
	if v := recover(); v != nil {
		t.DispatchPanic(v)
	}
}

// Go runs fn on a new goroutine guarded by t.
func (t *Table) Go(fn func()) {
	go func() {
		defer t.Recover()
		fn()
	}()
}
