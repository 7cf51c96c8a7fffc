package taps

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
)

// SignalTap handles fatal signals delivered through the hook table's
// dispatcher. After the pipeline it chains to the previous handler for the
// signal and re-raises it with the default disposition.
type SignalTap struct {
	registry  hooks.Registry
	guard     *Guard
	pipeline  *Pipeline
	terminate Terminator
	signals   []syscall.Signal

	mu        sync.Mutex
	installed []syscall.Signal
	self      map[syscall.Signal]*hooks.SignalHandler
	prev      map[syscall.Signal]*atomic.Pointer[hooks.SignalHandler]
	state     atomic.Int32
}

// NewSignalTap creates an uninstalled tap for signals, which must all be
// fatal signals. An empty list selects core.FatalSignals.
func NewSignalTap(registry hooks.Registry, guard *Guard, pipeline *Pipeline, terminate Terminator, signals []syscall.Signal) *SignalTap {
	if len(signals) == 0 {
		signals = core.FatalSignals
	}
	if pipeline == nil {
		pipeline = &Pipeline{}
	}
	t := &SignalTap{
		registry:  registry,
		guard:     guard,
		pipeline:  pipeline,
		terminate: terminate,
		signals:   append([]syscall.Signal(nil), signals...),
		self:      make(map[syscall.Signal]*hooks.SignalHandler, len(signals)),
		prev:      make(map[syscall.Signal]*atomic.Pointer[hooks.SignalHandler], len(signals)),
	}
	for _, sig := range signals {
		t.prev[sig] = new(atomic.Pointer[hooks.SignalHandler])
	}
	return t
}

// Signals returns the signals the tap handles.
func (t *SignalTap) Signals() []syscall.Signal {
	return append([]syscall.Signal(nil), t.signals...)
}

// State returns the tap's lifecycle state.
func (t *SignalTap) State() State {
	return State(t.state.Load())
}

// Install registers a handler for every signal. On failure the signals
// already registered are restored and the error is returned.
func (t *SignalTap) Install() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.installed) > 0 {
		return nil
	}
	for _, sig := range t.signals {
		h := hooks.NewSignalHandler("crashguard.signal."+core.SignalName(sig), t.handle)
		own(h)
		prev, err := t.registry.SetSignalHandler(sig, h)
		if err != nil {
			rollbackErr := t.restoreLocked()
			return core.ErrInstallation(core.CodeHookRegistration, "installing signal handler").
				WithCause(err).
				WithDetail("signal", core.SignalName(sig)).
				WithDetail("rollback_error", rollbackErr)
		}
		t.self[sig] = h
		t.prev[sig].Store(prev)
		t.installed = append(t.installed, sig)
	}
	t.state.Store(int32(StateInstalled))
	return nil
}

// Uninstall restores the previous handlers in reverse order of installation.
func (t *SignalTap) Uninstall() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.restoreLocked()
}

func (t *SignalTap) restoreLocked() error {
	var firstErr error
	for i := len(t.installed) - 1; i >= 0; i-- {
		sig := t.installed[i]
		if _, err := t.registry.SetSignalHandler(sig, t.prev[sig].Load()); err != nil {
			if firstErr == nil {
				firstErr = core.ErrInstallation(core.CodeRestoreFailed, "restoring signal handler").
					WithCause(err).WithDetail("signal", core.SignalName(sig))
			}
			continue
		}
		delete(t.self, sig)
		t.prev[sig].Store(nil)
	}
	if firstErr != nil {
		return firstErr
	}
	t.installed = nil
	t.state.Store(int32(StateUninstalled))
	return nil
}

// Previous returns the handler that was installed for sig before the tap.
func (t *SignalTap) Previous(sig syscall.Signal) *hooks.SignalHandler {
	if slot, ok := t.prev[sig]; ok {
		return slot.Load()
	}
	return nil
}

func (t *SignalTap) handle(sig syscall.Signal) {
	if !t.guard.Enter() {
		t.pipeline.log(func(l *slog.Logger) {
			l.Error("fault while handling a crash",
				"error", core.ErrReentrantFault("signal during crash handling"),
				"signal", core.SignalName(sig))
		})
		t.chainOrDefault(sig)
		return
	}
	t.state.Store(int32(StateHandling))

	// Asynchronous deliveries carry no siginfo through os/signal.
	t.pipeline.run(core.SignalCause(sig, 0, 0), 1)
	t.chainOrDefault(sig)
}

func (t *SignalTap) chainOrDefault(sig syscall.Signal) {
	if prev := t.Previous(sig); prev != nil && !isOwn(prev) {
		callSignalHandler(prev, sig)
	}
	t.state.Store(int32(StateChained))
	if t.terminate != nil {
		t.terminate(sig)
	}
}
