package taps

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
)

// State is the lifecycle position of a tap.
type State int32

const (
	StateUninstalled State = iota
	StateInstalled
	StateHandling
	StateChained
)

func (s State) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateInstalled:
		return "installed"
	case StateHandling:
		return "handling"
	case StateChained:
		return "chained"
	default:
		return "unknown"
	}
}

// ExceptionTap handles panics that escape a goroutine guarded by the hook
// table. Plain panics are re-panicked by the table once the tap returns;
// panics caused by a fault end the process by the fault's signal.
type ExceptionTap struct {
	registry  hooks.Registry
	guard     *Guard
	pipeline  *Pipeline
	terminate Terminator

	mu    sync.Mutex
	self  *hooks.PanicHandler
	prev  atomic.Pointer[hooks.PanicHandler]
	state atomic.Int32
}

// NewExceptionTap creates an uninstalled tap.
func NewExceptionTap(registry hooks.Registry, guard *Guard, pipeline *Pipeline, terminate Terminator) *ExceptionTap {
	if pipeline == nil {
		pipeline = &Pipeline{}
	}
	return &ExceptionTap{
		registry:  registry,
		guard:     guard,
		pipeline:  pipeline,
		terminate: terminate,
	}
}

// State returns the tap's lifecycle state.
func (t *ExceptionTap) State() State {
	return State(t.state.Load())
}

// Install registers the tap and remembers the handler it replaced.
func (t *ExceptionTap) Install() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.self != nil {
		return nil
	}
	self := hooks.NewPanicHandler("crashguard.exception", t.handle)
	own(self)
	prev, err := t.registry.SetPanicHandler(self)
	if err != nil {
		return core.ErrInstallation(core.CodeHookRegistration, "installing panic handler").WithCause(err)
	}
	t.self = self
	t.prev.Store(prev)
	t.state.Store(int32(StateInstalled))
	return nil
}

// Uninstall puts back the handler that Install replaced.
func (t *ExceptionTap) Uninstall() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.self == nil {
		return nil
	}
	if _, err := t.registry.SetPanicHandler(t.prev.Load()); err != nil {
		return core.ErrInstallation(core.CodeRestoreFailed, "restoring panic handler").WithCause(err)
	}
	t.self = nil
	t.prev.Store(nil)
	t.state.Store(int32(StateUninstalled))
	return nil
}

// Previous returns the handler that was installed before the tap.
func (t *ExceptionTap) Previous() *hooks.PanicHandler {
	return t.prev.Load()
}

func (t *ExceptionTap) handle(v any) {
	if !t.guard.Enter() {
		t.pipeline.log(func(l *slog.Logger) {
			l.Error("fault while handling a crash", "error", core.ErrReentrantFault("panic during crash handling"))
		})
		t.chain(v)
		return
	}
	t.state.Store(int32(StateHandling))

	cause := diagnostics.ClassifyPanic(v)
	t.pipeline.run(cause, 1)

	t.chain(v)
	if cause.IsSignal() && t.terminate != nil {
		t.terminate(cause.Sig())
	}
}

func (t *ExceptionTap) chain(v any) {
	if prev := t.prev.Load(); prev != nil && !isOwn(prev) {
		callPanicHandler(prev, v)
	}
	t.state.Store(int32(StateChained))
}
