// Package guard installs and removes the crash handler as one unit.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/notice"
	"github.com/hugo-lorenzo-mato/crashguard/internal/taps"
)

// metadataTimeout bounds host probes during Install.
const metadataTimeout = 3 * time.Second

var (
	defaultOnce       sync.Once
	defaultController *Controller
)

// Default returns the process-wide controller bound to hooks.Default.
func Default() *Controller {
	defaultOnce.Do(func() {
		defaultController = New(hooks.Default, hooks.Default.Raise)
	})
	return defaultController
}

// Controller owns the HandlerRegistration of a hook registry.
type Controller struct {
	registry  hooks.Registry
	terminate taps.Terminator
	guard     *taps.Guard

	mu  sync.Mutex
	reg *Registration
}

// New creates a controller for registry. terminate ends the process by a
// signal with its default disposition.
func New(registry hooks.Registry, terminate taps.Terminator) *Controller {
	return &Controller{
		registry:  registry,
		terminate: terminate,
		guard:     taps.ProcessGuard(),
	}
}

type undoFunc func() error

// Install puts the crash handler in place. It is idempotent: when already
// installed only the notice flag is updated and opts are ignored.
//
// Install is all or nothing. If any step fails, the steps already performed
// are undone in reverse order and an installation error is returned.
func (c *Controller) Install(ctx context.Context, enableNotice bool, opts ...Option) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reg != nil {
		c.reg.coordinator.SetEnabled(enableNotice)
		return nil
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = logging.New(logging.DefaultConfig()).Logger
	}

	reg := &Registration{sessionID: uuid.NewString()}
	logger = logger.With("component", "crashguard", "session_id", reg.sessionID)

	var undo []undoFunc
	step := func(name string, fn undoFunc) {
		reg.steps = append(reg.steps, name)
		undo = append(undo, fn)
	}
	defer func() {
		if err == nil {
			return
		}
		var rollbackErrs []error
		for i := len(undo) - 1; i >= 0; i-- {
			if uerr := undo[i](); uerr != nil {
				rollbackErrs = append(rollbackErrs, uerr)
			}
		}
		if len(rollbackErrs) > 0 {
			logger.Error("install rollback incomplete", "error", errors.Join(rollbackErrs...))
		}
	}()

	reg.persister = diagnostics.NewReportPersister(o.dir, o.maxReports, logger)
	if err := reg.persister.Prepare(reg.sessionID); err != nil {
		return installError("preparing report storage", err)
	}
	step("persister", reg.persister.Discard)

	mctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	reg.metadata = diagnostics.CollectMetadata(mctx, diagnostics.MetadataOptions{
		SessionID: reg.sessionID,
		ReportDir: o.dir,
		Extra:     o.extra,
		Host:      o.hostMetadata,
		Env:       o.environment,
		Sanitizer: logging.NewSanitizer(),
	})
	cancel()
	builder := diagnostics.NewReportBuilder(reg.sessionID, reg.metadata, o.includeGoroutines)

	if o.runtimeCrashOutput {
		out, err := diagnostics.SetRuntimeCrashOutput(o.dir)
		if err != nil {
			return installError("setting runtime crash output", err)
		}
		reg.crashOutput = out
		step("runtime-crash-output", out.Close)
	}

	presenter := o.presenter
	if presenter == nil {
		presenter = defaultPresenter()
	}
	reg.coordinator = notice.NewCoordinator(presenter, o.noticeTimeout, logger)
	reg.coordinator.SetEnabled(enableNotice)

	pipeline := &taps.Pipeline{
		Builder: builder,
		Writer:  reg.persister,
		Notice:  reg.coordinator,
		Logger:  logger,
	}

	reg.exception = taps.NewExceptionTap(c.registry, c.guard, pipeline, c.terminate)
	if err := reg.exception.Install(); err != nil {
		return installError("installing exception tap", err)
	}
	step("exception-tap", reg.exception.Uninstall)

	reg.signals = taps.NewSignalTap(c.registry, c.guard, pipeline, c.terminate, o.signals)
	if err := reg.signals.Install(); err != nil {
		return installError("installing signal tap", err)
	}
	step("signal-tap", reg.signals.Uninstall)

	c.reg = reg
	logger.Debug("crash handler installed", "dir", o.dir, "notice", enableNotice)
	return nil
}

// Uninstall restores every saved hook in reverse install order, discards
// the pending report file and stops mirroring runtime fatal output. It is
// a no-op when not installed.
//
// If a hook cannot be restored the controller stays installed so the call
// can be retried.
func (c *Controller) Uninstall() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg := c.reg
	if reg == nil {
		return nil
	}
	if err := reg.signals.Uninstall(); err != nil {
		return err
	}
	if err := reg.exception.Uninstall(); err != nil {
		return err
	}

	var errs []error
	if reg.crashOutput != nil {
		errs = append(errs, reg.crashOutput.Close())
	}
	errs = append(errs, reg.persister.Discard())
	c.reg = nil
	return errors.Join(errs...)
}

// Installed reports whether the handler is in place.
func (c *Controller) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg != nil
}

// NoticeEnabled reports whether a crash will show the notice.
func (c *Controller) NoticeEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg != nil && c.reg.NoticeEnabled()
}

// SessionID returns the current install session, or "" when not installed.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reg == nil {
		return ""
	}
	return c.reg.sessionID
}

// Registration returns the current registration, or nil.
func (c *Controller) Registration() *Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg
}

func installError(message string, err error) error {
	if core.IsCategory(err, core.ErrCatInstallation) {
		return err
	}
	return core.ErrInstallation(core.CodeHookRegistration, message).WithCause(err)
}
