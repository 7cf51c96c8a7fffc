// Package crashguard records a report when the process is about to die from
// an uncaught panic or a fatal signal, then lets it die exactly as it would
// have otherwise.
//
// Install once at startup and guard goroutines with Recover or Go:
//
//	func main() {
//		if err := crashguard.Install(true); err != nil {
//			log.Printf("crash handler unavailable: %v", err)
//		}
//		defer crashguard.Recover()
//		...
//		crashguard.Go(worker)
//	}
//
// Go has no global hook for panics that escape a goroutine, so only panics
// that unwind through Recover are reported. Panics on other goroutines and
// runtime throws still reach the runtime-fatal.log in the report directory.
package crashguard

import (
	"context"
	"log/slog"
	"syscall"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/guard"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
	"github.com/hugo-lorenzo-mato/crashguard/internal/notice"
)

// Option configures Install.
type Option = guard.Option

// Summary is what a notice presenter is asked to show.
type Summary = notice.Summary

// Presenter shows the blocking crash notice. It returns nil once the user
// acknowledged it and must give up when ctx is done.
type Presenter = notice.Presenter

// PresenterFunc adapts a function to Presenter.
type PresenterFunc = notice.PresenterFunc

// DefaultNoticeTimeout bounds how long the notice holds up termination.
const DefaultNoticeTimeout = notice.DefaultTimeout

// Install puts the crash handler in place for the whole process. Calling it
// again only updates whether the notice is shown; opts are then ignored.
// Any failure leaves the process exactly as it was.
func Install(enableNotice bool, opts ...Option) error {
	return guard.Default().Install(context.Background(), enableNotice, opts...)
}

// InstallContext is Install with a context bounding metadata collection.
func InstallContext(ctx context.Context, enableNotice bool, opts ...Option) error {
	return guard.Default().Install(ctx, enableNotice, opts...)
}

// Uninstall restores the handlers that were in place before Install.
func Uninstall() error {
	return guard.Default().Uninstall()
}

// Installed reports whether the crash handler is in place.
func Installed() bool {
	return guard.Default().Installed()
}

// SessionID identifies the current install and names its report file.
func SessionID() string {
	return guard.Default().SessionID()
}

// Recover reports a panic unwinding the calling goroutine and then lets it
// continue to the runtime. It must be deferred directly:
//
//	defer crashguard.Recover()
func Recover() {
	if v := recover(); v != nil {
		hooks.Default.DispatchPanic(v)
	}
}

// Go runs fn on a new goroutine guarded by Recover.
func Go(fn func()) {
	hooks.Go(fn)
}

// DefaultDir is the report directory used when WithDir is not given.
func DefaultDir() string {
	return guard.DefaultDir()
}

// WithDir sets the report directory.
func WithDir(dir string) Option { return guard.WithDir(dir) }

// WithMaxReports sets how many reports are kept.
func WithMaxReports(n int) Option { return guard.WithMaxReports(n) }

// WithSignals handles only the given fatal signals.
func WithSignals(signals ...syscall.Signal) Option { return guard.WithSignals(signals...) }

// WithGoroutineDump attaches a dump of all goroutines to every report.
func WithGoroutineDump(enabled bool) Option { return guard.WithGoroutineDump(enabled) }

// WithRuntimeCrashOutput toggles mirroring the runtime's own fatal output
// into the report directory. It is on by default. The runtime has no way to
// read back a crash output set earlier by the host, so Uninstall clears it
// rather than restoring it.
func WithRuntimeCrashOutput(enabled bool) Option { return guard.WithRuntimeCrashOutput(enabled) }

// WithHostMetadata records cpu, memory, disk and gpu details at install.
func WithHostMetadata(enabled bool) Option { return guard.WithHostMetadata(enabled) }

// WithEnvironment records the process environment, secrets redacted.
func WithEnvironment(enabled bool) Option { return guard.WithEnvironment(enabled) }

// WithMetadata adds a static pair to every report.
func WithMetadata(key, value string) Option { return guard.WithMetadata(key, value) }

// WithPresenter replaces the terminal notice.
func WithPresenter(p Presenter) Option { return guard.WithPresenter(p) }

// WithNoticeTimeout bounds the notice.
func WithNoticeTimeout(d time.Duration) Option { return guard.WithNoticeTimeout(d) }

// WithLogger sets the logger used while handling a crash.
func WithLogger(logger *slog.Logger) Option { return guard.WithLogger(logger) }
