package guard

import (
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/notice"
)

// options holds install configuration
type options struct {
	dir                string
	maxReports         int
	signals            []syscall.Signal
	includeGoroutines  bool
	runtimeCrashOutput bool
	hostMetadata       bool
	environment        bool
	extra              map[string]string
	presenter          notice.Presenter
	noticeTimeout      time.Duration
	logger             *slog.Logger
}

// Option configures an install
type Option func(*options)

func defaultOptions() options {
	return options{
		dir:                DefaultDir(),
		maxReports:         diagnostics.DefaultMaxReports,
		runtimeCrashOutput: true,
		noticeTimeout:      notice.DefaultTimeout,
	}
}

func defaultPresenter() notice.Presenter {
	return notice.NewTerminalPresenter(os.Stdin, os.Stderr)
}

// DefaultDir is where reports land unless WithDir says otherwise:
// the user cache directory, or the temp directory when there is none.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "crashguard", "reports")
}

// WithDir sets the report directory
func WithDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.dir = dir
		}
	}
}

// WithMaxReports sets how many reports are kept in the directory
func WithMaxReports(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxReports = n
		}
	}
}

// WithSignals restricts the signal tap to a subset of the fatal signals
func WithSignals(signals ...syscall.Signal) Option {
	return func(o *options) {
		o.signals = append([]syscall.Signal(nil), signals...)
	}
}

// WithGoroutineDump attaches a dump of all goroutines to every report
func WithGoroutineDump(enabled bool) Option {
	return func(o *options) {
		o.includeGoroutines = enabled
	}
}

// WithRuntimeCrashOutput toggles mirroring the runtime's fatal output into
// the report directory. Uninstall resets the crash output to none; one set
// by the host before Install is not restored.
func WithRuntimeCrashOutput(enabled bool) Option {
	return func(o *options) {
		o.runtimeCrashOutput = enabled
	}
}

// WithHostMetadata enables the cpu, memory, disk and gpu probes
func WithHostMetadata(enabled bool) Option {
	return func(o *options) {
		o.hostMetadata = enabled
	}
}

// WithEnvironment records the redacted process environment in metadata
func WithEnvironment(enabled bool) Option {
	return func(o *options) {
		o.environment = enabled
	}
}

// WithMetadata adds a static pair to every report
func WithMetadata(key, value string) Option {
	return func(o *options) {
		if o.extra == nil {
			o.extra = make(map[string]string)
		}
		o.extra[key] = value
	}
}

// WithPresenter replaces the terminal notice
func WithPresenter(p notice.Presenter) Option {
	return func(o *options) {
		o.presenter = p
	}
}

// WithNoticeTimeout bounds how long the notice may hold termination
func WithNoticeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.noticeTimeout = d
		}
	}
}

// WithLogger sets the logger used while handling a crash
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
