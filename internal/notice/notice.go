// Package notice gives the user a bounded chance to see that the process is
// going down before it actually does.
package notice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// DefaultTimeout bounds how long a notice can hold up termination.
const DefaultTimeout = 30 * time.Second

// Outcome is how a notice ended.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeAcknowledged
	OutcomeTimedOut
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAcknowledged:
		return "acknowledged"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Summary is what a presenter shows.
type Summary struct {
	ReportID   string
	Title      string
	Detail     string
	Cause      core.Cause
	ReportPath string
	Timestamp  time.Time
	Deadline   time.Time
}

// Summarize describes report for a presenter.
func Summarize(report *core.CrashReport, path string) Summary {
	s := Summary{
		ReportID:   report.ID,
		Detail:     report.Cause.String(),
		Cause:      report.Cause,
		ReportPath: path,
		Timestamp:  report.Timestamp,
	}
	switch report.Cause.Kind {
	case core.CauseSignal:
		s.Title = "Fatal signal " + report.Cause.SignalName
	default:
		s.Title = "Uncaught exception " + report.Cause.Name
	}
	return s
}

// Presenter shows a blocking notice. It returns nil once the user
// acknowledged it and must give up when ctx is done.
type Presenter interface {
	PresentBlockingNotice(ctx context.Context, s Summary) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, s Summary) error

// PresentBlockingNotice calls f.
func (f PresenterFunc) PresentBlockingNotice(ctx context.Context, s Summary) error {
	return f(ctx, s)
}

// Coordinator runs the optional notice step of crash handling. It never
// blocks longer than its timeout and never vetoes termination.
type Coordinator struct {
	presenter Presenter
	timeout   time.Duration
	enabled   atomic.Bool
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator. A non-positive timeout selects
// DefaultTimeout.
func NewCoordinator(presenter Presenter, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{presenter: presenter, timeout: timeout, logger: logger}
}

// SetEnabled toggles the notice without touching anything else.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// Enabled reports whether Present will show anything.
func (c *Coordinator) Enabled() bool {
	return c.enabled.Load()
}

// Timeout returns the wait bound.
func (c *Coordinator) Timeout() time.Duration {
	return c.timeout
}

// Present shows the notice for a persisted report and waits for the
// presenter, its failure, or the timeout. The presenter runs on its own
// goroutine, so a presenter that ignores ctx cannot hold termination.
func (c *Coordinator) Present(ctx context.Context, report *core.CrashReport, path string) Outcome {
	if !c.Enabled() || c.presenter == nil || report == nil {
		return OutcomeSkipped
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	summary := Summarize(report, path)
	summary.Deadline, _ = ctx.Deadline()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("presenter panicked: %v", r)
			}
		}()
		done <- c.presenter.PresentBlockingNotice(ctx, summary)
	}()

	select {
	case err := <-done:
		switch {
		case err == nil:
			return OutcomeAcknowledged
		case errors.Is(err, context.DeadlineExceeded):
			return OutcomeTimedOut
		default:
			c.logger.Warn("crash notice failed", "error", err)
			return OutcomeFailed
		}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return OutcomeTimedOut
		}
		return OutcomeFailed
	}
}
