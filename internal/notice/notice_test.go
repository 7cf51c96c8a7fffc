package notice

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

func exceptionReport() *core.CrashReport {
	return &core.CrashReport{
		ID:        "sess",
		Cause:     core.ExceptionCause("X", "Y"),
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newCoordinator(p Presenter, timeout time.Duration) *Coordinator {
	c := NewCoordinator(p, timeout, logging.NewNop().Logger)
	c.SetEnabled(true)
	return c
}

func TestCoordinator_DisabledSkipsPresenter(t *testing.T) {
	t.Parallel()
	called := false
	c := NewCoordinator(PresenterFunc(func(context.Context, Summary) error {
		called = true
		return nil
	}), time.Second, nil)

	assert.Equal(t, OutcomeSkipped, c.Present(context.Background(), exceptionReport(), "/r.json"))
	assert.False(t, called)
}

func TestCoordinator_AcknowledgedWithSummary(t *testing.T) {
	t.Parallel()
	var got Summary
	c := newCoordinator(PresenterFunc(func(_ context.Context, s Summary) error {
		got = s
		return nil
	}), time.Second)

	outcome := c.Present(context.Background(), exceptionReport(), "/var/crash/crash-sess.json")
	assert.Equal(t, OutcomeAcknowledged, outcome)
	assert.Contains(t, got.Title, "X")
	assert.Contains(t, got.Detail, "X")
	assert.Contains(t, got.Detail, "Y")
	assert.Equal(t, "/var/crash/crash-sess.json", got.ReportPath)
	assert.False(t, got.Deadline.IsZero())
}

func TestCoordinator_NeverAcknowledgedTimesOut(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	defer close(block)

	c := newCoordinator(PresenterFunc(func(context.Context, Summary) error {
		<-block // ignores ctx on purpose
		return nil
	}), 50*time.Millisecond)

	start := time.Now()
	outcome := c.Present(context.Background(), exceptionReport(), "")
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCoordinator_PresenterHonoringContextTimesOut(t *testing.T) {
	t.Parallel()
	c := newCoordinator(PresenterFunc(func(ctx context.Context, _ Summary) error {
		<-ctx.Done()
		return ctx.Err()
	}), 20*time.Millisecond)

	assert.Equal(t, OutcomeTimedOut, c.Present(context.Background(), exceptionReport(), ""))
}

func TestCoordinator_PresenterErrorAndPanic(t *testing.T) {
	t.Parallel()

	failing := newCoordinator(PresenterFunc(func(context.Context, Summary) error {
		return errors.New("no display")
	}), time.Second)
	assert.Equal(t, OutcomeFailed, failing.Present(context.Background(), exceptionReport(), ""))

	panicking := newCoordinator(PresenterFunc(func(context.Context, Summary) error {
		panic("presenter bug")
	}), time.Second)
	assert.Equal(t, OutcomeFailed, panicking.Present(context.Background(), exceptionReport(), ""))
}

func TestCoordinator_ToggleAndDefaults(t *testing.T) {
	t.Parallel()
	c := NewCoordinator(nil, 0, nil)
	assert.Equal(t, DefaultTimeout, c.Timeout())
	assert.False(t, c.Enabled())

	c.SetEnabled(true)
	assert.True(t, c.Enabled())
	assert.Equal(t, OutcomeSkipped, c.Present(context.Background(), exceptionReport(), ""), "no presenter")
}

func TestSummarize_Signal(t *testing.T) {
	t.Parallel()
	report := &core.CrashReport{ID: "s", Cause: core.SignalCause(syscall.SIGSEGV, 1, 0x10)}
	s := Summarize(report, "/p")
	assert.Equal(t, "Fatal signal SIGSEGV", s.Title)
	assert.Contains(t, s.Detail, "addr=0x10")
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()
	require.Equal(t, "acknowledged", OutcomeAcknowledged.String())
	require.Equal(t, "timed_out", OutcomeTimedOut.String())
	require.Equal(t, "outcome(9)", Outcome(9).String())
}
