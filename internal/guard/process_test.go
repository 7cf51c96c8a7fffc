//go:build unix

package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
	"github.com/hugo-lorenzo-mato/crashguard/internal/notice"
)

const (
	helperModeEnv = "CRASHGUARD_GUARD_HELPER"
	helperDirEnv  = "CRASHGUARD_GUARD_DIR"
	helperSigEnv  = "CRASHGUARD_GUARD_SIGNAL"
	summaryFile   = "summary.txt"
	chainFile     = "chain.txt"
	hostFatalLog  = "host-fatal.log"
	helperTimeout = 300 * time.Millisecond
)

// X is the exception thrown by the notice scenario.
type X struct{ reason string }

func (e X) Error() string { return e.reason }

var helperSink int

// TestHelperProcess is re-executed by the tests below; it is not a test on
// its own.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperModeEnv)
	if mode == "" {
		return
	}
	dir := os.Getenv(helperDirEnv)
	_ = unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{})
	ctx := context.Background()

	switch mode {
	case "divide-by-zero":
		if err := Default().Install(ctx, false, WithDir(dir)); err != nil {
			os.Exit(10)
		}
		func() {
			defer hooks.Default.Recover()
			var zero int
			helperSink = 1 / zero
		}()

	case "exception-notice":
		presenter := notice.PresenterFunc(func(_ context.Context, s notice.Summary) error {
			_ = os.WriteFile(filepath.Join(dir, summaryFile), []byte(s.Title+"\n"+s.Detail), 0o600)
			select {}
		})
		if err := Default().Install(ctx, true, WithDir(dir), WithPresenter(presenter), WithNoticeTimeout(helperTimeout)); err != nil {
			os.Exit(10)
		}
		func() {
			defer hooks.Default.Recover()
			panic(X{reason: "Y"})
		}()

	case "kill":
		sig, err := core.ParseSignal(os.Getenv(helperSigEnv))
		if err != nil {
			os.Exit(12)
		}
		if err := Default().Install(ctx, false, WithDir(dir)); err != nil {
			os.Exit(10)
		}
		_ = syscall.Kill(os.Getpid(), sig)

	case "chain-abort":
		ctrl := Default()
		_, _ = hooks.Default.SetSignalHandler(syscall.SIGABRT, hooks.NewSignalHandler("app", func(syscall.Signal) {
			state := "report-missing"
			if reg := ctrl.Registration(); reg != nil {
				if _, err := os.Stat(reg.ReportPath()); err == nil {
					state = "report-present"
				}
			}
			_ = os.WriteFile(filepath.Join(dir, chainFile), []byte(state), 0o600)
		}))
		if err := ctrl.Install(ctx, false, WithDir(dir)); err != nil {
			os.Exit(10)
		}
		_ = syscall.Kill(os.Getpid(), syscall.SIGABRT)

	case "host-output-after-uninstall":
		f, err := os.Create(filepath.Join(dir, hostFatalLog))
		if err != nil || debug.SetCrashOutput(f, debug.CrashOptions{}) != nil {
			os.Exit(13)
		}
		_ = f.Close()
		if err := Default().Install(ctx, false, WithDir(dir), WithRuntimeCrashOutput(true)); err != nil {
			os.Exit(10)
		}
		if err := Default().Uninstall(); err != nil {
			os.Exit(11)
		}
		go func() { panic(X{reason: "after uninstall"}) }()

	case "abort-untouched":
		_ = syscall.Kill(os.Getpid(), syscall.SIGABRT)

	case "abort-after-uninstall":
		if err := Default().Install(ctx, false, WithDir(dir)); err != nil {
			os.Exit(10)
		}
		if err := Default().Uninstall(); err != nil {
			os.Exit(11)
		}
		_ = syscall.Kill(os.Getpid(), syscall.SIGABRT)
	}

	time.Sleep(5 * time.Second)
	os.Exit(0)
}

func runHelper(t *testing.T, mode, dir string, env ...string) (syscall.WaitStatus, time.Duration) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$")
	cmd.Env = append(os.Environ(), helperModeEnv+"="+mode, helperDirEnv+"="+dir)
	cmd.Env = append(cmd.Env, env...)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "helper %s: %v", mode, err)
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	return ws, elapsed
}

func requireExactRaise(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" || (runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64") {
		t.Skip("default-disposition re-raise is only exact on linux/amd64 and linux/arm64")
	}
}

func onlyReport(t *testing.T, dir string) *core.CrashReport {
	t.Helper()
	files, err := diagnostics.ListReports(dir)
	require.NoError(t, err)
	require.Len(t, files, 1, "exactly one report per crash")
	report, err := diagnostics.LoadReport(files[0].Path)
	require.NoError(t, err)
	return report
}

func TestProcess_DivideByZeroExitsBySIGFPE(t *testing.T) {
	requireExactRaise(t)
	t.Parallel()
	dir := t.TempDir()

	ws, _ := runHelper(t, "divide-by-zero", dir)
	require.True(t, ws.Signaled(), "expected termination by signal, got %v", ws)
	assert.Equal(t, syscall.SIGFPE, ws.Signal())

	report := onlyReport(t, dir)
	assert.Equal(t, core.CauseSignal, report.Cause.Kind)
	assert.Equal(t, "SIGFPE", report.Cause.SignalName)
	assert.NotZero(t, report.ThreadID)
	assert.Positive(t, report.Backtrace.Len())
}

func TestProcess_EveryFatalSignalWritesOneReportAndReraises(t *testing.T) {
	requireExactRaise(t)
	t.Parallel()

	for _, sig := range core.FatalSignals {
		name := core.SignalName(sig)
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()

			ws, _ := runHelper(t, "kill", dir, helperSigEnv+"="+name)
			require.True(t, ws.Signaled(), "expected termination by signal, got %v", ws)
			assert.Equal(t, sig, ws.Signal())

			report := onlyReport(t, dir)
			assert.Equal(t, core.CauseSignal, report.Cause.Kind)
			assert.Equal(t, name, report.Cause.SignalName)
			assert.Equal(t, sig, report.Cause.Sig())
			assert.Zero(t, report.Cause.Code)
		})
	}
}

func TestProcess_ChainsAfterPersisting(t *testing.T) {
	requireExactRaise(t)
	t.Parallel()
	dir := t.TempDir()

	ws, _ := runHelper(t, "chain-abort", dir)
	require.True(t, ws.Signaled(), "expected termination by signal, got %v", ws)
	assert.Equal(t, syscall.SIGABRT, ws.Signal())

	onlyReport(t, dir)
	state, err := os.ReadFile(filepath.Join(dir, chainFile))
	require.NoError(t, err, "previous handler was not invoked")
	assert.Equal(t, "report-present", string(state))
}

func TestProcess_ExceptionNoticeTimesOut(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	ws, elapsed := runHelper(t, "exception-notice", dir)
	assert.False(t, ws.Signaled(), "exceptions exit through the runtime, got %v", ws)
	assert.Equal(t, 2, ws.ExitStatus())
	assert.GreaterOrEqual(t, elapsed, helperTimeout)

	summary, err := os.ReadFile(filepath.Join(dir, summaryFile))
	require.NoError(t, err, "notice was not presented")
	assert.Contains(t, string(summary), "X")
	assert.Contains(t, string(summary), "Y")

	report := onlyReport(t, dir)
	assert.Equal(t, core.ExceptionCause(fmt.Sprintf("%T", X{}), "Y"), report.Cause)

	fatal, err := os.ReadFile(filepath.Join(dir, diagnostics.RuntimeFatalLog))
	require.NoError(t, err)
	assert.Contains(t, string(fatal), "panic")
}

func TestProcess_UninstallRestoresOriginalTermination(t *testing.T) {
	t.Parallel()

	untouched, _ := runHelper(t, "abort-untouched", t.TempDir())
	dir := t.TempDir()
	restored, _ := runHelper(t, "abort-after-uninstall", dir)

	assert.Equal(t, untouched.Signaled(), restored.Signaled())
	assert.Equal(t, untouched.Signal(), restored.Signal())
	assert.Equal(t, untouched.ExitStatus(), restored.ExitStatus())

	files, err := diagnostics.ListReports(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestProcess_UninstallClearsRuntimeCrashOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	ws, _ := runHelper(t, "host-output-after-uninstall", dir)
	assert.Equal(t, 2, ws.ExitStatus(), "unguarded panic exits through the runtime, got %v", ws)

	host, err := os.ReadFile(filepath.Join(dir, hostFatalLog))
	require.NoError(t, err)
	assert.Empty(t, host, "an earlier host crash output is not restored by Uninstall")

	mirrored, err := os.ReadFile(filepath.Join(dir, diagnostics.RuntimeFatalLog))
	require.NoError(t, err)
	assert.Empty(t, mirrored, "Uninstall stops mirroring fatal output")
}
