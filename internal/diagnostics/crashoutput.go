package diagnostics

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// RuntimeFatalLog receives the runtime's own fatal output: unrecovered
// panics on goroutines nobody guarded, and throws such as concurrent map
// writes that no handler can intercept.
const RuntimeFatalLog = "runtime-fatal.log"

var crashOutputMu sync.Mutex

// RuntimeCrashOutput is an active debug.SetCrashOutput registration.
type RuntimeCrashOutput struct {
	path string
}

// SetRuntimeCrashOutput appends the runtime's fatal output to
// RuntimeFatalLog in dir, in addition to stderr.
//
// The runtime offers no way to read the current crash output, so Close
// resets it to none rather than restoring an earlier registration.
func SetRuntimeCrashOutput(dir string) (*RuntimeCrashOutput, error) {
	crashOutputMu.Lock()
	defer crashOutputMu.Unlock()

	path := filepath.Join(dir, RuntimeFatalLog)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, reportFileMode)
	if err != nil {
		return nil, core.ErrInstallation(core.CodePrepareStorage, "opening runtime crash output").WithCause(err)
	}
	// SetCrashOutput keeps its own duplicate of the descriptor.
	defer f.Close()

	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		return nil, core.ErrInstallation(core.CodeHookRegistration, "setting runtime crash output").WithCause(err)
	}
	return &RuntimeCrashOutput{path: path}, nil
}

// Path returns the log file.
func (o *RuntimeCrashOutput) Path() string {
	return o.path
}

// Close stops duplicating fatal output.
func (o *RuntimeCrashOutput) Close() error {
	crashOutputMu.Lock()
	defer crashOutputMu.Unlock()

	if err := debug.SetCrashOutput(nil, debug.CrashOptions{}); err != nil {
		return core.ErrInstallation(core.CodeRestoreFailed, "clearing runtime crash output").WithCause(err)
	}
	return nil
}
