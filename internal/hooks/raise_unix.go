//go:build unix && !(linux && (amd64 || arm64))

package hooks

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// RaiseDefault terminates the process by sig. Without direct access to
// sigaction the signal goes back to the Go runtime, which treats an
// unexpected fatal signal as a throw (stack dump, exit status 2).
func RaiseDefault(sig syscall.Signal) {
	signal.Reset(sig)
	_ = unix.Kill(unix.Getpid(), sig)
	time.Sleep(100 * time.Millisecond)
	os.Exit(128 + int(sig))
}
