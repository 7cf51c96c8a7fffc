//go:build !unix

package hooks

import (
	"os"
	"syscall"
)

// RaiseDefault exits with the status the Go runtime uses for fatal errors.
// Signals cannot be re-raised on this platform.
func RaiseDefault(_ syscall.Signal) {
	os.Exit(2)
}
