//go:build linux

package diagnostics

import "golang.org/x/sys/unix"

// CurrentThreadID returns the kernel id of the OS thread running the caller.
func CurrentThreadID() int {
	return unix.Gettid()
}
