//go:build !linux

package diagnostics

// CurrentThreadID returns 0; the OS thread id is only exposed on Linux.
func CurrentThreadID() int {
	return 0
}
