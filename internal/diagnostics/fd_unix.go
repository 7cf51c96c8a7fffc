//go:build linux || darwin

package diagnostics

import (
	"math"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

func fdDir() string {
	if runtime.GOOS == "linux" {
		return "/proc/self/fd"
	}
	return "/dev/fd"
}

// CountFDs reports how many descriptors are open and the soft
// RLIMIT_NOFILE. Either figure is 0 when it cannot be read.
func CountFDs() (open, limit int) {
	if entries, err := os.ReadDir(fdDir()); err == nil && len(entries) > 0 {
		// The listing includes the descriptor ReadDir held on the directory.
		open = len(entries) - 1
	}

	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err == nil {
		if rlim.Cur > math.MaxInt32 {
			limit = math.MaxInt32
		} else {
			limit = int(rlim.Cur)
		}
	}
	return open, limit
}
