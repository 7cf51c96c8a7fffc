//go:build linux && (amd64 || arm64)

package hooks

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigactiont is the kernel's struct sigaction on amd64 and arm64.
type sigactiont struct {
	handler  uintptr
	flags    uint64
	restorer uintptr
	mask     uint64
}

// RaiseDefault terminates the process by sig with the default disposition,
// so the parent observes the original signal (and a core dump where the
// signal produces one).
//
// The Go runtime keeps its own handler for synchronous signals even after
// signal.Reset, so the disposition is reset with rt_sigaction directly and
// the signal is sent to the current thread with it unblocked.
func RaiseDefault(sig syscall.Signal) {
	signal.Reset(sig)
	runtime.LockOSThread()

	var act sigactiont // SIG_DFL
	_, _, _ = unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig),
		uintptr(unsafe.Pointer(&act)), 0, unsafe.Sizeof(act.mask), 0, 0)

	var set unix.Sigset_t
	bit := uint(sig) - 1
	set.Val[bit/64] |= 1 << (bit % 64)
	_ = unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil)

	_ = unix.Tgkill(unix.Getpid(), unix.Gettid(), sig)

	// Delivery happens on return from tgkill; this is only reached if the
	// signal was somehow ignored.
	time.Sleep(100 * time.Millisecond)
	os.Exit(128 + int(sig))
}
