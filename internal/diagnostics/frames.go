package diagnostics

import (
	"runtime"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// CaptureFrames records the return addresses of the calling goroutine into
// bt, innermost first, skipping the given number of frames above the caller.
// It stops at core.MaxFrames or the top of the stack, whichever comes first.
// No symbol lookup is done and nothing is allocated.
func CaptureFrames(skip int, bt *core.Backtrace) int {
	// +2 skips runtime.Callers and CaptureFrames itself.
	n := runtime.Callers(skip+2, bt.Buffer())
	bt.SetLen(n)
	return bt.Len()
}
