package taps

import "sync/atomic"

// Guard is the "already handling a crash" flag. Both taps share one guard so
// only the first failure of the process runs the pipeline.
type Guard struct {
	busy atomic.Bool
}

var processGuard Guard

// ProcessGuard returns the guard shared by all taps of the process.
func ProcessGuard() *Guard {
	return &processGuard
}

// Enter claims the guard. It returns false when a failure is already being
// handled.
func (g *Guard) Enter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Handling reports whether a failure is being handled.
func (g *Guard) Handling() bool {
	return g.busy.Load()
}
