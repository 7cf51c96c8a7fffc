package hooks

// Go runs fn on a new goroutine guarded by the Default table. A panic
// escaping fn goes through the Default panic hook before the process dies.
func Go(fn func()) {
	Default.Go(fn)
}
