package hooks

import "syscall"

// PanicHandler receives panics that escaped a guarded goroutine. Handlers are
// compared by identity, so the same function wrapped twice is two handlers.
type PanicHandler struct {
	name string
	fn   func(v any)
}

// NewPanicHandler wraps fn as an installable panic handler.
func NewPanicHandler(name string, fn func(v any)) *PanicHandler {
	return &PanicHandler{name: name, fn: fn}
}

// Name identifies the handler in logs.
func (h *PanicHandler) Name() string {
	if h == nil {
		return "<default>"
	}
	return h.name
}

// Handle invokes the handler. A nil handler does nothing.
func (h *PanicHandler) Handle(v any) {
	if h == nil || h.fn == nil {
		return
	}
	h.fn(v)
}

// SignalHandler receives a fatal signal on the dispatcher goroutine.
type SignalHandler struct {
	name string
	fn   func(sig syscall.Signal)
}

// NewSignalHandler wraps fn as an installable signal handler.
func NewSignalHandler(name string, fn func(sig syscall.Signal)) *SignalHandler {
	return &SignalHandler{name: name, fn: fn}
}

// Name identifies the handler in logs.
func (h *SignalHandler) Name() string {
	if h == nil {
		return "<default>"
	}
	return h.name
}

// Handle invokes the handler. A nil handler does nothing.
func (h *SignalHandler) Handle(sig syscall.Signal) {
	if h == nil || h.fn == nil {
		return
	}
	h.fn(sig)
}

// Registry installs process-wide handlers. Each setter returns the handler
// it replaced; nil stands for the default behavior.
type Registry interface {
	SetPanicHandler(h *PanicHandler) (prev *PanicHandler, err error)
	SetSignalHandler(sig syscall.Signal, h *SignalHandler) (prev *SignalHandler, err error)
}
