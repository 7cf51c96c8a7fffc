package guard

import (
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/hooks"
	"github.com/hugo-lorenzo-mato/crashguard/internal/notice"
	"github.com/hugo-lorenzo-mato/crashguard/internal/taps"
)

// Registration is everything one successful Install put in place. It is
// written only by Install and Uninstall; the crash path reads the pieces it
// needs through the taps.
type Registration struct {
	sessionID string
	metadata  core.Metadata
	steps     []string

	persister   *diagnostics.ReportPersister
	coordinator *notice.Coordinator
	crashOutput *diagnostics.RuntimeCrashOutput
	exception   *taps.ExceptionTap
	signals     *taps.SignalTap
}

// SessionID identifies the install session and names its report file.
func (r *Registration) SessionID() string {
	return r.sessionID
}

// Metadata is the static metadata captured at install.
func (r *Registration) Metadata() core.Metadata {
	return r.metadata
}

// ReportPath is where a crash of this session is written.
func (r *Registration) ReportPath() string {
	return r.persister.PathFor(r.sessionID)
}

// Steps lists the install steps in the order they were performed.
func (r *Registration) Steps() []string {
	return append([]string(nil), r.steps...)
}

// PreviousPanicHandler is the panic handler the exception tap replaced.
func (r *Registration) PreviousPanicHandler() *hooks.PanicHandler {
	return r.exception.Previous()
}

// PreviousSignalHandler is the handler the signal tap replaced for sig.
func (r *Registration) PreviousSignalHandler(sig syscall.Signal) *hooks.SignalHandler {
	return r.signals.Previous(sig)
}

// NoticeEnabled reports the current notice flag.
func (r *Registration) NoticeEnabled() bool {
	return r.coordinator.Enabled()
}
