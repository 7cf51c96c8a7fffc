// Package testutil holds helpers shared by tests that need crash reports on
// disk.
package testutil

import (
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

// Reports writes crash reports into a directory through the real persister.
type Reports struct {
	t         *testing.T
	persister *diagnostics.ReportPersister
}

// NewReports returns a writer for dir.
func NewReports(t *testing.T, dir string) *Reports {
	t.Helper()
	return &Reports{
		t:         t,
		persister: diagnostics.NewReportPersister(dir, 1000, logging.NewNop().Logger),
	}
}

// Dir returns the report directory.
func (r *Reports) Dir() string {
	return r.persister.Dir()
}

// Write persists a minimal report and returns its path.
func (r *Reports) Write(id string, cause core.Cause, at time.Time) string {
	r.t.Helper()
	return r.WriteReport(&core.CrashReport{ID: id, Cause: cause, Timestamp: at, ThreadID: 7})
}

// WriteReport persists report as is and returns its path.
func (r *Reports) WriteReport(report *core.CrashReport) string {
	r.t.Helper()
	path, err := r.persister.Write(report)
	if err != nil {
		r.t.Fatalf("writing report %s: %v", report.ID, err)
	}
	return path
}
