package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
)

const (
	reportPrefix   = "crash-"
	reportSuffix   = ".json"
	tempPrefix     = "." + reportPrefix
	reportFileMode = 0o600
	reportDirMode  = 0o750

	// EncodeBufferSize is reserved at Prepare for encoding the report.
	EncodeBufferSize = 256 << 10

	// DefaultMaxReports is used when the configured limit is not positive.
	DefaultMaxReports = 10

	// staleTempAge is how old an orphaned temp file must be before Prepare
	// removes it. Temp files still locked by a live process are kept
	// regardless of age.
	staleTempAge = 7 * 24 * time.Hour
)

// pendingReport is an open temp file that atomically becomes the report file
// on Commit. Until then the previous report at the target, if any, is intact.
type pendingReport interface {
	Write(p []byte) (int, error)
	Commit() error
	Cleanup() error
	Target() string
}

// ReportFile describes a persisted report on disk.
type ReportFile struct {
	ID      string
	Path    string
	Size    int64
	ModTime time.Time
}

// ReportPersister writes crash reports to a directory, one file per install
// session. The file and the encode buffer are set up by Prepare so that
// Write only encodes, writes, syncs and renames.
type ReportPersister struct {
	dir        string
	maxReports int
	logger     *slog.Logger

	mu      sync.Mutex // Serializes Prepare and Discard
	pending atomic.Pointer[pendingReport]
	buf     []byte
}

// NewReportPersister creates a persister rooted at dir.
func NewReportPersister(dir string, maxReports int, logger *slog.Logger) *ReportPersister {
	if maxReports <= 0 {
		maxReports = DefaultMaxReports
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportPersister{
		dir:        dir,
		maxReports: maxReports,
		logger:     logger,
	}
}

// Dir returns the report directory.
func (p *ReportPersister) Dir() string {
	return p.dir
}

// PathFor returns where the report for a session id lands.
func (p *ReportPersister) PathFor(id string) string {
	return filepath.Join(p.dir, reportPrefix+id+reportSuffix)
}

// Prepare creates the report directory, trims old reports and opens the
// pending file for session id. It runs at install time.
func (p *ReportPersister) Prepare(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(p.dir, reportDirMode); err != nil {
		return core.ErrInstallation(core.CodePrepareStorage, "creating report directory").
			WithCause(err).WithDetail("dir", p.dir)
	}

	p.sweepStaleTemps()
	if err := p.cleanupOldReports(); err != nil {
		p.logger.Warn("failed to trim old crash reports", "dir", p.dir, "error", err)
	}

	pf, err := openPending(p.PathFor(id))
	if err != nil {
		return core.ErrInstallation(core.CodePrepareStorage, "opening pending report file").
			WithCause(err).WithDetail("dir", p.dir)
	}
	if p.buf == nil {
		p.buf = make([]byte, 0, EncodeBufferSize)
	}
	if old := p.pending.Swap(&pf); old != nil {
		_ = (*old).Cleanup()
	}
	return nil
}

// Write persists report and returns the path of the committed file.
//
// The write either fully lands or leaves the previous file untouched. There
// is no retry; on failure the pending file is discarded and the error is a
// persistence error.
func (p *ReportPersister) Write(report *core.CrashReport) (string, error) {
	var pf pendingReport
	if prepared := p.pending.Swap(nil); prepared != nil {
		pf = *prepared
	} else {
		opened, err := openPending(p.PathFor(report.ID))
		if err != nil {
			return "", core.ErrPersistence(core.CodeWriteFailed, "opening report file").WithCause(err)
		}
		pf = opened
	}

	data := report.AppendJSON(p.buf[:0])
	if _, err := pf.Write(data); err != nil {
		_ = pf.Cleanup()
		return "", core.ErrPersistence(core.CodeWriteFailed, "writing report").WithCause(err)
	}
	if err := pf.Commit(); err != nil {
		_ = pf.Cleanup()
		return "", core.ErrPersistence(core.CodeCommitFailed, "committing report").WithCause(err)
	}
	_ = fsutil.SyncDir(p.dir)
	return pf.Target(), nil
}

// Discard drops the pending file without touching any committed report.
func (p *ReportPersister) Discard() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.pending.Swap(nil)
	if old == nil {
		return nil
	}
	return (*old).Cleanup()
}

// Prepared reports whether a pending file is open.
func (p *ReportPersister) Prepared() bool {
	return p.pending.Load() != nil
}

// cleanupOldReports removes the oldest reports beyond maxReports. The slot
// about to be opened counts against the limit.
func (p *ReportPersister) cleanupOldReports() error {
	reports, err := ListReports(p.dir)
	if err != nil {
		return err
	}
	// ListReports is newest first.
	keep := p.maxReports - 1
	for i := len(reports) - 1; i >= keep && i >= 0; i-- {
		if err := os.Remove(reports[i].Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("failed to remove old crash report",
				"path", reports[i].Path,
				"error", err,
			)
		}
	}
	return nil
}

func (p *ReportPersister) sweepStaleTemps() {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-staleTempAge)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(p.dir, e.Name())
		removed, err := removeUnlockedTemp(path)
		switch {
		case err != nil:
			p.logger.Debug("failed to remove stale temp report", "path", path, "error", err)
		case !removed:
			p.logger.Debug("keeping stale temp report held by a live process", "path", path)
		}
	}
}

// ReportID extracts the session id from a report file name. ok is false
// for anything that is not a committed report.
func ReportID(name string) (id string, ok bool) {
	name = filepath.Base(name)
	if !strings.HasPrefix(name, reportPrefix) || !strings.HasSuffix(name, reportSuffix) {
		return "", false
	}
	id = strings.TrimSuffix(strings.TrimPrefix(name, reportPrefix), reportSuffix)
	return id, id != ""
}

// ListReports returns the reports in dir, newest first. A missing directory
// yields an empty list.
func ListReports(dir string) ([]ReportFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, core.ErrPersistence(core.CodeReadFailed, "reading report directory").WithCause(err)
	}

	var reports []ReportFile
	for _, e := range entries {
		name := e.Name()
		id, ok := ReportID(name)
		if e.IsDir() || !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		reports = append(reports, ReportFile{
			ID:      id,
			Path:    filepath.Join(dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].ModTime.Equal(reports[j].ModTime) {
			return reports[i].ID > reports[j].ID
		}
		return reports[i].ModTime.After(reports[j].ModTime)
	})
	return reports, nil
}

// LoadReport reads and decodes one report file.
func LoadReport(path string) (*core.CrashReport, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.ErrNotFound("crash report", filepath.Base(path))
		}
		return nil, core.ErrPersistence(core.CodeReadFailed, "reading crash report").WithCause(err)
	}
	return core.DecodeReport(data)
}

// LoadLatestReport loads the most recent report in dir.
func LoadLatestReport(dir string) (*core.CrashReport, ReportFile, error) {
	reports, err := ListReports(dir)
	if err != nil {
		return nil, ReportFile{}, err
	}
	if len(reports) == 0 {
		return nil, ReportFile{}, core.ErrNotFound("crash report", "latest")
	}
	report, err := LoadReport(reports[0].Path)
	if err != nil {
		return nil, reports[0], fmt.Errorf("loading %s: %w", reports[0].Path, err)
	}
	return report, reports[0], nil
}
