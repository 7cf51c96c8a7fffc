// Package inbox keeps a ledger of the crash reports found in a report
// directory, so a later run can list them and mark them as handled.
package inbox

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/notice"
)

//go:embed migrations/001_reports.sql
var migrationV1 string

//go:embed migrations/002_report_host.sql
var migrationV2 string

// Entry is one report known to the inbox.
type Entry struct {
	ID        string     `json:"id" yaml:"id"`
	Path      string     `json:"path" yaml:"path"`
	Kind      string     `json:"kind" yaml:"kind"`
	Title     string     `json:"title" yaml:"title"`
	Detail    string     `json:"detail" yaml:"detail"`
	Size      int64      `json:"size" yaml:"size"`
	GoVersion string     `json:"go_version,omitempty" yaml:"go_version,omitempty"`
	Hostname  string     `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	CrashedAt time.Time  `json:"crashed_at" yaml:"crashed_at"`
	SeenAt    time.Time  `json:"seen_at" yaml:"seen_at"`
	AckedAt   *time.Time `json:"acked_at,omitempty" yaml:"acked_at,omitempty"`
}

// Acked reports whether the entry was acknowledged.
func (e Entry) Acked() bool {
	return e.AckedAt != nil
}

// ListFilter narrows List.
type ListFilter struct {
	UnackedOnly bool
	Limit       int
}

// Store is the sqlite-backed ledger.
type Store struct {
	path   string
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex // Serializes ingestion
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens or creates the ledger at path.
func Open(path string, opts ...StoreOption) (*Store, error) {
	s := &Store{path: path, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating inbox directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening inbox: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	if version < 2 {
		if _, err := s.db.Exec(migrationV2); err != nil {
			return fmt.Errorf("applying migration v2: %w", err)
		}
	}
	return nil
}

// Ingest records every report in dir the inbox has not seen yet and
// returns the new entries, newest first. Reports that cannot be decoded are
// logged and skipped.
func (s *Store) Ingest(ctx context.Context, dir string) ([]Entry, error) {
	files, err := diagnostics.ListReports(dir)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var added []Entry
	for _, f := range files {
		entry, isNew, err := s.ingestLocked(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return added, ctx.Err()
			}
			s.logger.Warn("skipping crash report", "path", f.Path, "error", err)
			continue
		}
		if isNew {
			added = append(added, entry)
		}
	}
	return added, nil
}

// IngestFile records one report file. isNew is false when it was already
// known.
func (s *Store) IngestFile(ctx context.Context, path string) (entry Entry, isNew bool, err error) {
	id, ok := diagnostics.ReportID(path)
	if !ok {
		return Entry{}, false, core.ErrValidation("INVALID_REPORT_NAME", "not a crash report file").WithDetail("path", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, false, fmt.Errorf("stat %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestLocked(ctx, diagnostics.ReportFile{ID: id, Path: path, Size: info.Size(), ModTime: info.ModTime()})
}

func (s *Store) ingestLocked(ctx context.Context, f diagnostics.ReportFile) (Entry, bool, error) {
	if existing, err := s.Get(ctx, f.ID); err == nil {
		return existing, false, nil
	} else if !core.IsCategory(err, core.ErrCatNotFound) {
		return Entry{}, false, err
	}

	report, err := diagnostics.LoadReport(f.Path)
	if err != nil {
		return Entry{}, false, err
	}
	entry := entryFor(f, report, s.now().UTC())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, path, kind, title, detail, size, go_version, hostname, crashed_at, seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, entry.ID, entry.Path, entry.Kind, entry.Title, entry.Detail, entry.Size,
		entry.GoVersion, entry.Hostname, entry.CrashedAt, entry.SeenAt)
	if err != nil {
		return Entry{}, false, fmt.Errorf("inserting report %s: %w", f.ID, err)
	}
	return entry, true, nil
}

func entryFor(f diagnostics.ReportFile, report *core.CrashReport, seen time.Time) Entry {
	summary := notice.Summarize(report, f.Path)
	crashed := report.Timestamp
	if crashed.IsZero() {
		crashed = f.ModTime
	}
	goVersion, _ := report.Metadata.Get(diagnostics.KeyGoVersion)
	hostname, _ := report.Metadata.Get(diagnostics.KeyHostname)
	return Entry{
		ID:        f.ID,
		Path:      f.Path,
		Kind:      string(report.Cause.Kind),
		Title:     summary.Title,
		Detail:    summary.Detail,
		Size:      f.Size,
		GoVersion: goVersion,
		Hostname:  hostname,
		CrashedAt: crashed.UTC(),
		SeenAt:    seen,
	}
}

const selectEntry = `SELECT id, path, kind, title, detail, size, go_version, hostname, crashed_at, seen_at, acked_at FROM reports`

// List returns entries newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := selectEntry
	var args []any
	if filter.UnackedOnly {
		query += " WHERE acked_at IS NULL"
	}
	query += " ORDER BY crashed_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the entry for id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+" WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, core.ErrNotFound("crash report", id)
	}
	return e, err
}

// IDs returns every known report id, newest first.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	entries, err := s.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// Ack marks id as handled. Acknowledging twice keeps the first time.
func (s *Store) Ack(ctx context.Context, id string) (Entry, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE reports SET acked_at = ? WHERE id = ? AND acked_at IS NULL", s.now().UTC(), id)
	if err != nil {
		return Entry{}, fmt.Errorf("acknowledging report %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return Entry{}, err
		}
	}
	return s.Get(ctx, id)
}

// Counts returns the number of entries and how many are unacknowledged.
func (s *Store) Counts(ctx context.Context) (total, unacked int, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN acked_at IS NULL THEN 1 ELSE 0 END), 0) FROM reports",
	).Scan(&total, &unacked)
	if err != nil {
		return 0, 0, fmt.Errorf("counting reports: %w", err)
	}
	return total, unacked, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e     Entry
		acked sql.NullTime
	)
	err := row.Scan(&e.ID, &e.Path, &e.Kind, &e.Title, &e.Detail, &e.Size,
		&e.GoVersion, &e.Hostname, &e.CrashedAt, &e.SeenAt, &acked)
	if err != nil {
		return Entry{}, err
	}
	if acked.Valid {
		t := acked.Time
		e.AckedAt = &t
	}
	return e, nil
}
