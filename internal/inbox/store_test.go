package inbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "inbox.db"), WithLogger(logging.NewNop().Logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeReport(t *testing.T, dir, id string, cause core.Cause, at time.Time) string {
	t.Helper()
	p := diagnostics.NewReportPersister(dir, 100, logging.NewNop().Logger)
	report := &core.CrashReport{
		ID:        id,
		Cause:     cause,
		Timestamp: at,
		Metadata:  core.NewMetadata(map[string]string{diagnostics.KeyGoVersion: "go1.24.2", diagnostics.KeyHostname: "build-07"}),
	}
	path, err := p.Write(report)
	require.NoError(t, err)
	return path
}

func TestStore_IngestListAck(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeReport(t, dir, "older", core.SignalCause(syscall.SIGSEGV, 1, 0x10), base)
	writeReport(t, dir, "newer", core.ExceptionCause("*errors.errorString", "boom"), base.Add(time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crash-broken.json"), []byte("{"), 0o600))

	added, err := s.Ingest(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, added, 2)

	again, err := s.Ingest(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, again, "ingest is idempotent")

	entries, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "newer", entries[0].ID)
	assert.Equal(t, "Uncaught exception *errors.errorString", entries[0].Title)
	assert.Equal(t, "older", entries[1].ID)
	assert.Equal(t, "Fatal signal SIGSEGV", entries[1].Title)
	assert.Equal(t, "signal", entries[1].Kind)
	assert.Equal(t, "go1.24.2", entries[1].GoVersion)
	assert.Equal(t, "build-07", entries[1].Hostname)
	assert.True(t, entries[1].CrashedAt.Equal(base))
	assert.False(t, entries[1].Acked())

	acked, err := s.Ack(ctx, "older")
	require.NoError(t, err)
	require.True(t, acked.Acked())
	first := *acked.AckedAt

	acked, err = s.Ack(ctx, "older")
	require.NoError(t, err)
	assert.True(t, first.Equal(*acked.AckedAt), "second ack keeps the first time")

	unacked, err := s.List(ctx, ListFilter{UnackedOnly: true})
	require.NoError(t, err)
	require.Len(t, unacked, 1)
	assert.Equal(t, "newer", unacked[0].ID)

	total, open, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, open)

	limited, err := s.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	ids, err := s.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, ids)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Get(ctx, "missing")
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))

	_, err = s.Ack(ctx, "missing")
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestStore_IngestMissingDir(t *testing.T) {
	s := openStore(t)
	added, err := s.Ingest(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestStore_IngestFileRejectsOtherNames(t *testing.T) {
	s := openStore(t)
	_, _, err := s.IngestFile(context.Background(), filepath.Join(t.TempDir(), diagnostics.RuntimeFatalLog))
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestStore_ReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inbox.db")
	dir := t.TempDir()
	writeReport(t, dir, "one", core.SignalCause(syscall.SIGABRT, 0, 0), time.Now())

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Ingest(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	total, _, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStore_Watch(t *testing.T) {
	s := openStore(t)
	dir := t.TempDir()
	writeReport(t, dir, "before", core.SignalCause(syscall.SIGBUS, 0, 0), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		ids []string
	)
	seen := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, dir, func(e Entry) {
			mu.Lock()
			ids = append(ids, e.ID)
			mu.Unlock()
			seen <- e.ID
		})
	}()

	waitFor := func(want string) {
		t.Helper()
		select {
		case id := <-seen:
			assert.Equal(t, want, id)
		case <-time.After(5 * time.Second):
			t.Fatalf("report %s not seen", want)
		}
	}
	waitFor("before")

	writeReport(t, dir, "after", core.SignalCause(syscall.SIGFPE, 0, 0), time.Now())
	waitFor("after")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	mu.Lock()
	assert.Equal(t, []string{"before", "after"}, ids)
	mu.Unlock()
}
