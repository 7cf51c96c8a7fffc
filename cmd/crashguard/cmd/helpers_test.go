package cmd

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/testutil"
)

// testEnv points configuration at temp directories through the environment
// and returns the report directory.
func testEnv(t *testing.T) string {
	t.Helper()
	resetFlags()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	t.Chdir(t.TempDir())

	dir := filepath.Join(home, "reports")
	t.Setenv("CRASHGUARD_CRASH_DIR", dir)
	t.Setenv("CRASHGUARD_INBOX_PATH", filepath.Join(home, "inbox.db"))
	t.Setenv("CRASHGUARD_LOG_LEVEL", "error")
	return dir
}

func resetFlags() {
	cfgFile = ""
	quiet = false
	noColor = true
	initForce = false
	initUser = false
	reportsFormat = "text"
	reportsUnacked = false
	reportsLimit = 0
	reportsAckAll = false
	serveHost = ""
	servePort = 0
	demoNoNotice = false
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeReport(t *testing.T, dir, id string, cause core.Cause, at time.Time) string {
	t.Helper()
	return testutil.NewReports(t, dir).Write(id, cause, at)
}

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
