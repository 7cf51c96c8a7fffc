//go:build unix

package diagnostics

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"golang.org/x/sys/unix"
)

// renamePending wraps a renameio pending file: a temp file in the target's
// directory that replaces the target only after it has been synced. It holds
// an exclusive flock until it is committed or cleaned up, so the stale temp
// sweep of another process leaves it alone.
type renamePending struct {
	*renameio.PendingFile
	path string
}

func openPending(path string) (pendingReport, error) {
	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(reportFileMode),
	)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(pf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = pf.Cleanup()
		return nil, err
	}
	return &renamePending{PendingFile: pf, path: path}, nil
}

func (p *renamePending) Target() string {
	return p.path
}

func (p *renamePending) Commit() error {
	return p.CloseAtomicallyReplace()
}

// removeUnlockedTemp deletes a temp file unless a live pending report holds
// its lock. It reports whether the file was removed.
func removeUnlockedTemp(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return false, nil
		}
		return false, err
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}
