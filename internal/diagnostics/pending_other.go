//go:build !unix

package diagnostics

import (
	"os"
	"path/filepath"
)

// tempPending is the write-then-rename fallback used where renameio and
// flock are not available.
type tempPending struct {
	f    *os.File
	path string
	done bool
}

func openPending(path string) (pendingReport, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return nil, err
	}
	return &tempPending{f: f, path: path}, nil
}

func (p *tempPending) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

func (p *tempPending) Target() string {
	return p.path
}

func (p *tempPending) Commit() error {
	if err := p.f.Sync(); err != nil {
		return err
	}
	if err := p.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(p.f.Name(), p.path); err != nil {
		return err
	}
	p.done = true
	return nil
}

func (p *tempPending) Cleanup() error {
	if p.done {
		return nil
	}
	_ = p.f.Close()
	if err := os.Remove(p.f.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	p.done = true
	return nil
}

// removeUnlockedTemp deletes a temp file. Without flock the age cutoff is the
// only guard; an open pending file cannot be removed on windows anyway.
func removeUnlockedTemp(path string) (bool, error) {
	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}
