package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileScoped_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	b, err := ReadFileScoped(p)
	if err != nil {
		t.Fatalf("ReadFileScoped error: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("unexpected content: %q", string(b))
	}
}

func TestReadFileScoped_RejectsInvalidPath(t *testing.T) {
	for _, p := range []string{"", ".", string(filepath.Separator)} {
		if _, err := ReadFileScoped(p); err == nil {
			t.Fatalf("expected error for %q", p)
		}
	}
}

func TestReadFileScoped_Missing(t *testing.T) {
	if _, err := ReadFileScoped(filepath.Join(t.TempDir(), "nope.json")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if _, err := ReadFileScoped(filepath.Join(t.TempDir(), "nodir", "f.json")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestReadFileScoped_UnnormalizedPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("norm"), 0o600); err != nil {
		t.Fatal(err)
	}
	data, err := ReadFileScoped(dir + string(filepath.Separator) + "." + string(filepath.Separator) + "file.txt")
	if err != nil {
		t.Fatalf("ReadFileScoped: %v", err)
	}
	if string(data) != "norm" {
		t.Errorf("expected %q, got %q", "norm", data)
	}
}

func TestReadFileScoped_TooLarge(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "big.bin")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxReadSize + 1); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	if _, err := ReadFileScoped(p); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ExpandHome("~/reports")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "reports") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got, _ := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got, _ := ExpandHome("~user/x"); got != "~user/x" {
		t.Errorf("~user form should be left alone: %q", got)
	}
}

func TestSyncDir(t *testing.T) {
	if err := SyncDir(t.TempDir()); err != nil {
		t.Fatalf("SyncDir: %v", err)
	}
	if err := SyncDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing dir")
	}
}
