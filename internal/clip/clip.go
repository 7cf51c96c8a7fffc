// Package clip copies short text, such as a crash report path, to wherever
// the user can paste it from.
package clip

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Method is the mechanism that made the text available.
type Method string

const (
	MethodNative Method = "native" // OS clipboard
	MethodOSC52  Method = "osc52"  // terminal clipboard escape sequence
	MethodFile   Method = "file"   // temp file fallback
)

// Result reports how the text was copied.
type Result struct {
	Method   Method
	FilePath string // only set for MethodFile
}

// osc52Limit keeps payloads under what common terminals accept.
const osc52Limit = 100_000

// Copier tries the native clipboard, then OSC52 on a terminal, then a file.
type Copier struct {
	native  func(text string) error
	tty     io.Writer
	isTTY   bool
	tempDir string
	getenv  func(string) string
}

// New creates a copier that emits OSC52 sequences on tty when it is a
// terminal.
func New(tty *os.File) *Copier {
	c := &Copier{
		native: atotto.WriteAll,
		getenv: os.Getenv,
	}
	if tty != nil {
		c.tty = tty
		c.isTTY = term.IsTerminal(int(tty.Fd()))
	}
	return c
}

// Copy makes text available, falling back until one method works.
func (c *Copier) Copy(text string) (Result, error) {
	if text == "" {
		return Result{}, errors.New("nothing to copy")
	}
	if c.native != nil && c.native(text) == nil {
		return Result{Method: MethodNative}, nil
	}
	if err := c.writeOSC52(text); err == nil {
		return Result{Method: MethodOSC52}, nil
	}
	path, err := c.writeTempFile(text)
	if err != nil {
		return Result{}, fmt.Errorf("copying text: %w", err)
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

func (c *Copier) writeOSC52(text string) error {
	if c.tty == nil || !c.isTTY {
		return errors.New("no terminal for OSC52")
	}
	if len(text) > osc52Limit {
		return fmt.Errorf("text too large for OSC52 (%d bytes)", len(text))
	}

	seq := osc52.New(text).Limit(osc52Limit)
	switch {
	case c.getenv("TMUX") != "":
		seq = seq.Tmux()
	case c.getenv("STY") != "":
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(c.tty)
	return err
}

func (c *Copier) writeTempFile(text string) (path string, err error) {
	f, err := os.CreateTemp(c.tempDir, "crashguard-clipboard-*.txt")
	if err != nil {
		return "", err
	}
	path = f.Name()
	defer func() {
		_ = f.Close()
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.WriteString(text); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}
