//go:build linux || darwin

package diagnostics

import (
	"os"
	"testing"
)

func TestCountFDs(t *testing.T) {
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	open, limit := CountFDs()
	if open <= 0 {
		t.Errorf("open = %d, want > 0", open)
	}
	if limit <= 0 {
		t.Errorf("limit = %d, want > 0", limit)
	}
	if open > limit {
		t.Errorf("open %d exceeds limit %d", open, limit)
	}
}
