package inbox

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
)

// Watch ingests reports as they land in dir and calls fn for each new one.
// Existing reports are ingested first. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, dir string, fn func(Entry)) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	// Reports that landed before the watch started.
	added, err := s.Ingest(ctx, dir)
	if err != nil {
		return err
	}
	for i := len(added) - 1; i >= 0; i-- {
		fn(added[i])
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// The persister commits by renaming into place, which shows up
			// as a create of the final name.
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if _, ok := diagnostics.ReportID(event.Name); !ok {
				continue
			}
			entry, isNew, err := s.IngestFile(ctx, event.Name)
			if err != nil {
				s.logger.Warn("skipping crash report", "path", event.Name, "error", err)
				continue
			}
			if isNew {
				fn(entry)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("report watcher error", "error", err)
		}
	}
}
