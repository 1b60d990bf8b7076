package cli

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long a watched script must stay quiet before it is replayed.
const DefaultWatchDebounce = 100 * time.Millisecond

// WatchReplay replays the script, then replays it again every time the file changes,
// until ctx is cancelled. Step failures are printed and do not stop the watcher.
func WatchReplay(ctx context.Context, opts ReplayOptions, debounce time.Duration) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	logger := CreateLogger("info", opts.Debug)
	logger.Info("Starting Watcher", "path", opts.Path)

	changes, err := watchFile(ctx, opts.Path, debounce, logger)
	if err != nil {
		return err
	}
	for {
		if err := Replay(ctx, opts); err != nil {
			fmt.Fprintf(opts.Output, "error: %v\n", err)
		}
		printSystemMessage(opts.Output, "Waiting for changes...")

		select {
		case <-ctx.Done():
			logger.Info("Stopping watcher (signal received)")
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			printSystemMessage(opts.Output, "Change detected in '%s'.", opts.Path)
		}
	}
}

// watchFile sends the new digest of path each time its content changes.
//
// The parent directory is watched rather than the file, so editors that save by
// writing a temp file and renaming it over the script are still seen. Events are
// debounced, and a burst that leaves the content as it was sends nothing.
// The channel is closed when ctx is cancelled.
func watchFile(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger) (<-chan string, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	out := make(chan string)
	last := digest(abs)

	go func() {
		defer close(out)
		defer w.Close()

		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					timer.Reset(debounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error", "path", abs, "err", err)
			case <-timer.C:
				sum := digest(abs)
				if sum == "" || sum == last {
					continue
				}
				last = sum
				select {
				case out <- sum:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// digest returns the content hash of path, or "" when it cannot be read
// (for instance between the remove and the rename of an atomic save).
func digest(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", md5.Sum(data))
}
