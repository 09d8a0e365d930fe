package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlcompile/internal/request"
)

const watchDebounce = 300 * time.Millisecond

const watchedOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// watchCompile compiles path, then recompiles whenever a request file
// under it changes. Compile failures are reported and watching goes on.
func watchCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); err != nil {
		return runCompile(opts, path, cmd)
	}
	if opts.Output != "" && outputInside(path, opts.Output) {
		// Each write would trigger another compile, and the output would
		// be loaded as a request.
		return outputCompileError(newFormatter(opts.RootOptions, cmd), ErrCodeWriteFailed,
			fmt.Sprintf("output file %s is inside the watched path %s", opts.Output, path), nil)
	}

	recompile := func() {
		if err := runCompile(opts, path, cmd); err != nil {
			slog.Debug("compile failed", "path", path, "error", err)
		}
	}
	recompile()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes (Ctrl+C to stop)\n", path)
	return watchRequests(cmd.Context(), path, watchDebounce, func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Change detected, recompiling")
		recompile()
	})
}

// watchRequests calls onChange once per burst of request file changes
// under path, until ctx is done. A file path watches that file only.
func watchRequests(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}

	target := ""
	if info.IsDir() {
		if err := addWatchDirs(watcher, abs); err != nil {
			return err
		}
	} else {
		target = abs
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("failed to watch directory: %w", err)
		}
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && target == "" {
				// New subdirectories are watched too.
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() && fi.Name() != "golden" {
					if err := watcher.Add(event.Name); err != nil {
						slog.Warn("watch directory", "path", event.Name, "error", err)
					}
				}
			}
			if relevantEvent(event, target) {
				timer.Reset(debounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

// outputInside reports whether output is path itself or lies under it.
func outputInside(path, output string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absOut, err := filepath.Abs(output)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absPath, absOut)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// addWatchDirs watches root and every subdirectory except golden ones.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && info.Name() == "golden" {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// relevantEvent reports whether event touches a request file. With a
// target, only that file counts.
func relevantEvent(event fsnotify.Event, target string) bool {
	if event.Op&watchedOps == 0 {
		return false
	}
	if target != "" {
		abs, err := filepath.Abs(event.Name)
		return err == nil && abs == target
	}
	_, err := request.FormatFromPath(event.Name)
	return err == nil
}
