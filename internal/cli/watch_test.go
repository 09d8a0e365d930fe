package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevantEvent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "find.yaml")

	tests := []struct {
		name   string
		event  fsnotify.Event
		target string
		want   bool
	}{
		{"write request", fsnotify.Event{Name: target, Op: fsnotify.Write}, "", true},
		{"create cue", fsnotify.Event{Name: filepath.Join(dir, "a.cue"), Op: fsnotify.Create}, "", true},
		{"remove json", fsnotify.Event{Name: filepath.Join(dir, "a.json"), Op: fsnotify.Remove}, "", true},
		{"chmod only", fsnotify.Event{Name: target, Op: fsnotify.Chmod}, "", false},
		{"other extension", fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write}, "", false},
		{"target file", fsnotify.Event{Name: target, Op: fsnotify.Write}, target, true},
		{"sibling of target", fsnotify.Event{Name: filepath.Join(dir, "other.yaml"), Op: fsnotify.Write}, target, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevantEvent(tt.event, tt.target))
		})
	}
}

func TestWatchRequestsDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "count.yaml", "count: {table: employees}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- watchRequests(ctx, dir, 50*time.Millisecond, func() { changes <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("count: {table: staff}\n"), 0644))
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.LessOrEqual(t, len(changes), 1, "one burst of writes reports once")
}

func TestWatchRequestsMissingPath(t *testing.T) {
	err := watchRequests(context.Background(), "/nonexistent/requests", time.Millisecond, func() {})
	assert.Error(t, err)
}

func TestCompileWatchStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "count.yaml", "count: {table: employees}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf)
	cmd.SetArgs([]string{dir, "--watch"})

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, stdoutBuf.String(), "SELECT COUNT(*) AS `count` FROM `employees`;")
	assert.Contains(t, stderrBuf.String(), "Watching "+dir)
}

func TestCompileWatchMissingPath(t *testing.T) {
	_, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), "/nonexistent/requests", "--watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestOutputInside(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "find.yaml")

	assert.True(t, outputInside(dir, filepath.Join(dir, "out.json")))
	assert.True(t, outputInside(dir, filepath.Join(dir, "nested", "out.json")))
	assert.True(t, outputInside(file, file))
	assert.False(t, outputInside(file, filepath.Join(dir, "out.json")))
	assert.False(t, outputInside(dir, filepath.Join(filepath.Dir(dir), "out.json")))
	assert.False(t, outputInside(dir, dir+"-out.json"))
	assert.True(t, outputInside(dir, filepath.Join(dir, "..foo.json")))
}

func TestCompileWatchRejectsOutputInWatchedPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "count.yaml", "count: {table: employees}\n")
	output := filepath.Join(dir, "out.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stdoutBuf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--watch", "-o", output})

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeWriteFailed)
	assert.Contains(t, err.Error(), "inside the watched path")
	assert.NoFileExists(t, output)
}

func TestCompileWatchOutputOutsideWatchedPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "count.yaml", "count: {table: employees}\n")
	output := filepath.Join(t.TempDir(), "out.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--watch", "-o", output})

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.FileExists(t, output)
}
