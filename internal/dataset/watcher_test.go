package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casepulse/internal/dataprocessing"
	"casepulse/internal/infrastructure"
)

type countingReloader struct {
	calls   atomic.Int32
	traceID atomic.Value
	err     error
}

func (r *countingReloader) Reload(ctx context.Context) (*dataprocessing.Dataset, error) {
	r.calls.Add(1)
	r.traceID.Store(infrastructure.GetTraceID(ctx))
	return nil, r.err
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "IndividualDetails.csv")
	require.NoError(t, os.WriteFile(file, []byte("detected_state,current_status\n"), 0644))

	reloader := &countingReloader{}
	w := NewWatcher(file, 100*time.Millisecond, reloader, testLogger())
	startWatcher(t, w)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte("detected_state,current_status\nKerala,Recovered\n"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return reloader.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), reloader.calls.Load())

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Events, 1)
	assert.Equal(t, 1, stats.Reloads)
	assert.NotEmpty(t, reloader.traceID.Load(), "file-triggered reloads carry a trace ID")
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "IndividualDetails.csv")

	reloader := &countingReloader{}
	w := NewWatcher(file, 20*time.Millisecond, reloader, testLogger())
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.csv"), []byte("x"), 0644))
	time.Sleep(200 * time.Millisecond)

	assert.Zero(t, reloader.calls.Load())
	assert.Zero(t, w.Stats().Events)
}

func TestWatcherPicksUpCreatedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "IndividualDetails.csv")

	reloader := &countingReloader{}
	w := NewWatcher(file, 20*time.Millisecond, reloader, testLogger())
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(file, []byte("detected_state,current_status\n"), 0644))

	require.Eventually(t, func() bool { return reloader.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherCountsReloadErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cases.csv")

	reloader := &countingReloader{err: errors.New("bad file")}
	w := NewWatcher(file, 20*time.Millisecond, reloader, testLogger())
	startWatcher(t, w)

	require.NoError(t, os.WriteFile(file, []byte("junk"), 0644))

	require.Eventually(t, func() bool { return w.Stats().Errors >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherMissingDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "absent", "cases.csv")
	w := NewWatcher(file, 0, &countingReloader{}, testLogger())

	err := w.Run(context.Background())
	assert.Error(t, err)
}
