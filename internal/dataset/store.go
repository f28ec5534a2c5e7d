package dataset

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"casepulse/internal/dataprocessing"
	"casepulse/internal/infrastructure"
)

// Loader loads a case file, treating a missing file as an empty dataset.
type Loader interface {
	LoadOrEmpty(ctx context.Context, path string) (*dataprocessing.Dataset, error)
}

// Listener is notified after a new dataset has been swapped in.
type Listener func(ctx context.Context, ds *dataprocessing.Dataset)

// Store holds the dataset currently served. Readers get immutable snapshots;
// a reload builds a new snapshot off to the side and swaps it in whole.
type Store struct {
	path    string
	loader  Loader
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	mu      sync.RWMutex
	current *dataprocessing.Dataset
	lastErr error

	listenersMu sync.Mutex
	listeners   []Listener

	group singleflight.Group
}

// NewStore creates a store for the file at path. Nothing is loaded until the
// first Reload.
func NewStore(path string, loader Loader, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:    path,
		loader:  loader,
		logger:  logger.With("component", "dataset_store"),
		metrics: metrics,
	}
}

// Path returns the case file the store reads.
func (s *Store) Path() string {
	return s.path
}

// Current returns the dataset being served, or nil before the first
// successful load.
func (s *Store) Current() *dataprocessing.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Loaded reports whether a dataset is available, including the empty
// dataset served for a missing file.
func (s *Store) Loaded() bool {
	return s.Current() != nil
}

// LastError returns the error of the most recent reload, or nil if it
// succeeded.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Subscribe registers fn to run after every successful reload.
func (s *Store) Subscribe(fn Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload reads the file again and swaps the result in. Concurrent calls share
// one load, which ignores the cancellation of whichever caller started it.
// When loading fails the previous dataset stays in place and the error is
// returned.
func (s *Store) Reload(ctx context.Context) (*dataprocessing.Dataset, error) {
	v, err, shared := s.group.Do("reload", func() (interface{}, error) {
		return s.reload(context.WithoutCancel(ctx))
	})
	if shared {
		s.logger.DebugContext(ctx, "reload coalesced with an in-flight load")
	}
	if err != nil {
		return nil, err
	}
	return v.(*dataprocessing.Dataset), nil
}

func (s *Store) reload(ctx context.Context) (*dataprocessing.Dataset, error) {
	start := time.Now()
	ds, err := s.loader.LoadOrEmpty(ctx, s.path)
	infrastructure.RecordDatasetReload(ctx, s.metrics, s.path, time.Since(start), ds.Len(), err)

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.current = ds
	}
	s.mu.Unlock()

	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "dataset reload failed, keeping previous snapshot",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "dataset swapped in",
		slog.String("path", s.path),
		slog.Int("rows", ds.Len()),
		slog.Bool("missing", ds.Missing))

	s.notify(ctx, ds)
	return ds, nil
}

func (s *Store) notify(ctx context.Context, ds *dataprocessing.Dataset) {
	s.listenersMu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(ctx, ds)
	}
}
