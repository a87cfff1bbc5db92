package nesting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultSettleDelay is how long the watcher waits after the last file event
// before it reports the changed programs.
const DefaultSettleDelay = 500 * time.Millisecond

// ChangeFunc receives the program names found in export files that changed.
type ChangeFunc func(ctx context.Context, programs []string) error

// Watcher reports programs whose export files were written or created.
type Watcher struct {
	dir    string
	delay  time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// NewWatcher creates a watcher over an export directory.
func NewWatcher(dir string, delay time.Duration, logger zerolog.Logger) *Watcher {
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	return &Watcher{
		dir:     dir,
		delay:   delay,
		logger:  logger.With().Str("component", "nesting-watcher").Logger(),
		pending: make(map[string]struct{}),
	}
}

// Run watches the directory until ctx ends. Bursts of events are collapsed
// into one onChange call per settle delay.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info().Str("dir", w.dir).Msg("Watching nesting exports")

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !IsExportFile(event.Name) {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Export file changed")

			w.schedule(ctx, event.Name, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string, onChange ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		if err := w.flush(ctx, onChange); err != nil {
			w.logger.Error().Err(err).Msg("Failed to process changed exports")
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// flush reads the pending files and hands their program names to onChange.
func (w *Watcher) flush(ctx context.Context, onChange ChangeFunc) error {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if ctx.Err() != nil {
		return nil
	}
	sort.Strings(paths)

	seen := make(map[string]struct{})
	var programs []string
	for _, path := range paths {
		rows, err := ReadExportFile(path)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable export")
			continue
		}
		for _, row := range rows {
			name := newRowReader(row).str("ProgramName")
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			programs = append(programs, name)
		}
	}

	if len(programs) == 0 {
		return nil
	}

	w.logger.Info().
		Int("files", len(paths)).
		Int("programs", len(programs)).
		Msg("Exports changed")

	return onChange(ctx, programs)
}
