package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/media"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

const defaultSettleDelay = 2 * time.Second

// FileIndexer keeps the local index in step with single files
type FileIndexer interface {
	Directories() []string
	AddFile(ctx context.Context, path string) (*domain.LocalMedia, error)
	RemoveFile(path string) (bool, error)
}

// CacheMaintainer drops expired validation cache entries
type CacheMaintainer interface {
	CleanupExpired() int
}

// ActivePathChecker reports files that are still being written by a transfer
type ActivePathChecker interface {
	IsActivePath(path string) bool
}

// LibraryWatcher follows filesystem changes under the library directories
// and runs periodic cache maintenance.
type LibraryWatcher struct {
	library     FileIndexer
	caches      CacheInvalidator
	maintainer  CacheMaintainer
	active      ActivePathChecker
	interval    time.Duration
	settle      time.Duration
	watch       bool
	logger      *zap.Logger
	multiLogger *logger.MultiLogger

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	workerWg sync.WaitGroup
	watcher  *fsnotify.Watcher
	pending  map[string]time.Time
}

// NewLibraryWatcher creates a new library watcher
func NewLibraryWatcher(
	library FileIndexer,
	caches CacheInvalidator,
	maintainer CacheMaintainer,
	active ActivePathChecker,
	config domain.LibraryConfig,
	logger *zap.Logger,
	multiLogger *logger.MultiLogger,
) *LibraryWatcher {
	interval := config.MaintenanceInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &LibraryWatcher{
		library:     library,
		caches:      caches,
		maintainer:  maintainer,
		active:      active,
		interval:    interval,
		settle:      defaultSettleDelay,
		watch:       config.Watch,
		logger:      logger,
		multiLogger: multiLogger,
		pending:     make(map[string]time.Time),
	}
}

// Start begins watching and maintenance
func (w *LibraryWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("library watcher already running")
	}

	var events chan fsnotify.Event
	var errs chan error
	if w.watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			w.mu.Unlock()
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		w.watcher = watcher
		events = watcher.Events
		errs = watcher.Errors
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.mu.Unlock()

	if w.watcher != nil {
		for _, dir := range w.library.Directories() {
			w.addTree(dir)
		}
	}

	if w.multiLogger != nil {
		w.multiLogger.LogCatalogEvent("library_watcher_started",
			zap.Bool("watch", w.watch),
			zap.Duration("maintenance_interval", w.interval))
	}

	w.workerWg.Add(1)
	go w.loop(ctx, events, errs)
	return nil
}

// Stop stops watching and waits for the loop to exit
func (w *LibraryWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("library watcher not running")
	}
	w.running = false
	close(w.stopChan)
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	w.workerWg.Wait()
	if watcher != nil {
		watcher.Close()
	}

	if w.multiLogger != nil {
		w.multiLogger.LogCatalogEvent("library_watcher_stopped")
	}
	return nil
}

// IsRunning returns whether the watcher is running
func (w *LibraryWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *LibraryWatcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	defer w.workerWg.Done()

	maintenance := time.NewTicker(w.interval)
	defer maintenance.Stop()

	flushEvery := w.settle / 2
	if flushEvery <= 0 {
		flushEvery = 10 * time.Millisecond
	}
	flush := time.NewTicker(flushEvery)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("Filesystem watcher error", zap.Error(err))
		case now := <-flush.C:
			w.flushSettled(ctx, now)
		case <-maintenance.C:
			w.runMaintenance()
		}
	}
}

func (w *LibraryWatcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	if isHiddenPath(path) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		delete(w.pending, path)
		if !media.IsSupportedMediaFile(path) {
			return
		}
		removed, err := w.library.RemoveFile(path)
		if err != nil {
			w.logger.Warn("Failed to remove file from index", zap.String("path", path), zap.Error(err))
			return
		}
		if removed {
			w.logger.Info("Media file removed", zap.String("path", path))
			w.invalidate()
		}

	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if ev.Has(fsnotify.Create) {
			if fi, err := os.Stat(path); err == nil && fi.IsDir() {
				w.addTree(path)
				return
			}
		}
		if media.IsSupportedMediaFile(path) {
			w.pending[path] = time.Now()
		}
	}
}

// flushSettled indexes files that have not changed for the settle delay
func (w *LibraryWatcher) flushSettled(ctx context.Context, now time.Time) {
	changed := false
	for path, seen := range w.pending {
		if now.Sub(seen) < w.settle {
			continue
		}
		if w.active != nil && w.active.IsActivePath(path) {
			continue
		}
		delete(w.pending, path)

		row, err := w.library.AddFile(ctx, path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("Failed to index new file", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		changed = true
		w.logger.Info("Media file indexed", zap.String("path", path), zap.String("title", row.Title))
	}
	if changed {
		w.invalidate()
	}
}

func (w *LibraryWatcher) runMaintenance() {
	if w.maintainer == nil {
		return
	}
	if removed := w.maintainer.CleanupExpired(); removed > 0 {
		w.logger.Debug("Expired validation entries removed", zap.Int("count", removed))
	}
}

func (w *LibraryWatcher) invalidate() {
	if w.caches == nil {
		return
	}
	w.caches.InvalidateLocal()
	w.caches.InvalidateUnified()
}

func (w *LibraryWatcher) addTree(root string) {
	w.mu.RLock()
	watcher := w.watcher
	w.mu.RUnlock()
	if watcher == nil {
		return
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("Failed to walk directory", zap.String("dir", root), zap.Error(err))
	}
}

func isHiddenPath(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
