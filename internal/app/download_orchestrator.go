package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/metrics"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

const resumeMissingMessage = "file not found during resume"

// LibraryRefresher rescans library directories
type LibraryRefresher interface {
	RescanDirectories(ctx context.Context, dirs []string) (*ScanResult, error)
}

// CacheInvalidator drops cached catalog lists
type CacheInvalidator interface {
	InvalidateLocal()
	InvalidateUnified()
}

// PosterFetcher stores a companion poster next to a media file
type PosterFetcher interface {
	FetchCompanionPoster(ctx context.Context, mediaPath, imageURL, title string, year int, kind domain.MediaKind) (string, error)
}

// DownloadNotifier reports transfer lifecycle events to the user
type DownloadNotifier interface {
	NotifyDownloadStarted(task *domain.DownloadTask)
	NotifyDownloadCompleted(task *domain.DownloadTask)
	NotifyDownloadFailed(task *domain.DownloadTask)
}

// CompletionHooks are the collaborators invoked after a transfer completes.
// Any of them may be nil.
type CompletionHooks struct {
	Library  LibraryRefresher
	Caches   CacheInvalidator
	Posters  PosterFetcher
	Notifier DownloadNotifier
}

type trackedTask struct {
	task   *domain.DownloadTask
	cancel context.CancelFunc
	done   chan struct{}

	// pubMu orders mutate-then-publish sequences so subscribers never see
	// an older snapshot after a newer one
	pubMu sync.Mutex

	// resumed tasks own the partial file left by the previous run
	resumed bool
}

// DownloadOrchestrator runs transfers from the remote server to local disk
type DownloadOrchestrator struct {
	client      domain.RemoteCatalogClient
	store       domain.TaskStore
	sink        domain.ProgressSink
	hooks       CompletionHooks
	config      domain.DownloadConfig
	logger      *zap.Logger
	multiLogger *logger.MultiLogger
	sem         *semaphore.Weighted
	sleep       func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	tasks map[string]*trackedTask

	persistMu sync.Mutex
	ctx       context.Context
	stop      context.CancelFunc
	workerWg  sync.WaitGroup
}

// NewDownloadOrchestrator creates a new download orchestrator
func NewDownloadOrchestrator(
	client domain.RemoteCatalogClient,
	store domain.TaskStore,
	sink domain.ProgressSink,
	hooks CompletionHooks,
	config domain.DownloadConfig,
	logger *zap.Logger,
	multiLogger *logger.MultiLogger,
) *DownloadOrchestrator {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 3
	}
	if config.ChunkSize < 1 {
		config.ChunkSize = 8192
	}
	if config.ProgressMinDelta <= 0 {
		config.ProgressMinDelta = 0.001
	}
	if config.ProgressMinInterval <= 0 {
		config.ProgressMinInterval = 200 * time.Millisecond
	}
	if config.OpenRetries < 0 {
		config.OpenRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, stop := context.WithCancel(context.Background())
	return &DownloadOrchestrator{
		client:      client,
		store:       store,
		sink:        sink,
		hooks:       hooks,
		config:      config,
		logger:      logger,
		multiLogger: multiLogger,
		sem:         semaphore.NewWeighted(int64(config.MaxConcurrent)),
		sleep:       sleepContext,
		tasks:       make(map[string]*trackedTask),
		ctx:         ctx,
		stop:        stop,
	}
}

// Start begins a transfer. While a task for the same media is active the
// existing task is returned instead.
func (o *DownloadOrchestrator) Start(ctx context.Context, req domain.DownloadRequest) (*domain.DownloadTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.MediaID == "" || req.RemoteID == "" {
		return nil, fmt.Errorf("media id and remote id are required")
	}
	if req.FilePath == "" {
		return nil, fmt.Errorf("destination file path is required")
	}
	if o.ctx.Err() != nil {
		return nil, fmt.Errorf("download orchestrator is shut down")
	}

	o.mu.Lock()
	for _, tt := range o.tasks {
		if tt.task.MediaID == req.MediaID && tt.task.IsActive() {
			snap := tt.task.Clone()
			o.mu.Unlock()
			o.logger.Info("Transfer already active", zap.String("task_id", snap.TaskID), zap.String("media_id", req.MediaID))
			return snap, nil
		}
	}

	task := domain.NewDownloadTask(req.MediaID, req.RemoteID, req.FilePath)
	task.Title = req.Title
	task.Year = req.Year
	task.Kind = req.Kind
	task.FinalDestination = req.FinalDestination
	task.ThumbnailURL = req.ThumbnailURL

	tt := o.trackLocked(task)
	tt.pubMu.Lock()
	snap := task.Clone()
	o.mu.Unlock()

	o.persist()
	o.publish(snap)
	tt.pubMu.Unlock()
	o.updateActiveGauge()

	o.logger.Info("Transfer queued",
		zap.String("task_id", task.TaskID),
		zap.String("media_id", task.MediaID),
		zap.String("file", task.FilePath))
	if o.multiLogger != nil {
		o.multiLogger.LogDownloadEvent("download_queued",
			zap.String("task_id", task.TaskID),
			zap.String("media_id", task.MediaID),
			zap.String("remote_id", task.RemoteID),
			zap.String("title", task.Title),
			zap.String("file_path", task.FilePath),
			zap.String("final_destination", task.FinalDestination))
	}

	o.launch(tt)
	return snap, nil
}

// GetStatus returns a snapshot of a task
func (o *DownloadOrchestrator) GetStatus(taskID string) (*domain.DownloadTask, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	tt, ok := o.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return tt.task.Clone(), nil
}

// ListAll returns snapshots of every tracked task, oldest first
func (o *DownloadOrchestrator) ListAll() []*domain.DownloadTask {
	o.mu.RLock()
	out := make([]*domain.DownloadTask, 0, len(o.tasks))
	for _, tt := range o.tasks {
		out = append(out, tt.task.Clone())
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Cancel fails an active task and stops its transfer. It returns false when
// the task already finished.
func (o *DownloadOrchestrator) Cancel(taskID string) (bool, error) {
	o.mu.RLock()
	tt, ok := o.tasks[taskID]
	o.mu.RUnlock()
	if !ok {
		return false, domain.ErrTaskNotFound
	}

	snap, err := o.update(tt, func(t *domain.DownloadTask) (bool, error) {
		return true, t.MarkFailed(domain.CancelledMessage)
	})
	if err != nil {
		return false, nil
	}

	o.mu.RLock()
	cancel := tt.cancel
	o.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	o.persist()
	o.updateActiveGauge()

	o.logger.Info("Transfer cancelled", zap.String("task_id", taskID))
	if o.multiLogger != nil {
		o.multiLogger.LogDownloadEvent("download_cancelled",
			zap.String("task_id", taskID),
			zap.String("media_id", snap.MediaID))
	}
	return true, nil
}

// CleanupFinished forgets every terminal task and returns how many were removed
func (o *DownloadOrchestrator) CleanupFinished() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	removed := 0
	for id, tt := range o.tasks {
		if tt.task.IsTerminal() {
			delete(o.tasks, id)
			removed++
		}
	}
	return removed
}

// IsActivePath reports whether path is the destination of an active transfer
func (o *DownloadOrchestrator) IsActivePath(path string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, tt := range o.tasks {
		if tt.task.IsActive() && tt.task.FilePath == path {
			return true
		}
	}
	return false
}

// Recover reloads persisted active tasks. Tasks whose file is still on disk
// restart from the beginning; the rest fail.
func (o *DownloadOrchestrator) Recover() (int, error) {
	if o.store == nil {
		return 0, nil
	}
	stored, err := o.store.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load persisted tasks: %w", err)
	}

	restarted := 0
	var toLaunch []*trackedTask
	var tracked []*trackedTask
	var snaps []*domain.DownloadTask

	o.mu.Lock()
	for _, task := range stored {
		if task == nil || !task.IsActive() {
			continue
		}
		if _, exists := o.tasks[task.TaskID]; exists {
			continue
		}

		if _, statErr := os.Stat(task.FilePath); statErr != nil {
			_ = task.MarkFailed(resumeMissingMessage)
			tt := o.trackLocked(task)
			tt.pubMu.Lock()
			tracked = append(tracked, tt)
			snaps = append(snaps, task.Clone())
			o.scheduleEviction(task.TaskID)
			o.logger.Warn("Persisted transfer cannot resume",
				zap.String("task_id", task.TaskID),
				zap.String("file", task.FilePath))
			continue
		}

		task.Status = domain.StatusPending
		task.Progress = 0
		task.BytesReceived = 0
		task.ErrorMessage = ""
		task.UpdatedAt = time.Now()
		tt := o.trackLocked(task)
		tt.resumed = true
		tt.pubMu.Lock()
		tracked = append(tracked, tt)
		toLaunch = append(toLaunch, tt)
		snaps = append(snaps, task.Clone())
		restarted++
	}
	o.mu.Unlock()

	o.persist()
	for i, s := range snaps {
		o.publish(s)
		tracked[i].pubMu.Unlock()
	}
	for _, tt := range toLaunch {
		o.launch(tt)
	}
	o.updateActiveGauge()

	if len(snaps) > 0 {
		o.logger.Info("Recovered persisted transfers",
			zap.Int("restarted", restarted),
			zap.Int("failed", len(snaps)-restarted))
		if o.multiLogger != nil {
			o.multiLogger.LogDownloadEvent("downloads_recovered",
				zap.Int("restarted", restarted),
				zap.Int("failed", len(snaps)-restarted))
		}
	}
	return restarted, nil
}

// Shutdown stops every worker. Active tasks stay persisted so the next
// Recover restarts them.
func (o *DownloadOrchestrator) Shutdown(ctx context.Context) error {
	o.stop()

	done := make(chan struct{})
	go func() {
		o.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *DownloadOrchestrator) trackLocked(task *domain.DownloadTask) *trackedTask {
	tt := &trackedTask{task: task, done: make(chan struct{})}
	o.tasks[task.TaskID] = tt
	return tt
}

func (o *DownloadOrchestrator) launch(tt *trackedTask) {
	runCtx, cancel := context.WithCancel(o.ctx)
	o.mu.Lock()
	tt.cancel = cancel
	o.mu.Unlock()

	o.workerWg.Add(1)
	go o.run(runCtx, tt)
}

func (o *DownloadOrchestrator) run(ctx context.Context, tt *trackedTask) {
	defer o.workerWg.Done()
	defer close(tt.done)

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.finishInterrupted(tt, "")
		return
	}
	defer o.sem.Release(1)

	started, err := o.transition(tt, func(t *domain.DownloadTask) error { return t.MarkDownloading() })
	if err != nil {
		o.finishInterrupted(tt, "")
		return
	}

	o.logger.Info("Transfer started",
		zap.String("task_id", started.TaskID),
		zap.String("remote_id", started.RemoteID),
		zap.String("file", started.FilePath))
	if o.multiLogger != nil {
		o.multiLogger.LogDownloadEvent("download_started",
			zap.String("task_id", started.TaskID),
			zap.String("remote_id", started.RemoteID),
			zap.String("file_path", started.FilePath))
	}
	if o.hooks.Notifier != nil {
		o.hooks.Notifier.NotifyDownloadStarted(started)
	}

	created, err := o.transfer(ctx, tt, started)
	partial := ""
	if created || tt.resumed {
		partial = started.FilePath
	}
	if err != nil {
		if ctx.Err() != nil {
			o.finishInterrupted(tt, partial)
			return
		}
		if partial != "" {
			removePartial(partial, o.logger)
		}
		o.fail(tt, failureMessage(err), err)
		return
	}

	completed, err := o.transition(tt, func(t *domain.DownloadTask) error { return t.MarkCompleted("") })
	if err != nil {
		// Cancelled between the last chunk and completion
		removePartial(started.FilePath, o.logger)
		o.finishTerminal(tt)
		return
	}

	metrics.DownloadsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	o.onCompleted(tt, completed)
	o.finishTerminal(tt)
}

// finishInterrupted handles a worker stopped by cancellation or shutdown.
// A shutdown keeps the partial file so the task can be restarted later.
func (o *DownloadOrchestrator) finishInterrupted(tt *trackedTask, partial string) {
	o.mu.RLock()
	terminal := tt.task.IsTerminal()
	o.mu.RUnlock()

	if !terminal && o.ctx.Err() != nil {
		return
	}
	if partial != "" {
		removePartial(partial, o.logger)
	}
	if terminal {
		metrics.DownloadsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
		o.finishTerminal(tt)
		return
	}
	o.fail(tt, domain.CancelledMessage, context.Canceled)
}

func (o *DownloadOrchestrator) fail(tt *trackedTask, msg string, cause error) {
	failed, err := o.transition(tt, func(t *domain.DownloadTask) error { return t.MarkFailed(msg) })
	if err != nil {
		o.finishTerminal(tt)
		return
	}
	metrics.DownloadsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()

	o.logger.Error("Transfer failed",
		zap.String("task_id", failed.TaskID),
		zap.String("message", msg),
		zap.Error(cause))
	if o.multiLogger != nil {
		o.multiLogger.LogDownloadEvent("download_failed",
			zap.String("task_id", failed.TaskID),
			zap.String("media_id", failed.MediaID),
			zap.String("error", msg))
	}
	if o.hooks.Notifier != nil {
		o.hooks.Notifier.NotifyDownloadFailed(failed)
	}
	o.finishTerminal(tt)
}

func (o *DownloadOrchestrator) finishTerminal(tt *trackedTask) {
	o.updateActiveGauge()
	o.scheduleEviction(tt.task.TaskID)
}

// transfer streams the remote item to task.FilePath. created reports whether
// the destination file was created by this call.
func (o *DownloadOrchestrator) transfer(ctx context.Context, tt *trackedTask, task *domain.DownloadTask) (created bool, err error) {
	stream, err := o.open(ctx, task.RemoteID)
	if err != nil {
		return false, err
	}
	defer stream.Body.Close()

	total := stream.ContentLength
	if total > 0 {
		o.mu.Lock()
		tt.task.TotalSizeBytes = total
		o.mu.Unlock()
	}

	if err := os.MkdirAll(filepath.Dir(task.FilePath), 0755); err != nil {
		return false, fmt.Errorf("failed to create download directory: %w", err)
	}
	f, err := os.Create(task.FilePath)
	if err != nil {
		return false, fmt.Errorf("failed to create file: %w", err)
	}

	throttle := &progressThrottle{minDelta: o.config.ProgressMinDelta, minInterval: o.config.ProgressMinInterval}
	buf := make([]byte, o.config.ChunkSize)
	var received int64

	for {
		if err := ctx.Err(); err != nil {
			f.Close()
			return true, err
		}

		n, readErr := stream.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				f.Close()
				return true, fmt.Errorf("failed to write file: %w", err)
			}
			received += int64(n)
			metrics.DownloadedBytesTotal.Add(float64(n))
			o.reportProgress(tt, received, total, throttle)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			return true, fmt.Errorf("Download interrupted: %w", readErr)
		}
	}

	if err := f.Close(); err != nil {
		return true, fmt.Errorf("failed to close file: %w", err)
	}

	if total > 0 {
		if received < total {
			return true, fmt.Errorf("Download incomplete: Expected %d bytes, got %d bytes", total, received)
		}
		return true, nil
	}
	if fi, err := os.Stat(task.FilePath); err != nil || fi.Size() == 0 {
		return true, errors.New("Download failed: No content received or file is empty")
	}
	return true, nil
}

func (o *DownloadOrchestrator) open(ctx context.Context, remoteID string) (*domain.TransferStream, error) {
	var lastErr error
	for attempt := 0; attempt <= o.config.OpenRetries; attempt++ {
		if attempt > 0 {
			delay := o.config.RetryDelay * time.Duration(1<<(attempt-1))
			o.logger.Info("Retrying transfer request",
				zap.String("remote_id", remoteID),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			if err := o.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		stream, err := o.client.OpenDownload(ctx, remoteID)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrServerOffline) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (o *DownloadOrchestrator) reportProgress(tt *trackedTask, received, total int64, throttle *progressThrottle) {
	progress := 0.0
	if total > 0 {
		progress = float64(received) / float64(total)
		if progress > 1 {
			progress = 1
		}
	}

	_, _ = o.update(tt, func(t *domain.DownloadTask) (bool, error) {
		if err := t.UpdateProgress(received, progress); err != nil {
			return false, err
		}
		return throttle.allow(progress, time.Now()), nil
	})
}

// onCompleted runs the post-completion chain once per task. Failures are
// logged and never change the completed status.
func (o *DownloadOrchestrator) onCompleted(tt *trackedTask, task *domain.DownloadTask) {
	originalDir := filepath.Dir(task.FilePath)
	finalPath := task.FilePath

	if task.FinalDestination != "" {
		moved, err := moveFile(task.FilePath, task.FinalDestination)
		if err != nil {
			o.logger.Error("Failed to move completed file",
				zap.String("task_id", task.TaskID),
				zap.String("destination", task.FinalDestination),
				zap.Error(err))
		} else if moved != task.FilePath {
			finalPath = moved
			task, _ = o.update(tt, func(t *domain.DownloadTask) (bool, error) {
				t.Relocate(moved)
				return true, nil
			})
		}
	}

	if o.hooks.Library != nil {
		dirs := []string{filepath.Dir(finalPath)}
		if originalDir != dirs[0] {
			dirs = append(dirs, originalDir)
		}
		if _, err := o.hooks.Library.RescanDirectories(o.ctx, dirs); err != nil {
			o.logger.Warn("Library rescan after transfer failed", zap.Strings("dirs", dirs), zap.Error(err))
		}
	}

	if o.hooks.Caches != nil {
		o.hooks.Caches.InvalidateLocal()
		o.hooks.Caches.InvalidateUnified()
	}

	if o.hooks.Posters != nil {
		o.workerWg.Add(1)
		go func(t *domain.DownloadTask) {
			defer o.workerWg.Done()
			path, err := o.hooks.Posters.FetchCompanionPoster(o.ctx, t.FilePath, t.ThumbnailURL, t.Title, t.Year, t.Kind)
			if err != nil {
				o.logger.Debug("Companion poster not stored", zap.String("task_id", t.TaskID), zap.Error(err))
				return
			}
			if path != "" {
				o.logger.Info("Companion poster stored", zap.String("task_id", t.TaskID), zap.String("poster", path))
			}
		}(task)
	}

	o.logger.Info("Transfer completed",
		zap.String("task_id", task.TaskID),
		zap.String("file", task.FilePath),
		zap.Int64("bytes", task.BytesReceived))
	if o.multiLogger != nil {
		o.multiLogger.LogDownloadEvent("download_completed",
			zap.String("task_id", task.TaskID),
			zap.String("media_id", task.MediaID),
			zap.String("file_path", task.FilePath),
			zap.Int64("bytes", task.BytesReceived))
	}
	if o.hooks.Notifier != nil {
		o.hooks.Notifier.NotifyDownloadCompleted(task)
	}
}

func (o *DownloadOrchestrator) transition(tt *trackedTask, fn func(*domain.DownloadTask) error) (*domain.DownloadTask, error) {
	snap, err := o.update(tt, func(t *domain.DownloadTask) (bool, error) {
		return true, fn(t)
	})
	if err != nil {
		return nil, err
	}
	o.persist()
	return snap, nil
}

// update applies fn to the task and, when fn asks for it, publishes the
// resulting snapshot before any other update of the same task can run
func (o *DownloadOrchestrator) update(tt *trackedTask, fn func(*domain.DownloadTask) (bool, error)) (*domain.DownloadTask, error) {
	tt.pubMu.Lock()
	defer tt.pubMu.Unlock()

	o.mu.Lock()
	publish, err := fn(tt.task)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	snap := tt.task.Clone()
	o.mu.Unlock()

	if publish {
		o.publish(snap)
	}
	return snap, nil
}

func (o *DownloadOrchestrator) persist() {
	if o.store == nil {
		return
	}
	o.persistMu.Lock()
	defer o.persistMu.Unlock()

	o.mu.RLock()
	active := make([]*domain.DownloadTask, 0, len(o.tasks))
	for _, tt := range o.tasks {
		if tt.task.IsActive() {
			active = append(active, tt.task.Clone())
		}
	}
	o.mu.RUnlock()

	if err := o.store.Save(active); err != nil {
		o.logger.Error("Failed to persist transfer state", zap.Error(err))
		if o.multiLogger != nil {
			o.multiLogger.LogAppError("task persistence failed", zap.Error(err))
		}
	}
}

func (o *DownloadOrchestrator) publish(task *domain.DownloadTask) {
	if o.sink != nil {
		o.sink.Publish(task)
	}
}

func (o *DownloadOrchestrator) scheduleEviction(taskID string) {
	if o.config.EvictionDelay <= 0 {
		return
	}
	time.AfterFunc(o.config.EvictionDelay, func() {
		o.mu.Lock()
		if tt, ok := o.tasks[taskID]; ok && tt.task.IsTerminal() {
			delete(o.tasks, taskID)
		}
		o.mu.Unlock()
	})
}

func (o *DownloadOrchestrator) updateActiveGauge() {
	o.mu.RLock()
	n := 0
	for _, tt := range o.tasks {
		if tt.task.IsActive() {
			n++
		}
	}
	o.mu.RUnlock()
	metrics.ActiveDownloads.Set(float64(n))
}

// progressThrottle limits progress events per task
type progressThrottle struct {
	minDelta     float64
	minInterval  time.Duration
	lastProgress float64
	lastEmit     time.Time
}

func (p *progressThrottle) allow(progress float64, now time.Time) bool {
	if p.lastEmit.IsZero() || progress-p.lastProgress >= p.minDelta || now.Sub(p.lastEmit) >= p.minInterval {
		p.lastProgress = progress
		p.lastEmit = now
		return true
	}
	return false
}

// failureMessage turns a transfer error into the message stored on the task
func failureMessage(err error) string {
	var statusErr *domain.HTTPStatusError
	var contentErr *domain.UnexpectedContentError
	switch {
	case errors.Is(err, domain.ErrAuthFailed):
		return "Authentication failed - invalid API key or insufficient permissions"
	case errors.Is(err, domain.ErrRemoteNotFound):
		return "Media item not found or not available for download"
	case errors.Is(err, domain.ErrForbidden):
		return "Access forbidden - insufficient permissions for download"
	case errors.As(err, &statusErr):
		return statusErr.Error()
	case errors.As(err, &contentErr):
		return contentErr.Error()
	case errors.Is(err, domain.ErrNotConfigured):
		return "Remote server is not configured"
	case errors.Is(err, domain.ErrServerOffline):
		return "Network error: " + err.Error()
	}
	return err.Error()
}

func removePartial(path string, log *zap.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to remove partial file", zap.String("path", path), zap.Error(err))
	}
}

// moveFile moves src into dir, copying when a rename crosses devices
func moveFile(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create destination: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if filepath.Clean(dst) == filepath.Clean(src) {
		return src, nil
	}
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}
	in.Close()
	if err := os.Remove(src); err != nil {
		return dst, fmt.Errorf("copied but failed to remove source: %w", err)
	}
	return dst, nil
}
