package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/media"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

const thumbnailPrefetchTimeout = 15 * time.Second

// ItemResolver finds a unified catalog item by id
type ItemResolver interface {
	GetItem(ctx context.Context, id string) (*domain.CatalogItem, error)
}

// DownloadStarter starts transfers
type DownloadStarter interface {
	Start(ctx context.Context, req domain.DownloadRequest) (*domain.DownloadTask, error)
}

// ThumbnailFetcher stores remote thumbnails locally
type ThumbnailFetcher interface {
	Lookup(url string) (string, bool)
	Fetch(ctx context.Context, mediaID, url string) (string, error)
}

// MediaManager turns catalog items into transfers
type MediaManager struct {
	items       ItemResolver
	downloads   DownloadStarter
	thumbnails  ThumbnailFetcher
	downloadDir string
	logger      *zap.Logger
	multiLogger *logger.MultiLogger

	prefetches sync.WaitGroup
}

// NewMediaManager creates a new media manager
func NewMediaManager(
	items ItemResolver,
	downloads DownloadStarter,
	thumbnails ThumbnailFetcher,
	downloadDir string,
	logger *zap.Logger,
	multiLogger *logger.MultiLogger,
) *MediaManager {
	return &MediaManager{
		items:       items,
		downloads:   downloads,
		thumbnails:  thumbnails,
		downloadDir: downloadDir,
		logger:      logger,
		multiLogger: multiLogger,
	}
}

// DownloadMedia starts a transfer of a remote item into dir, or the default
// download directory when dir is empty. finalDest is optional.
func (m *MediaManager) DownloadMedia(ctx context.Context, mediaID, dir, finalDest string) (*domain.DownloadTask, error) {
	item, err := m.items.GetItem(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if !item.IsRemoteAvailable() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotRemote, mediaID)
	}

	if dir == "" {
		dir = m.downloadDir
	}
	if dir == "" {
		return nil, fmt.Errorf("no download directory configured")
	}

	req := domain.DownloadRequest{
		MediaID:          item.ID,
		RemoteID:         item.RemoteID,
		Title:            item.Title,
		Year:             item.Year,
		Kind:             item.Kind,
		FilePath:         filepath.Join(dir, media.DownloadFilename(item.Title, item.Year, item.Kind)),
		FinalDestination: finalDest,
		ThumbnailURL:     item.ThumbnailURL,
	}

	task, err := m.downloads.Start(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to start download: %w", err)
	}

	m.logger.Info("Download requested",
		zap.String("media_id", mediaID),
		zap.String("task_id", task.TaskID),
		zap.String("file", task.FilePath))

	if m.thumbnails != nil && item.ThumbnailURL != "" {
		m.prefetches.Add(1)
		go func() {
			defer m.prefetches.Done()
			m.prefetchThumbnail(item)
		}()
	}
	return task, nil
}

// Shutdown waits for running thumbnail prefetches
func (m *MediaManager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.prefetches.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// prefetchThumbnail outlives the request that triggered it
func (m *MediaManager) prefetchThumbnail(item *domain.CatalogItem) {
	if _, ok := m.thumbnails.Lookup(item.ThumbnailURL); ok {
		return
	}

	fetchCtx, cancel := context.WithTimeout(context.Background(), thumbnailPrefetchTimeout)
	defer cancel()
	if _, err := m.thumbnails.Fetch(fetchCtx, item.ID, item.ThumbnailURL); err != nil {
		m.logger.Debug("Thumbnail prefetch failed",
			zap.String("media_id", item.ID),
			zap.Error(err))
	}
}
