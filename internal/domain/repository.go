package domain

import (
	"context"
	"time"
)

// CatalogStore defines the interface for local library persistence
type CatalogStore interface {
	// Upsert inserts or updates rows keyed by file path
	Upsert(items []*LocalMedia) error

	// DeleteByPaths removes rows for the given paths and returns the number removed
	DeleteByPaths(paths []string) (int64, error)

	// List returns every row ordered by title
	List() ([]*LocalMedia, error)

	// ListUnder returns rows whose path lies under dir
	ListUnder(dir string) ([]*LocalMedia, error)

	// FindByPath returns the row for path, or nil when absent
	FindByPath(path string) (*LocalMedia, error)

	// UpdateValidation stores the outcome of a disk check
	UpdateValidation(path string, validated bool, at time.Time) error

	// Count returns the number of rows
	Count() (int64, error)
}

// TaskStore persists active download tasks across restarts
type TaskStore interface {
	// Save replaces the stored set with tasks
	Save(tasks []*DownloadTask) error

	// Load returns the stored tasks
	Load() ([]*DownloadTask, error)
}

// RemoteCatalogClient is the network API of the remote media server
type RemoteCatalogClient interface {
	// FetchPage returns one page of catalog items starting at offset
	FetchPage(ctx context.Context, offset, limit int) (*RemotePage, error)

	// ImageURL builds an image URL for an item
	ImageURL(itemID, imageType, tag string) string

	// OpenDownload opens the byte stream of an item
	OpenDownload(ctx context.Context, remoteID string) (*TransferStream, error)
}

// FileProbe checks files on disk
type FileProbe interface {
	Exists(path string) (bool, error)
	Metadata(ctx context.Context, path string) (*ProbeInfo, error)
}

// ProgressSink receives task snapshots
type ProgressSink interface {
	Publish(task *DownloadTask)
}
