package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current status of a download task
type TaskStatus string

const (
	StatusPending     TaskStatus = "pending"
	StatusDownloading TaskStatus = "downloading"
	StatusCompleted   TaskStatus = "completed"
	StatusFailed      TaskStatus = "failed"
)

// CancelledMessage is the failure message of a user cancellation
const CancelledMessage = "Cancelled by user"

// DownloadTask represents the transfer of one remote item to local storage
type DownloadTask struct {
	TaskID           string     `json:"task_id"`
	MediaID          string     `json:"media_id"`
	RemoteID         string     `json:"jellyfin_id"`
	Title            string     `json:"title,omitempty"`
	Year             int        `json:"year,omitempty"`
	Kind             MediaKind  `json:"media_type,omitempty"`
	Status           TaskStatus `json:"status"`
	Progress         float64    `json:"progress"`
	FilePath         string     `json:"file_path,omitempty"`
	FinalDestination string     `json:"final_destination,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	TotalSizeBytes   int64      `json:"total_size_bytes,omitempty"`
	BytesReceived    int64      `json:"bytes_received"`
	ThumbnailURL     string     `json:"thumbnail_url,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// NewDownloadTask creates a pending task that writes to filePath
func NewDownloadTask(mediaID, remoteID, filePath string) *DownloadTask {
	now := time.Now()
	return &DownloadTask{
		TaskID:    uuid.New().String(),
		MediaID:   mediaID,
		RemoteID:  remoteID,
		Status:    StatusPending,
		FilePath:  filePath,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkDownloading moves the task into the downloading state
func (t *DownloadTask) MarkDownloading() error {
	if t.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, t.Status)
	}
	now := time.Now()
	t.Status = StatusDownloading
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	t.UpdatedAt = now
	return nil
}

// UpdateProgress records transferred bytes and the progress fraction
func (t *DownloadTask) UpdateProgress(received int64, progress float64) error {
	if t.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, t.Status)
	}
	if progress < 0 || progress > 1 {
		return fmt.Errorf("%w: %f", ErrInvalidProgress, progress)
	}
	t.BytesReceived = received
	t.Progress = progress
	t.UpdatedAt = time.Now()
	return nil
}

// MarkCompleted finalizes the task at filePath
func (t *DownloadTask) MarkCompleted(filePath string) error {
	if t.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, t.Status)
	}
	if filePath == "" {
		filePath = t.FilePath
	}
	if filePath == "" {
		return fmt.Errorf("completed task needs a file path")
	}
	now := time.Now()
	t.Status = StatusCompleted
	t.Progress = 1.0
	t.FilePath = filePath
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkFailed fails the task with msg
func (t *DownloadTask) MarkFailed(msg string) error {
	if t.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, t.Status)
	}
	if msg == "" {
		return ErrEmptyMessage
	}
	now := time.Now()
	t.Status = StatusFailed
	t.ErrorMessage = msg
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Relocate updates the file path after the completed file was moved
func (t *DownloadTask) Relocate(path string) {
	t.FilePath = path
	t.UpdatedAt = time.Now()
}

// IsActive checks if the task is pending or downloading
func (t *DownloadTask) IsActive() bool {
	return t.Status == StatusPending || t.Status == StatusDownloading
}

// IsTerminal checks if the task is completed or failed
func (t *DownloadTask) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Clone returns an independent snapshot
func (t *DownloadTask) Clone() *DownloadTask {
	cp := *t
	if t.StartedAt != nil {
		s := *t.StartedAt
		cp.StartedAt = &s
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		cp.CompletedAt = &c
	}
	return &cp
}

// DownloadRequest describes a transfer to start
type DownloadRequest struct {
	MediaID          string
	RemoteID         string
	Title            string
	Year             int
	Kind             MediaKind
	FilePath         string
	FinalDestination string
	ThumbnailURL     string
}
