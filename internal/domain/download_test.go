package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDownloadTask(t *testing.T) {
	task := NewDownloadTask("jellyfin_abc", "abc", "/tmp/Inception (2010).mp4")

	assert.NotEmpty(t, task.TaskID)
	assert.Equal(t, "jellyfin_abc", task.MediaID)
	assert.Equal(t, "abc", task.RemoteID)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 0.0, task.Progress)
	assert.True(t, task.IsActive())
	assert.False(t, task.IsTerminal())
}

func TestDownloadTask_MarkDownloading(t *testing.T) {
	task := NewDownloadTask("m", "r", "/tmp/f.mp4")

	require.NoError(t, task.MarkDownloading())

	assert.Equal(t, StatusDownloading, task.Status)
	assert.NotNil(t, task.StartedAt)
}

func TestDownloadTask_UpdateProgress(t *testing.T) {
	task := NewDownloadTask("m", "r", "/tmp/f.mp4")
	require.NoError(t, task.MarkDownloading())

	require.NoError(t, task.UpdateProgress(500, 0.5))
	assert.Equal(t, int64(500), task.BytesReceived)
	assert.Equal(t, 0.5, task.Progress)

	assert.ErrorIs(t, task.UpdateProgress(10, 1.5), ErrInvalidProgress)
	assert.ErrorIs(t, task.UpdateProgress(10, -0.1), ErrInvalidProgress)
}

func TestDownloadTask_MarkCompleted(t *testing.T) {
	task := NewDownloadTask("m", "r", "/tmp/f.mp4")
	require.NoError(t, task.MarkDownloading())
	require.NoError(t, task.UpdateProgress(10, 0.4))

	require.NoError(t, task.MarkCompleted(""))

	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, 1.0, task.Progress)
	assert.Equal(t, "/tmp/f.mp4", task.FilePath)
	assert.NotNil(t, task.CompletedAt)
}

func TestDownloadTask_MarkFailed(t *testing.T) {
	task := NewDownloadTask("m", "r", "/tmp/f.mp4")

	assert.ErrorIs(t, task.MarkFailed(""), ErrEmptyMessage)
	assert.Equal(t, StatusPending, task.Status)

	require.NoError(t, task.MarkFailed(CancelledMessage))
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "Cancelled by user", task.ErrorMessage)
}

func TestDownloadTask_TerminalStatesAreFinal(t *testing.T) {
	completed := NewDownloadTask("m", "r", "/tmp/f.mp4")
	require.NoError(t, completed.MarkCompleted(""))

	assert.ErrorIs(t, completed.MarkFailed("late"), ErrTerminalState)
	assert.ErrorIs(t, completed.MarkDownloading(), ErrTerminalState)
	assert.ErrorIs(t, completed.UpdateProgress(1, 0.2), ErrTerminalState)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Equal(t, 1.0, completed.Progress)

	failed := NewDownloadTask("m", "r", "/tmp/f.mp4")
	require.NoError(t, failed.MarkFailed("boom"))
	assert.ErrorIs(t, failed.MarkCompleted("/tmp/x"), ErrTerminalState)
	assert.Equal(t, StatusFailed, failed.Status)
}

func TestDownloadTask_Clone(t *testing.T) {
	task := NewDownloadTask("m", "r", "/tmp/f.mp4")
	require.NoError(t, task.MarkDownloading())

	snap := task.Clone()
	require.NoError(t, task.UpdateProgress(100, 0.9))

	assert.Equal(t, 0.0, snap.Progress)
	assert.NotSame(t, task.StartedAt, snap.StartedAt)
}
