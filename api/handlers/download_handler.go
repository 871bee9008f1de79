package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/domain"
)

// TransferService exposes the live transfer registry
type TransferService interface {
	GetStatus(taskID string) (*domain.DownloadTask, error)
	ListAll() []*domain.DownloadTask
	Cancel(taskID string) (bool, error)
	CleanupFinished() int
}

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	transfers TransferService
	logger    *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(transfers TransferService, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		transfers: transfers,
		logger:    logger,
	}
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	task, err := h.transfers.GetStatus(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	tasks := h.transfers.ListAll()
	if status := c.Query("status"); status != "" {
		filtered := make([]*domain.DownloadTask, 0, len(tasks))
		for _, t := range tasks {
			if string(t.Status) == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	active := 0
	for _, t := range tasks {
		if t.IsActive() {
			active++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     len(tasks),
		"active":    active,
		"downloads": tasks,
	})
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	cancelled, err := h.transfers.Cancel(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "download already finished"})
		return
	}

	h.logger.Info("Download cancelled via API", zap.String("id", id))
	c.JSON(http.StatusOK, gin.H{"message": "download cancelled"})
}

// CleanupDownloads handles POST /api/v1/downloads/cleanup
func (h *DownloadHandler) CleanupDownloads(c *gin.Context) {
	removed := h.transfers.CleanupFinished()
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
