package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/domain"
)

// CatalogService is the read and sync surface of the unified catalog
type CatalogService interface {
	GetUnified(ctx context.Context, force bool) []*domain.CatalogItem
	GetLocal(ctx context.Context, force bool) []*domain.CatalogItem
	GetRemote(ctx context.Context, force bool) []*domain.CatalogItem
	GetItem(ctx context.Context, id string) (*domain.CatalogItem, error)
	Search(ctx context.Context, query string, limit int) []*domain.CatalogItem
	Compare(ctx context.Context, force bool) *domain.LibraryComparison
	Synchronize(ctx context.Context) *domain.SyncResult
	RequestSync()
	SyncRequested() bool
	LastFetchMetadata() *domain.FetchMetadata
}

// MediaDownloader starts transfers for catalog items
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaID, dir, finalDest string) (*domain.DownloadTask, error)
}

// ShowGrouper assembles episodes into shows
type ShowGrouper interface {
	Aggregate(items []*domain.CatalogItem) []*domain.Show
	Search(shows []*domain.Show, query string) []*domain.Show
}

// MediaHandler handles catalog HTTP requests
type MediaHandler struct {
	catalog    CatalogService
	downloader MediaDownloader
	shows      ShowGrouper
	logger     *zap.Logger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(catalog CatalogService, downloader MediaDownloader, shows ShowGrouper, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		catalog:    catalog,
		downloader: downloader,
		shows:      shows,
		logger:     logger,
	}
}

// ListMedia handles GET /api/v1/media
func (h *MediaHandler) ListMedia(c *gin.Context) {
	items := h.catalog.GetUnified(c.Request.Context(), queryBool(c, "force"))
	h.respondList(c, items, nil)
}

// ListLocal handles GET /api/v1/media/local
func (h *MediaHandler) ListLocal(c *gin.Context) {
	items := h.catalog.GetLocal(c.Request.Context(), queryBool(c, "force"))
	h.respondList(c, items, nil)
}

// ListRemote handles GET /api/v1/media/remote
func (h *MediaHandler) ListRemote(c *gin.Context) {
	items := h.catalog.GetRemote(c.Request.Context(), queryBool(c, "force"))
	h.respondList(c, items, h.catalog.LastFetchMetadata())
}

func (h *MediaHandler) respondList(c *gin.Context, items []*domain.CatalogItem, fetch *domain.FetchMetadata) {
	items = filterItems(items, c.Query("media_type"), c.Query("availability"))
	total := len(items)

	offset := queryInt(c, "offset", 0, 0)
	limit := queryInt(c, "limit", 0, 0)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	resp := gin.H{
		"total": total,
		"count": len(items),
		"items": items,
	}
	if fetch != nil {
		resp["fetch"] = fetch
	}
	c.JSON(http.StatusOK, resp)
}

func filterItems(items []*domain.CatalogItem, kind, availability string) []*domain.CatalogItem {
	if kind == "" && availability == "" {
		return items
	}
	out := make([]*domain.CatalogItem, 0, len(items))
	for _, item := range items {
		if kind != "" && !strings.EqualFold(string(item.Kind), kind) {
			continue
		}
		if availability != "" && !strings.EqualFold(string(item.Availability), availability) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// SearchMedia handles GET /api/v1/media/search
func (h *MediaHandler) SearchMedia(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	items := h.catalog.Search(c.Request.Context(), query, queryInt(c, "limit", 50, 500))
	c.JSON(http.StatusOK, gin.H{
		"query": query,
		"count": len(items),
		"items": items,
	})
}

// ListShows handles GET /api/v1/media/shows
func (h *MediaHandler) ListShows(c *gin.Context) {
	shows := h.shows.Aggregate(h.catalog.GetUnified(c.Request.Context(), queryBool(c, "force")))
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		shows = h.shows.Search(shows, q)
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(shows),
		"shows": shows,
	})
}

// GetMedia handles GET /api/v1/media/:id
func (h *MediaHandler) GetMedia(c *gin.Context) {
	item, err := h.catalog.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// CompareLibraries handles GET /api/v1/media/compare
func (h *MediaHandler) CompareLibraries(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Compare(c.Request.Context(), queryBool(c, "force")))
}

// Synchronize handles POST /api/v1/media/sync
func (h *MediaHandler) Synchronize(c *gin.Context) {
	result := h.catalog.Synchronize(c.Request.Context())
	if !result.Success {
		h.logger.Warn("Library synchronization failed", zap.String("error", result.Error))
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RequestSync handles POST /api/v1/media/sync/request
func (h *MediaHandler) RequestSync(c *gin.Context) {
	h.catalog.RequestSync()
	c.JSON(http.StatusAccepted, gin.H{
		"message":        "remote refresh scheduled for the next catalog read",
		"sync_requested": h.catalog.SyncRequested(),
	})
}

// DownloadMediaRequest represents a request to download a catalog item
type DownloadMediaRequest struct {
	DownloadDir      string `json:"download_dir,omitempty"`
	FinalDestination string `json:"final_destination,omitempty"`
}

// DownloadMedia handles POST /api/v1/media/:id/download
func (h *MediaHandler) DownloadMedia(c *gin.Context) {
	var req DownloadMediaRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	id := c.Param("id")
	task, err := h.downloader.DownloadMedia(c.Request.Context(), id, req.DownloadDir, req.FinalDestination)
	if err != nil {
		h.logger.Error("Failed to start download", zap.String("media_id", id), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, task)
}
