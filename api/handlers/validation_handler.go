package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediahub-go/internal/domain"
)

// ValidationService is the maintenance surface of the local catalog validator
type ValidationService interface {
	Stats() domain.ValidationStats
	ClearCache() int
	CleanupExpired() int
	SetCacheTTL(ttl time.Duration) error
	SetMaxWorkers(n int) error
	ResetStats()
}

// ValidationHandler handles validation cache requests
type ValidationHandler struct {
	validator ValidationService
}

// NewValidationHandler creates a new validation handler
func NewValidationHandler(validator ValidationService) *ValidationHandler {
	return &ValidationHandler{validator: validator}
}

// GetStats handles GET /api/v1/validation/stats
func (h *ValidationHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.validator.Stats())
}

// ResetStats handles POST /api/v1/validation/stats/reset
func (h *ValidationHandler) ResetStats(c *gin.Context) {
	h.validator.ResetStats()
	c.JSON(http.StatusOK, gin.H{"message": "validation statistics reset"})
}

// ClearCache handles POST /api/v1/validation/cache/clear
func (h *ValidationHandler) ClearCache(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cleared": h.validator.ClearCache()})
}

// CleanupCache handles POST /api/v1/validation/cache/cleanup
func (h *ValidationHandler) CleanupCache(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"removed": h.validator.CleanupExpired()})
}

// ValidationSettingsRequest updates validator tuning
type ValidationSettingsRequest struct {
	CacheTTLSeconds *int `json:"cache_ttl_seconds,omitempty"`
	MaxWorkers      *int `json:"max_workers,omitempty"`
}

// UpdateSettings handles PUT /api/v1/validation/settings
func (h *ValidationHandler) UpdateSettings(c *gin.Context) {
	var req ValidationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.CacheTTLSeconds != nil {
		if err := h.validator.SetCacheTTL(time.Duration(*req.CacheTTLSeconds) * time.Second); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.MaxWorkers != nil {
		if err := h.validator.SetMaxWorkers(*req.MaxWorkers); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, h.validator.Stats())
}
