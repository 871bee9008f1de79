package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/metrics"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

type checkOutcome int

const (
	checkSkipped checkOutcome = iota
	checkValid
	checkMissing
)

// CatalogValidator confirms that indexed files still exist and prunes the ones that do not
type CatalogValidator struct {
	store       domain.CatalogStore
	probe       domain.FileProbe
	cache       *ValidationCache
	logger      *zap.Logger
	multiLogger *logger.MultiLogger
	now         func() time.Time

	mu         sync.Mutex
	maxWorkers int
	threshold  int
	batchSize  int
	stats      domain.ValidationStats
	batches    int64
}

// NewCatalogValidator creates a new catalog validator
func NewCatalogValidator(
	store domain.CatalogStore,
	probe domain.FileProbe,
	config domain.ValidationConfig,
	logger *zap.Logger,
	multiLogger *logger.MultiLogger,
) *CatalogValidator {
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 10
	}
	if config.DeleteBatchSize < 1 {
		config.DeleteBatchSize = 500
	}
	if config.CacheTTL < 0 {
		config.CacheTTL = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogValidator{
		store:       store,
		probe:       probe,
		cache:       NewValidationCache(config.CacheTTL),
		logger:      logger,
		multiLogger: multiLogger,
		now:         time.Now,
		maxWorkers:  config.MaxWorkers,
		threshold:   config.ConcurrencyThreshold,
		batchSize:   config.DeleteBatchSize,
	}
}

// Validate returns the items whose files are present, preserving input order.
// Rows confirmed missing are deleted from the store.
func (v *CatalogValidator) Validate(ctx context.Context, items []*domain.LocalMedia) []*domain.LocalMedia {
	started := time.Now()
	now := v.now()

	v.mu.Lock()
	workers, threshold, batchSize := v.maxWorkers, v.threshold, v.batchSize
	v.mu.Unlock()

	outcomes := make([]checkOutcome, len(items))
	var needsCheck []int
	var hits, misses int64

	for i, item := range items {
		if item == nil {
			continue
		}
		if item.FileValidated && !item.ValidatedAt.IsZero() && v.cache.Trusted(item.FilePath, now) {
			outcomes[i] = checkValid
			hits++
			continue
		}
		misses++
		needsCheck = append(needsCheck, i)
	}
	metrics.ValidationCacheLookups.WithLabelValues("hit").Add(float64(hits))
	metrics.ValidationCacheLookups.WithLabelValues("miss").Add(float64(misses))

	if len(needsCheck) > threshold && workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, idx := range needsCheck {
			idx := idx
			g.Go(func() error {
				outcomes[idx] = v.checkOne(gctx, items[idx])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, idx := range needsCheck {
			outcomes[idx] = v.checkOne(ctx, items[idx])
		}
	}

	valid := make([]*domain.LocalMedia, 0, len(items))
	var missing []string
	var validated int64
	for i, outcome := range outcomes {
		switch outcome {
		case checkValid:
			valid = append(valid, items[i])
		case checkMissing:
			missing = append(missing, items[i].FilePath)
		}
	}
	for _, idx := range needsCheck {
		if outcomes[idx] == checkValid {
			validated++
		}
	}

	removed := v.deleteMissing(missing, batchSize)
	elapsed := time.Since(started)

	v.mu.Lock()
	v.stats.TotalValidations += int64(len(items))
	v.stats.CacheHits += hits
	v.stats.CacheMisses += misses
	v.stats.FilesValidated += validated
	v.stats.FilesMissing += int64(len(missing))
	v.stats.ValidationTimeTotal += elapsed
	v.stats.LastBatchSize = len(items)
	v.stats.LastBatchDuration = elapsed
	v.batches++
	v.mu.Unlock()

	if len(missing) > 0 {
		metrics.FilesMissingTotal.Add(float64(len(missing)))
		v.logger.Info("Removed missing files from catalog",
			zap.Int("missing", len(missing)),
			zap.Int64("deleted", removed))
	}

	if v.multiLogger != nil {
		v.multiLogger.LogCatalogEvent("local_validation_completed",
			zap.Int("items", len(items)),
			zap.Int("valid", len(valid)),
			zap.Int("missing", len(missing)),
			zap.Int64("cache_hits", hits),
			zap.Int64("cache_misses", misses),
			zap.Duration("elapsed", elapsed))
	}

	return valid
}

func (v *CatalogValidator) checkOne(ctx context.Context, item *domain.LocalMedia) checkOutcome {
	if ctx.Err() != nil {
		return checkSkipped
	}

	exists, err := v.probe.Exists(item.FilePath)
	if err != nil || !exists {
		if err != nil {
			v.logger.Debug("File check failed", zap.String("path", item.FilePath), zap.Error(err))
		}
		v.cache.Evict(item.FilePath)
		item.FileValidated = false
		return checkMissing
	}

	at := v.now()
	item.FileValidated = true
	item.ValidatedAt = at
	v.cache.Put(item.FilePath, at)

	if err := v.store.UpdateValidation(item.FilePath, true, at); err != nil {
		v.logger.Warn("Failed to persist validation result",
			zap.String("path", item.FilePath),
			zap.Error(err))
	}
	return checkValid
}

func (v *CatalogValidator) deleteMissing(paths []string, batchSize int) int64 {
	var removed int64
	for start := 0; start < len(paths); start += batchSize {
		end := start + batchSize
		if end > len(paths) {
			end = len(paths)
		}
		n, err := v.store.DeleteByPaths(paths[start:end])
		if err != nil {
			v.logger.Error("Failed to delete missing files from catalog",
				zap.Int("batch", len(paths[start:end])),
				zap.Error(err))
			if v.multiLogger != nil {
				v.multiLogger.LogAppError("catalog delete failed", zap.Error(err))
			}
			continue
		}
		removed += n
	}
	return removed
}

// Stats returns the cumulative counters
func (v *CatalogValidator) Stats() domain.ValidationStats {
	v.mu.Lock()
	stats := v.stats
	batches := v.batches
	stats.MaxWorkers = v.maxWorkers
	v.mu.Unlock()

	if batches > 0 {
		stats.AvgValidationTime = stats.ValidationTimeTotal / time.Duration(batches)
	}
	if lookups := stats.CacheHits + stats.CacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(lookups)
	}
	stats.CacheSize = v.cache.Len()
	stats.CacheTTL = v.cache.TTL()
	return stats
}

// ClearCache drops every cached validation
func (v *CatalogValidator) ClearCache() int {
	n := v.cache.Clear()
	v.logger.Info("Validation cache cleared", zap.Int("entries", n))
	return n
}

// CleanupExpired drops cached validations older than the TTL
func (v *CatalogValidator) CleanupExpired() int {
	return v.cache.CleanupExpired(v.now())
}

// SetCacheTTL changes how long a validation is trusted
func (v *CatalogValidator) SetCacheTTL(ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("cache ttl cannot be negative: %s", ttl)
	}
	v.cache.SetTTL(ttl)
	return nil
}

// SetMaxWorkers changes the size of the validation pool
func (v *CatalogValidator) SetMaxWorkers(n int) error {
	if n < 1 {
		return fmt.Errorf("max workers must be at least 1, got %d", n)
	}
	v.mu.Lock()
	v.maxWorkers = n
	v.mu.Unlock()
	return nil
}

// ResetStats zeroes the counters
func (v *CatalogValidator) ResetStats() {
	v.mu.Lock()
	v.stats = domain.ValidationStats{}
	v.batches = 0
	v.mu.Unlock()
}
