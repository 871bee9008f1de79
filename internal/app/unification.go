package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/media"
	"github.com/yourusername/mediahub-go/internal/metrics"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

// RemoteSource returns the remote catalog
type RemoteSource interface {
	Fetch(ctx context.Context) *domain.FetchResult
}

// LocalValidator filters indexed rows down to files that still exist
type LocalValidator interface {
	Validate(ctx context.Context, items []*domain.LocalMedia) []*domain.LocalMedia
}

// LibraryScanner rescans library directories
type LibraryScanner interface {
	ScanDirectories(ctx context.Context) (*ScanResult, error)
	RescanDirectories(ctx context.Context, dirs []string) (*ScanResult, error)
}

// ThumbnailLookup resolves a remote image URL to a cached file
type ThumbnailLookup interface {
	Lookup(url string) (string, bool)
}

// listCache holds one cached item list. Its lock is never held across I/O.
type listCache struct {
	mu    sync.Mutex
	items []*domain.CatalogItem
	at    time.Time
	valid bool
}

func (c *listCache) fresh(now time.Time, ttl time.Duration) ([]*domain.CatalogItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || now.Sub(c.at) >= ttl {
		return nil, false
	}
	return copyItems(c.items), true
}

// last returns the latest stored list regardless of age
func (c *listCache) last() ([]*domain.CatalogItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		return nil, false
	}
	return copyItems(c.items), true
}

func (c *listCache) store(items []*domain.CatalogItem, now time.Time) {
	c.mu.Lock()
	c.items = items
	c.at = now
	c.valid = true
	c.mu.Unlock()
}

func (c *listCache) invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

func copyItems(items []*domain.CatalogItem) []*domain.CatalogItem {
	return append([]*domain.CatalogItem(nil), items...)
}

// UnificationEngine merges the local and remote catalogs into one list
type UnificationEngine struct {
	store       domain.CatalogStore
	validator   LocalValidator
	remote      RemoteSource
	scanner     LibraryScanner
	thumbnails  ThumbnailLookup
	ttl         time.Duration
	logger      *zap.Logger
	multiLogger *logger.MultiLogger
	now         func() time.Time

	local   listCache
	remotes listCache
	unified listCache
	flight  singleflight.Group

	syncRequested atomic.Bool
	lastFetch     atomic.Pointer[domain.FetchMetadata]
}

// NewUnificationEngine creates a new unification engine
func NewUnificationEngine(
	store domain.CatalogStore,
	validator LocalValidator,
	remote RemoteSource,
	scanner LibraryScanner,
	thumbnails ThumbnailLookup,
	config domain.CatalogConfig,
	logger *zap.Logger,
	multiLogger *logger.MultiLogger,
) *UnificationEngine {
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnificationEngine{
		store:       store,
		validator:   validator,
		remote:      remote,
		scanner:     scanner,
		thumbnails:  thumbnails,
		ttl:         config.CacheTTL,
		logger:      logger,
		multiLogger: multiLogger,
		now:         time.Now,
	}
}

// GetLocal returns validated local items
func (e *UnificationEngine) GetLocal(ctx context.Context, force bool) []*domain.CatalogItem {
	if !force {
		if items, ok := e.local.fresh(e.now(), e.ttl); ok {
			return items
		}
	}
	v, _, _ := e.flight.Do("local", func() (interface{}, error) {
		return e.loadLocal(ctx), nil
	})
	return copyItems(v.([]*domain.CatalogItem))
}

func (e *UnificationEngine) loadLocal(ctx context.Context) []*domain.CatalogItem {
	rows, err := e.store.List()
	if err != nil {
		e.logger.Error("Failed to list local catalog", zap.Error(err))
		if items, ok := e.local.last(); ok {
			return items
		}
		return []*domain.CatalogItem{}
	}

	valid := e.validator.Validate(ctx, rows)
	items := make([]*domain.CatalogItem, 0, len(valid))
	for _, row := range valid {
		items = append(items, row.ToCatalogItem())
	}
	e.local.store(items, e.now())
	return items
}

// GetRemote returns the remote items. A failed retrieval falls back to the
// previous list when there is one.
func (e *UnificationEngine) GetRemote(ctx context.Context, force bool) []*domain.CatalogItem {
	if !force {
		if items, ok := e.remotes.fresh(e.now(), e.ttl); ok {
			return items
		}
	}
	v, _, _ := e.flight.Do("remote", func() (interface{}, error) {
		return e.loadRemote(ctx), nil
	})
	return copyItems(v.([]*domain.CatalogItem))
}

func (e *UnificationEngine) loadRemote(ctx context.Context) []*domain.CatalogItem {
	result := e.remote.Fetch(ctx)
	md := result.Metadata
	e.lastFetch.Store(&md)

	if !md.Success {
		if items, ok := e.remotes.last(); ok {
			e.logger.Warn("Remote retrieval failed, serving previous list",
				zap.Strings("errors", md.Errors),
				zap.Int("items", len(items)))
			return items
		}
		return []*domain.CatalogItem{}
	}

	e.remotes.store(result.Items, e.now())
	return result.Items
}

// GetUnified returns the merged catalog sorted by title
func (e *UnificationEngine) GetUnified(ctx context.Context, force bool) []*domain.CatalogItem {
	syncRequested := e.syncRequested.Swap(false)

	if !force && !syncRequested {
		if items, ok := e.unified.fresh(e.now(), e.ttl); ok {
			return items
		}
	}

	local := e.GetLocal(ctx, force)
	remote := e.GetRemote(ctx, force || syncRequested)
	merged := e.Merge(local, remote)
	e.unified.store(merged, e.now())

	e.recordCounts(merged)
	e.logger.Info("Unified catalog generated",
		zap.Int("items", len(merged)),
		zap.Int("local", len(local)),
		zap.Int("remote", len(remote)),
		zap.Bool("sync_requested", syncRequested))

	return copyItems(merged)
}

// RequestSync makes the next unified retrieval refresh the remote list
func (e *UnificationEngine) RequestSync() {
	e.syncRequested.Store(true)
	e.logger.Info("Remote sync requested")
}

// SyncRequested reports whether a remote refresh is pending
func (e *UnificationEngine) SyncRequested() bool {
	return e.syncRequested.Load()
}

// InvalidateLocal drops the cached local list
func (e *UnificationEngine) InvalidateLocal() {
	e.local.invalidate()
}

// InvalidateUnified drops the cached unified list
func (e *UnificationEngine) InvalidateUnified() {
	e.unified.invalidate()
}

// LastFetchMetadata returns the metadata of the latest remote retrieval
func (e *UnificationEngine) LastFetchMetadata() *domain.FetchMetadata {
	return e.lastFetch.Load()
}

// GetItem looks up a unified item by id
func (e *UnificationEngine) GetItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	for _, item := range e.GetUnified(ctx, false) {
		if item.ID == id {
			return item.Clone(), nil
		}
	}
	return nil, domain.ErrMediaNotFound
}

// Search ranks unified items by fuzzy title match
func (e *UnificationEngine) Search(ctx context.Context, query string, limit int) []*domain.CatalogItem {
	items := e.GetUnified(ctx, false)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []*domain.CatalogItem{}
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = strings.ToLower(item.Title)
	}

	matches := fuzzy.Find(query, titles)
	out := make([]*domain.CatalogItem, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.Index])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Compare splits the catalogs into local only, remote only and shared items
func (e *UnificationEngine) Compare(ctx context.Context, force bool) *domain.LibraryComparison {
	local := e.GetLocal(ctx, force)
	remote := e.GetRemote(ctx, force)

	localByKey, localOrder := indexByKey(local)
	remoteByKey, remoteOrder := indexByKey(remote)

	cmp := &domain.LibraryComparison{
		LocalOnly:  []*domain.CatalogItem{},
		RemoteOnly: []*domain.CatalogItem{},
		Both:       []*domain.CatalogItem{},
	}
	for _, key := range localOrder {
		if r, ok := remoteByKey[key]; ok {
			cmp.Both = append(cmp.Both, e.mergeItems(localByKey[key], r))
		} else {
			cmp.LocalOnly = append(cmp.LocalOnly, localByKey[key])
		}
	}
	for _, key := range remoteOrder {
		if _, ok := localByKey[key]; !ok {
			cmp.RemoteOnly = append(cmp.RemoteOnly, remoteByKey[key])
		}
	}

	cmp.Summary.LocalOnlyCount = len(cmp.LocalOnly)
	cmp.Summary.RemoteOnlyCount = len(cmp.RemoteOnly)
	cmp.Summary.BothCount = len(cmp.Both)
	cmp.Summary.TotalLocal = len(local)
	cmp.Summary.TotalRemote = len(remote)
	cmp.Summary.TotalUnique = len(cmp.LocalOnly) + len(cmp.RemoteOnly) + len(cmp.Both)
	return cmp
}

// Synchronize rescans the library and rebuilds every list
func (e *UnificationEngine) Synchronize(ctx context.Context) *domain.SyncResult {
	start := time.Now()
	result := &domain.SyncResult{}

	if e.scanner != nil {
		scan, err := e.scanner.ScanDirectories(ctx)
		if err != nil {
			result.Error = err.Error()
			result.DurationSeconds = time.Since(start).Seconds()
			e.logger.Error("Library sync failed", zap.Error(err))
			return result
		}
		result.LocalScanned = scan.Scanned
	}

	e.InvalidateLocal()
	e.InvalidateUnified()

	result.Comparison = e.Compare(ctx, true)
	result.UnifiedCount = len(e.GetUnified(ctx, false))
	result.Success = true
	result.DurationSeconds = time.Since(start).Seconds()

	if e.multiLogger != nil {
		e.multiLogger.LogCatalogEvent("library_sync_completed",
			zap.Int("local_scanned", result.LocalScanned),
			zap.Int("unified", result.UnifiedCount),
			zap.Int("local_only", result.Comparison.Summary.LocalOnlyCount),
			zap.Int("remote_only", result.Comparison.Summary.RemoteOnlyCount),
			zap.Int("both", result.Comparison.Summary.BothCount),
			zap.Float64("duration_seconds", result.DurationSeconds))
	}
	return result
}

// Merge deduplicates local and remote items by normalized title
func (e *UnificationEngine) Merge(local, remote []*domain.CatalogItem) []*domain.CatalogItem {
	localByKey, localOrder := indexByKey(local)
	remoteByKey, remoteOrder := indexByKey(remote)

	out := make([]*domain.CatalogItem, 0, len(localOrder)+len(remoteOrder))
	for _, key := range localOrder {
		if r, ok := remoteByKey[key]; ok {
			out = append(out, e.mergeItems(localByKey[key], r))
		} else {
			out = append(out, localByKey[key])
		}
	}
	for _, key := range remoteOrder {
		if _, ok := localByKey[key]; !ok {
			out = append(out, remoteByKey[key])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out
}

func (e *UnificationEngine) mergeItems(local, remote *domain.CatalogItem) *domain.CatalogItem {
	md := make(map[string]interface{}, len(local.Metadata)+len(remote.Metadata))
	for k, v := range remote.Metadata {
		md[k] = v
	}
	for k, v := range local.Metadata {
		md[k] = v
	}

	cached := local.CachedThumbnailPath
	if cached == "" && remote.ThumbnailURL != "" && e.thumbnails != nil {
		if path, ok := e.thumbnails.Lookup(remote.ThumbnailURL); ok {
			cached = path
		}
	}

	year := local.Year
	if year == 0 {
		year = remote.Year
	}
	duration := local.DurationSeconds
	if duration == 0 {
		duration = remote.DurationSeconds
	}

	return &domain.CatalogItem{
		ID:                  local.ID,
		Title:               local.Title,
		Kind:                local.Kind,
		Availability:        domain.AvailabilityBoth,
		Year:                year,
		DurationSeconds:     duration,
		ThumbnailURL:        remote.ThumbnailURL,
		CachedThumbnailPath: cached,
		LocalPath:           local.LocalPath,
		RemoteID:            remote.RemoteID,
		Metadata:            md,
		FileValidated:       local.FileValidated,
		ValidationTimestamp: local.ValidationTimestamp,
	}
}

func (e *UnificationEngine) recordCounts(items []*domain.CatalogItem) {
	counts := map[domain.Availability]int{}
	for _, item := range items {
		counts[item.Availability]++
	}
	for _, a := range []domain.Availability{domain.AvailabilityLocalOnly, domain.AvailabilityRemoteOnly, domain.AvailabilityBoth} {
		metrics.CatalogItems.WithLabelValues(string(a)).Set(float64(counts[a]))
	}
}

// dedupKey is the normalized title, or the lowercased title when
// normalization leaves nothing (e.g. a title that is only a year)
func dedupKey(title string) string {
	if key := media.NormalizeTitle(title); key != "" {
		return key
	}
	return strings.ToLower(strings.TrimSpace(title))
}

// indexByKey keeps the first item seen for each key
func indexByKey(items []*domain.CatalogItem) (map[string]*domain.CatalogItem, []string) {
	byKey := make(map[string]*domain.CatalogItem, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		key := dedupKey(item.Title)
		if _, dup := byKey[key]; dup {
			continue
		}
		byKey[key] = item
		order = append(order, key)
	}
	return byKey, order
}
