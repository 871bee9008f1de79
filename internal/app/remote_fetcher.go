package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/metrics"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

const remoteIDPrefix = "jellyfin_"

// RemoteFetcher retrieves the full remote catalog page by page
type RemoteFetcher struct {
	client      domain.RemoteCatalogClient
	config      domain.RemoteConfig
	logger      *zap.Logger
	multiLogger *logger.MultiLogger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRemoteFetcher creates a new remote fetcher
func NewRemoteFetcher(
	client domain.RemoteCatalogClient,
	config domain.RemoteConfig,
	logger *zap.Logger,
	multiLogger *logger.MultiLogger,
) *RemoteFetcher {
	if config.PageSize < 1 {
		config.PageSize = 200
	}
	if config.MaxPages < 1 {
		config.MaxPages = 1000
	}
	if config.MaxPageRetries < 1 {
		config.MaxPageRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteFetcher{
		client:      client,
		config:      config,
		logger:      logger,
		multiLogger: multiLogger,
		sleep:       sleepContext,
	}
}

// conversionResult is the outcome of converting one remote item
type conversionResult struct {
	item    *domain.CatalogItem
	skipped bool
	err     error
}

// Fetch walks the remote catalog. Failures are reported through the result metadata.
func (f *RemoteFetcher) Fetch(ctx context.Context) *domain.FetchResult {
	start := time.Now()
	result := &domain.FetchResult{Items: []*domain.CatalogItem{}}
	md := &result.Metadata

	pageSize := f.config.PageSize
	offset := 0
	expected := -1

	for page := 1; ; page++ {
		if page > f.config.MaxPages {
			md.Errors = append(md.Errors, fmt.Sprintf("page limit of %d reached, stopping", f.config.MaxPages))
			break
		}

		resp, err := f.fetchPageWithRetry(ctx, page, offset, pageSize, md)
		if err != nil {
			if page == 1 {
				md.Errors = append(md.Errors, fmt.Sprintf("failed to fetch first page: %v", err))
				result.Items = []*domain.CatalogItem{}
				f.finish(result, start, false)
				return result
			}

			md.Errors = append(md.Errors, fmt.Sprintf("page %d failed after retries: %v", page, err))
			md.FailedPages = append(md.FailedPages, page)
			md.PartialSuccess = true
			offset += pageSize

			if ctx.Err() != nil || (expected >= 0 && offset >= expected) {
				break
			}
			continue
		}

		md.PagesFetched++
		if expected < 0 {
			expected = resp.TotalRecordCount
			md.TotalExpected = expected
		} else if resp.TotalRecordCount != expected {
			md.Warnings = append(md.Warnings, fmt.Sprintf("total record count changed from %d to %d during retrieval",
				expected, resp.TotalRecordCount))
			expected = resp.TotalRecordCount
			md.TotalExpected = expected
		}

		md.ItemsProcessed += len(resp.Items)
		failed := 0
		for i := range resp.Items {
			r := f.convert(&resp.Items[i])
			switch {
			case r.err != nil:
				failed++
				md.Warnings = append(md.Warnings, fmt.Sprintf("item %q: %v", resp.Items[i].ID, r.err))
			case r.skipped:
			default:
				result.Items = append(result.Items, r.item)
			}
		}
		if failed > 0 {
			md.Warnings = append(md.Warnings, fmt.Sprintf("page %d: %d items failed conversion", page, failed))
		}

		offset += len(resp.Items)
		if len(resp.Items) < pageSize || offset >= expected {
			break
		}
	}

	md.ValidItems = len(result.Items)
	f.finish(result, start, len(result.Items) > 0 || expected == 0)
	return result
}

func (f *RemoteFetcher) fetchPageWithRetry(ctx context.Context, page, offset, limit int, md *domain.FetchMetadata) (*domain.RemotePage, error) {
	var lastErr error
	for attempt := 1; attempt <= f.config.MaxPageRetries; attempt++ {
		if attempt > 1 {
			md.RetryAttempts++
			metrics.RemotePageRetriesTotal.Inc()
			delay := f.config.RetryBaseDelay * time.Duration(1<<(attempt-2))
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := f.client.FetchPage(ctx, offset, limit)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		md.Warnings = append(md.Warnings, fmt.Sprintf("page %d attempt %d/%d failed: %v",
			page, attempt, f.config.MaxPageRetries, err))
		f.logger.Warn("Remote page request failed",
			zap.Int("page", page),
			zap.Int("offset", offset),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if errors.Is(err, domain.ErrAuthFailed) || errors.Is(err, domain.ErrNotConfigured) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (f *RemoteFetcher) finish(result *domain.FetchResult, start time.Time, success bool) {
	md := &result.Metadata
	md.Success = success
	md.ValidItems = len(result.Items)
	elapsed := time.Since(start)
	md.ElapsedMS = elapsed.Milliseconds()

	outcome := "success"
	switch {
	case !success:
		outcome = "failed"
	case md.PartialSuccess:
		outcome = "partial"
	}
	metrics.RemoteFetchesTotal.WithLabelValues(outcome).Inc()
	metrics.RemoteFetchDuration.Observe(elapsed.Seconds())

	f.logger.Info("Remote catalog retrieved",
		zap.String("outcome", outcome),
		zap.Int("pages", md.PagesFetched),
		zap.Int("items", md.ValidItems),
		zap.Int("expected", md.TotalExpected),
		zap.Int("retries", md.RetryAttempts),
		zap.Duration("elapsed", elapsed))

	if f.multiLogger != nil {
		f.multiLogger.LogCatalogEvent("remote_fetch_completed",
			zap.String("outcome", outcome),
			zap.Int("pages_fetched", md.PagesFetched),
			zap.Int("items_processed", md.ItemsProcessed),
			zap.Int("valid_items", md.ValidItems),
			zap.Int("total_expected", md.TotalExpected),
			zap.Ints("failed_pages", md.FailedPages),
			zap.Int("warnings", len(md.Warnings)),
			zap.Strings("errors", md.Errors),
			zap.Int64("elapsed_ms", md.ElapsedMS))
	}
}

func (f *RemoteFetcher) convert(ri *domain.RemoteItem) conversionResult {
	var kind domain.MediaKind
	switch ri.Type {
	case "Movie":
		kind = domain.KindMovie
	case "Series":
		kind = domain.KindShow
	case "Episode":
		kind = domain.KindEpisode
	default:
		return conversionResult{skipped: true}
	}

	if ri.ID == "" {
		return conversionResult{err: errors.New("missing item id")}
	}
	title := strings.TrimSpace(ri.Name)
	if title == "" {
		return conversionResult{err: errors.New("missing item name")}
	}
	if ri.RunTimeTicks < 0 {
		return conversionResult{err: fmt.Errorf("negative runtime %d", ri.RunTimeTicks)}
	}

	item := &domain.CatalogItem{
		ID:              remoteIDPrefix + ri.ID,
		Title:           title,
		Kind:            kind,
		Availability:    domain.AvailabilityRemoteOnly,
		Year:            ri.ProductionYear,
		DurationSeconds: int(ri.RunTimeTicks / 10_000_000),
		ThumbnailURL:    f.thumbnailURL(ri, kind),
		RemoteID:        ri.ID,
		Metadata:        remoteMetadata(ri),
	}
	if err := item.Validate(); err != nil {
		return conversionResult{err: err}
	}
	return conversionResult{item: item}
}

func (f *RemoteFetcher) thumbnailURL(ri *domain.RemoteItem, kind domain.MediaKind) string {
	if tag := ri.ImageTags["Primary"]; tag != "" {
		return f.client.ImageURL(ri.ID, "Primary", tag)
	}
	if kind != domain.KindEpisode {
		if tag := ri.ImageTags["Thumb"]; tag != "" {
			return f.client.ImageURL(ri.ID, "Thumb", tag)
		}
		return ""
	}

	switch {
	case ri.SeriesID != "" && ri.SeriesPrimaryImageTag != "":
		return f.client.ImageURL(ri.SeriesID, "Primary", ri.SeriesPrimaryImageTag)
	case ri.SeasonID != "" && ri.ParentPrimaryImageTag != "":
		return f.client.ImageURL(ri.SeasonID, "Primary", ri.ParentPrimaryImageTag)
	case ri.ParentThumbItemID != "" && ri.ParentThumbImageTag != "":
		return f.client.ImageURL(ri.ParentThumbItemID, "Thumb", ri.ParentThumbImageTag)
	}
	return ""
}

func remoteMetadata(ri *domain.RemoteItem) map[string]interface{} {
	md := map[string]interface{}{}
	if ri.Overview != "" {
		md["overview"] = ri.Overview
	}
	if len(ri.Genres) > 0 {
		md["genres"] = ri.Genres
	}
	if ri.Path != "" {
		md["path"] = ri.Path
	}
	if ri.ServerID != "" {
		md["server_id"] = ri.ServerID
	}
	if ri.Etag != "" {
		md["etag"] = ri.Etag
	}
	if ri.SeriesName != "" {
		md["series_name"] = ri.SeriesName
	}
	if ri.SeasonName != "" {
		md["season_name"] = ri.SeasonName
	}
	if ri.ParentIndexNumber != nil {
		md["season_number"] = *ri.ParentIndexNumber
	}
	if ri.IndexNumber != nil {
		md["episode_number"] = *ri.IndexNumber
	}
	return md
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
