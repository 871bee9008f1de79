package domain

import (
	"fmt"
	"time"
)

// MediaKind is the type of a catalog entry
type MediaKind string

const (
	KindMovie   MediaKind = "movie"
	KindShow    MediaKind = "show"
	KindEpisode MediaKind = "episode"
)

// Availability describes which source an item can be obtained from
type Availability string

const (
	AvailabilityLocalOnly  Availability = "local_only"
	AvailabilityRemoteOnly Availability = "remote_only"
	AvailabilityBoth       Availability = "both"
)

// ValidKind reports whether k is a known media kind
func ValidKind(k MediaKind) bool {
	return k == KindMovie || k == KindShow || k == KindEpisode
}

// CatalogItem is a single entry of the unified catalog
type CatalogItem struct {
	ID                  string                 `json:"id"`
	Title               string                 `json:"title"`
	Kind                MediaKind              `json:"media_type"`
	Availability        Availability           `json:"availability"`
	Year                int                    `json:"year,omitempty"`
	DurationSeconds     int                    `json:"duration,omitempty"`
	ThumbnailURL        string                 `json:"thumbnail_url,omitempty"`
	CachedThumbnailPath string                 `json:"cached_thumbnail_path,omitempty"`
	LocalPath           string                 `json:"local_path,omitempty"`
	RemoteID            string                 `json:"jellyfin_id,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	FileValidated       bool                   `json:"file_validated"`
	ValidationTimestamp time.Time              `json:"validation_timestamp,omitempty"`
}

// Validate checks the structural invariants of the item
func (c *CatalogItem) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	}
	if c.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidItem)
	}
	if !ValidKind(c.Kind) {
		return fmt.Errorf("%w: unknown media type %q", ErrInvalidItem, c.Kind)
	}
	if c.Year != 0 && (c.Year < 1800 || c.Year > 2100) {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidItem, c.Year)
	}
	if c.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidItem)
	}
	switch c.Availability {
	case AvailabilityLocalOnly:
		if c.LocalPath == "" {
			return fmt.Errorf("%w: local item without local path", ErrInvalidItem)
		}
	case AvailabilityRemoteOnly:
		if c.RemoteID == "" {
			return fmt.Errorf("%w: remote item without remote id", ErrInvalidItem)
		}
	case AvailabilityBoth:
		if c.LocalPath == "" || c.RemoteID == "" {
			return fmt.Errorf("%w: merged item needs both local path and remote id", ErrInvalidItem)
		}
	default:
		return fmt.Errorf("%w: unknown availability %q", ErrInvalidItem, c.Availability)
	}
	return nil
}

// NeedsRevalidation reports whether the local claim must be re-checked on disk
func (c *CatalogItem) NeedsRevalidation(now time.Time, ttl time.Duration) bool {
	if !c.FileValidated || c.ValidationTimestamp.IsZero() {
		return true
	}
	return now.Sub(c.ValidationTimestamp) > ttl
}

// IsLocalAvailable re-derives local availability. exists is only consulted when
// the previous validation is missing or older than ttl.
func (c *CatalogItem) IsLocalAvailable(now time.Time, ttl time.Duration, exists func(string) bool) bool {
	if c.LocalPath == "" || c.Availability == AvailabilityRemoteOnly {
		return false
	}
	if !c.NeedsRevalidation(now, ttl) {
		return true
	}
	ok := exists(c.LocalPath)
	c.FileValidated = ok
	if ok {
		c.ValidationTimestamp = now
	}
	return ok
}

// IsRemoteAvailable reports whether the item can be downloaded
func (c *CatalogItem) IsRemoteAvailable() bool {
	return c.RemoteID != "" && (c.Availability == AvailabilityRemoteOnly || c.Availability == AvailabilityBoth)
}

// Clone returns a copy with its own metadata map
func (c *CatalogItem) Clone() *CatalogItem {
	cp := *c
	if c.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// LibraryComparison summarizes how the two catalogs overlap
type LibraryComparison struct {
	LocalOnly  []*CatalogItem `json:"local_only"`
	RemoteOnly []*CatalogItem `json:"remote_only"`
	Both       []*CatalogItem `json:"both"`
	Summary    struct {
		LocalOnlyCount  int `json:"local_only_count"`
		RemoteOnlyCount int `json:"remote_only_count"`
		BothCount       int `json:"both_count"`
		TotalLocal      int `json:"total_local"`
		TotalRemote     int `json:"total_remote"`
		TotalUnique     int `json:"total_unique"`
	} `json:"summary"`
}

// SyncResult reports what a synchronization pass did
type SyncResult struct {
	Success         bool               `json:"success"`
	LocalScanned    int                `json:"local_scanned"`
	UnifiedCount    int                `json:"unified_count"`
	Comparison      *LibraryComparison `json:"comparison,omitempty"`
	Error           string             `json:"error,omitempty"`
	DurationSeconds float64            `json:"duration_seconds"`
}
