package domain

import (
	"io"
	"strconv"
	"time"
)

// RemoteItem is an item as returned by the remote server's items endpoint
type RemoteItem struct {
	ID                    string            `json:"Id"`
	Name                  string            `json:"Name"`
	Type                  string            `json:"Type"`
	ProductionYear        int               `json:"ProductionYear,omitempty"`
	RunTimeTicks          int64             `json:"RunTimeTicks,omitempty"`
	Overview              string            `json:"Overview,omitempty"`
	Genres                []string          `json:"Genres,omitempty"`
	Path                  string            `json:"Path,omitempty"`
	ServerID              string            `json:"ServerId,omitempty"`
	Etag                  string            `json:"Etag,omitempty"`
	ImageTags             map[string]string `json:"ImageTags,omitempty"`
	SeriesID              string            `json:"SeriesId,omitempty"`
	SeriesName            string            `json:"SeriesName,omitempty"`
	SeriesPrimaryImageTag string            `json:"SeriesPrimaryImageTag,omitempty"`
	SeasonID              string            `json:"SeasonId,omitempty"`
	SeasonName            string            `json:"SeasonName,omitempty"`
	ParentPrimaryImageTag string            `json:"ParentPrimaryImageTag,omitempty"`
	ParentThumbItemID     string            `json:"ParentThumbItemId,omitempty"`
	ParentThumbImageTag   string            `json:"ParentThumbImageTag,omitempty"`
	ParentIndexNumber     *int              `json:"ParentIndexNumber,omitempty"`
	IndexNumber           *int              `json:"IndexNumber,omitempty"`
}

// RemotePage is one page of the remote catalog
type RemotePage struct {
	Items            []RemoteItem `json:"Items"`
	TotalRecordCount int          `json:"TotalRecordCount"`
}

// TransferStream is an open byte stream of a remote item
type TransferStream struct {
	Body          io.ReadCloser
	ContentLength int64 // -1 when unknown
	ContentType   string
}

// FetchMetadata describes how a remote catalog retrieval went
type FetchMetadata struct {
	Success        bool     `json:"success"`
	PartialSuccess bool     `json:"partial_success"`
	PagesFetched   int      `json:"pages_fetched"`
	ItemsProcessed int      `json:"items_processed"`
	ValidItems     int      `json:"valid_items"`
	TotalExpected  int      `json:"total_expected"`
	RetryAttempts  int      `json:"retry_attempts"`
	FailedPages    []int    `json:"failed_pages,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	ElapsedMS      int64    `json:"retrieval_time_ms"`
}

// FetchResult bundles the converted items with retrieval metadata
type FetchResult struct {
	Items    []*CatalogItem `json:"items"`
	Metadata FetchMetadata  `json:"metadata"`
}

// ProbeInfo is technical metadata read from a media file
type ProbeInfo struct {
	DurationSeconds int    `json:"duration,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	VideoCodec      string `json:"video_codec,omitempty"`
	AudioCodec      string `json:"audio_codec,omitempty"`
	FormatName      string `json:"format_name,omitempty"`
	BitRate         string `json:"bit_rate,omitempty"`
}

// Resolution formats the frame size as WxH
func (p *ProbeInfo) Resolution() string {
	if p == nil || p.Width == 0 || p.Height == 0 {
		return ""
	}
	return strconv.Itoa(p.Width) + "x" + strconv.Itoa(p.Height)
}

// ValidationStats are cumulative counters of the local catalog validator
type ValidationStats struct {
	TotalValidations    int64         `json:"total_validations"`
	CacheHits           int64         `json:"cache_hits"`
	CacheMisses         int64         `json:"cache_misses"`
	FilesValidated      int64         `json:"files_validated"`
	FilesMissing        int64         `json:"files_missing"`
	ValidationTimeTotal time.Duration `json:"validation_time_total"`
	LastBatchSize       int           `json:"last_batch_size"`
	LastBatchDuration   time.Duration `json:"last_batch_duration"`
	AvgValidationTime   time.Duration `json:"avg_validation_time"`
	CacheHitRate        float64       `json:"cache_hit_rate"`
	CacheSize           int           `json:"cache_size"`
	CacheTTL            time.Duration `json:"cache_ttl"`
	MaxWorkers          int           `json:"max_workers"`
}
