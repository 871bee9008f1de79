package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediahub",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediahub",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"method", "path"})

	RemoteFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediahub",
		Name:      "remote_fetches_total",
		Help:      "Remote catalog retrievals by outcome (success, partial, failed).",
	}, []string{"outcome"})

	RemotePageRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediahub",
		Name:      "remote_page_retries_total",
		Help:      "Total number of retried remote page requests.",
	})

	RemoteFetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mediahub",
		Name:      "remote_fetch_duration_seconds",
		Help:      "Duration of full remote catalog retrievals in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	ValidationCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediahub",
		Name:      "validation_cache_lookups_total",
		Help:      "Validation cache lookups by result (hit, miss).",
	}, []string{"result"})

	FilesMissingTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediahub",
		Name:      "validation_files_missing_total",
		Help:      "Total number of catalog files found missing on disk.",
	})

	CatalogItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mediahub",
		Name:      "catalog_items",
		Help:      "Items in the last unified catalog by availability.",
	}, []string{"availability"})

	ActiveDownloads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediahub",
		Name:      "active_downloads",
		Help:      "Number of pending or running transfers.",
	})

	DownloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediahub",
		Name:      "downloads_total",
		Help:      "Finished transfers by final status.",
	}, []string{"status"})

	DownloadedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediahub",
		Name:      "downloaded_bytes_total",
		Help:      "Total bytes written by transfers.",
	})

	ProgressSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediahub",
		Name:      "progress_subscribers",
		Help:      "Number of connected progress subscribers.",
	})

	ProgressSubscribersDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediahub",
		Name:      "progress_subscribers_dropped_total",
		Help:      "Subscribers disconnected because their queue was full.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RemoteFetchesTotal,
		RemotePageRetriesTotal,
		RemoteFetchDuration,
		ValidationCacheLookups,
		FilesMissingTotal,
		CatalogItems,
		ActiveDownloads,
		DownloadsTotal,
		DownloadedBytesTotal,
		ProgressSubscribers,
		ProgressSubscribersDropped,
	)
}
