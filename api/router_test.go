package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/api/handlers"
	"github.com/yourusername/mediahub-go/internal/app"
	"github.com/yourusername/mediahub-go/internal/domain"
)

type fakeCatalog struct {
	items         []*domain.CatalogItem
	syncRequested bool
	forced        []bool
}

func (f *fakeCatalog) GetUnified(ctx context.Context, force bool) []*domain.CatalogItem {
	f.forced = append(f.forced, force)
	return f.items
}

func (f *fakeCatalog) GetLocal(ctx context.Context, force bool) []*domain.CatalogItem {
	var out []*domain.CatalogItem
	for _, it := range f.items {
		if it.LocalPath != "" {
			out = append(out, it)
		}
	}
	return out
}

func (f *fakeCatalog) GetRemote(ctx context.Context, force bool) []*domain.CatalogItem {
	var out []*domain.CatalogItem
	for _, it := range f.items {
		if it.RemoteID != "" {
			out = append(out, it)
		}
	}
	return out
}

func (f *fakeCatalog) GetItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	for _, it := range f.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, domain.ErrMediaNotFound
}

func (f *fakeCatalog) Search(ctx context.Context, query string, limit int) []*domain.CatalogItem {
	var out []*domain.CatalogItem
	for _, it := range f.items {
		if strings.Contains(strings.ToLower(it.Title), strings.ToLower(query)) {
			out = append(out, it)
		}
	}
	return out
}

func (f *fakeCatalog) Compare(ctx context.Context, force bool) *domain.LibraryComparison {
	cmp := &domain.LibraryComparison{}
	cmp.Summary.TotalUnique = len(f.items)
	return cmp
}

func (f *fakeCatalog) Synchronize(ctx context.Context) *domain.SyncResult {
	return &domain.SyncResult{Success: true, UnifiedCount: len(f.items)}
}

func (f *fakeCatalog) RequestSync()        { f.syncRequested = true }
func (f *fakeCatalog) SyncRequested() bool { return f.syncRequested }

func (f *fakeCatalog) LastFetchMetadata() *domain.FetchMetadata {
	return &domain.FetchMetadata{Success: true, PagesFetched: 1}
}

type fakeDownloader struct {
	dir, dest string
}

func (f *fakeDownloader) DownloadMedia(ctx context.Context, mediaID, dir, finalDest string) (*domain.DownloadTask, error) {
	if mediaID == "local_1" {
		return nil, domain.ErrNotRemote
	}
	f.dir, f.dest = dir, finalDest
	return domain.NewDownloadTask(mediaID, "r", "/dl/x.mp4"), nil
}

type fakeTransfers struct {
	tasks map[string]*domain.DownloadTask
}

func (f *fakeTransfers) GetStatus(id string) (*domain.DownloadTask, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t, nil
}

func (f *fakeTransfers) ListAll() []*domain.DownloadTask {
	out := make([]*domain.DownloadTask, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out
}

func (f *fakeTransfers) Cancel(id string) (bool, error) {
	t, ok := f.tasks[id]
	if !ok {
		return false, domain.ErrTaskNotFound
	}
	return t.MarkFailed(domain.CancelledMessage) == nil, nil
}

func (f *fakeTransfers) CleanupFinished() int { return 2 }

type fakeValidation struct {
	ttl     time.Duration
	workers int
}

func (f *fakeValidation) Stats() domain.ValidationStats {
	return domain.ValidationStats{CacheTTL: f.ttl, MaxWorkers: f.workers}
}
func (f *fakeValidation) ClearCache() int     { return 3 }
func (f *fakeValidation) CleanupExpired() int { return 1 }
func (f *fakeValidation) SetCacheTTL(ttl time.Duration) error {
	if ttl < 0 {
		return errors.New("ttl must not be negative")
	}
	f.ttl = ttl
	return nil
}
func (f *fakeValidation) SetMaxWorkers(n int) error {
	if n < 1 {
		return errors.New("max workers must be at least 1")
	}
	f.workers = n
	return nil
}
func (f *fakeValidation) ResetStats() {}

type routerFixture struct {
	router     http.Handler
	catalog    *fakeCatalog
	downloader *fakeDownloader
	transfers  *fakeTransfers
	progress   *app.ProgressBroadcaster
	ready      error
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		catalog: &fakeCatalog{items: []*domain.CatalogItem{
			{ID: "local_1", Title: "Home Movie", Kind: domain.KindMovie, Availability: domain.AvailabilityLocalOnly, LocalPath: "/m/home.mp4"},
			{ID: "jellyfin_2", Title: "Inception", Kind: domain.KindMovie, Availability: domain.AvailabilityRemoteOnly, RemoteID: "2"},
			{ID: "jellyfin_3", Title: "Show S01E01", Kind: domain.KindEpisode, Availability: domain.AvailabilityRemoteOnly, RemoteID: "3"},
		}},
		downloader: &fakeDownloader{},
		transfers: &fakeTransfers{tasks: map[string]*domain.DownloadTask{
			"t1": domain.NewDownloadTask("jellyfin_2", "2", "/dl/Inception (2010).mp4"),
		}},
		progress: app.NewProgressBroadcaster(4, zap.NewNop()),
	}
	reg := prometheus.NewRegistry()
	f.router = SetupRouter(Services{
		Catalog:    f.catalog,
		Downloader: f.downloader,
		Shows:      app.NewShowAggregator(zap.NewNop()),
		Transfers:  f.transfers,
		Progress:   f.progress,
		Validation: &fakeValidation{ttl: 5 * time.Minute, workers: 10},
		Readiness: map[string]handlers.ReadinessCheck{
			"database": func(ctx context.Context) error { return f.ready },
		},
		Gatherer: reg,
		LogsDir:  t.TempDir(),
	}, zap.NewNop(), nil)
	return f
}

func (f *routerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRouter_HealthAndReady(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/ready", "").Code)

	f.ready = errors.New("database is locked")
	w = f.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database is locked")
}

func TestRouter_Metrics(t *testing.T) {
	f := newRouterFixture(t)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/metrics", "").Code)
}

func TestRouter_ListMediaWithFilters(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(http.MethodGet, "/api/v1/media?force=true&media_type=movie", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, []bool{true}, f.catalog.forced)

	w = f.do(http.MethodGet, "/api/v1/media?availability=remote_only&limit=1", "")
	body = decode(t, w)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(1), body["count"])

	w = f.do(http.MethodGet, "/api/v1/media/remote", "")
	body = decode(t, w)
	assert.Equal(t, float64(2), body["total"])
	assert.NotNil(t, body["fetch"])
}

func TestRouter_MediaLookupAndSearch(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/media/jellyfin_2", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/media/nope", "").Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/media/search", "").Code)
	w := f.do(http.MethodGet, "/api/v1/media/search?q=incep", "")
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = f.do(http.MethodGet, "/api/v1/media/shows", "")
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestRouter_SyncEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/v1/media/sync/request", "").Code)
	assert.True(t, f.catalog.syncRequested)

	w := f.do(http.MethodPost, "/api/v1/media/sync", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/media/compare", "").Code)
}

func TestRouter_DownloadMedia(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(http.MethodPost, "/api/v1/media/jellyfin_2/download", `{"download_dir":"/tmp/dl","final_destination":"/lib"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/tmp/dl", f.downloader.dir)
	assert.Equal(t, "/lib", f.downloader.dest)

	w = f.do(http.MethodPost, "/api/v1/media/jellyfin_2/download", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = f.do(http.MethodPost, "/api/v1/media/local_1/download", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Downloads(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(http.MethodGet, "/api/v1/downloads", "")
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(1), body["active"])

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/downloads/t1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/downloads/t9", "").Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/downloads/t1/cancel", "").Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/v1/downloads/t1/cancel", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/v1/downloads/t9/cancel", "").Code)

	w = f.do(http.MethodPost, "/api/v1/downloads/cleanup", "")
	assert.Equal(t, float64(2), decode(t, w)["removed"])
}

func TestRouter_ValidationEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/validation/stats", "").Code)
	assert.Equal(t, float64(3), decode(t, f.do(http.MethodPost, "/api/v1/validation/cache/clear", ""))["cleared"])
	assert.Equal(t, float64(1), decode(t, f.do(http.MethodPost, "/api/v1/validation/cache/cleanup", ""))["removed"])

	w := f.do(http.MethodPut, "/api/v1/validation/settings", `{"cache_ttl_seconds":60,"max_workers":4}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), decode(t, w)["max_workers"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/v1/validation/settings", `{"max_workers":0}`).Code)
}

func TestRouter_Logs(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(http.MethodGet, "/api/v1/logs/categories", "")
	assert.Contains(t, w.Body.String(), "catalog")

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/logs/queue", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/logs/download", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/logs/download?date=yesterday", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/logs/download/export", "").Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newRouterFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/nothing", "").Code)
}

func TestRouter_ProgressWebSocket(t *testing.T) {
	f := newRouterFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/downloads/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var snapshot handlers.ProgressMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "snapshot", snapshot.Type)
	assert.Equal(t, "jellyfin_2", snapshot.Task.MediaID)

	require.Eventually(t, func() bool { return f.progress.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	task := domain.NewDownloadTask("jellyfin_3", "3", "/dl/show.mkv")
	require.NoError(t, task.MarkDownloading())
	f.progress.Publish(task)

	var update handlers.ProgressMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "update", update.Type)
	assert.Equal(t, task.TaskID, update.Task.TaskID)
	assert.Equal(t, domain.StatusDownloading, update.Task.Status)
}
