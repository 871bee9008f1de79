package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/internal/domain"
)

type stubResolver struct {
	items map[string]*domain.CatalogItem
}

func (s *stubResolver) GetItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrMediaNotFound
	}
	return item, nil
}

type stubStarter struct {
	requests []domain.DownloadRequest
	err      error
}

func (s *stubStarter) Start(ctx context.Context, req domain.DownloadRequest) (*domain.DownloadTask, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, req)
	return domain.NewDownloadTask(req.MediaID, req.RemoteID, req.FilePath), nil
}

type stubThumbFetcher struct {
	mu      sync.Mutex
	cached  map[string]string
	fetched []string
	// gate, when set, blocks Fetch until it is closed
	gate   chan struct{}
	ctxErr error
}

func (s *stubThumbFetcher) Lookup(url string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.cached[url]
	return p, ok
}

func (s *stubThumbFetcher) Fetch(ctx context.Context, mediaID, url string) (string, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, url)
	s.ctxErr = ctx.Err()
	return "/thumbs/" + mediaID + ".jpg", nil
}

func (s *stubThumbFetcher) fetchedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

func waitPrefetches(t *testing.T, mgr *MediaManager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, mgr.Shutdown(ctx))
}

func newMediaManagerFixture() (*MediaManager, *stubStarter, *stubThumbFetcher) {
	resolver := &stubResolver{items: map[string]*domain.CatalogItem{
		"jellyfin_1": {
			ID: "jellyfin_1", Title: "Blade: Runner?", Year: 1982, Kind: domain.KindMovie,
			Availability: domain.AvailabilityRemoteOnly, RemoteID: "1",
			ThumbnailURL: "http://remote/Items/1/Images/Primary",
		},
		"jellyfin_2": {
			ID: "jellyfin_2", Title: "Pilot", Kind: domain.KindEpisode,
			Availability: domain.AvailabilityRemoteOnly, RemoteID: "2",
		},
		"local_abc": {
			ID: "local_abc", Title: "Home Video", Kind: domain.KindMovie,
			Availability: domain.AvailabilityLocalOnly, LocalPath: "/media/home.mp4",
		},
	}}
	starter := &stubStarter{}
	thumbs := &stubThumbFetcher{cached: map[string]string{}}
	return NewMediaManager(resolver, starter, thumbs, "/downloads", zap.NewNop(), nil), starter, thumbs
}

func TestMediaManager_DownloadMediaBuildsRequest(t *testing.T) {
	mgr, starter, thumbs := newMediaManagerFixture()

	task, err := mgr.DownloadMedia(context.Background(), "jellyfin_1", "", "/library/movies")
	require.NoError(t, err)
	require.Len(t, starter.requests, 1)

	req := starter.requests[0]
	assert.Equal(t, "1", req.RemoteID)
	assert.Equal(t, filepath.Join("/downloads", "Blade Runner (1982).mp4"), req.FilePath)
	assert.Equal(t, "/library/movies", req.FinalDestination)
	assert.Equal(t, req.FilePath, task.FilePath)

	waitPrefetches(t, mgr)
	assert.Equal(t, []string{"http://remote/Items/1/Images/Primary"}, thumbs.fetchedURLs())
}

func TestMediaManager_SlowThumbnailDoesNotDelayDownload(t *testing.T) {
	mgr, starter, thumbs := newMediaManagerFixture()
	thumbs.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		_, err := mgr.DownloadMedia(ctx, "jellyfin_1", "", "")
		assert.NoError(t, err)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("download request waited for the thumbnail")
	}
	require.Len(t, starter.requests, 1)
	assert.Empty(t, thumbs.fetchedURLs())

	// the prefetch is detached from the request
	cancel()
	close(thumbs.gate)
	waitPrefetches(t, mgr)

	assert.Equal(t, []string{"http://remote/Items/1/Images/Primary"}, thumbs.fetchedURLs())
	thumbs.mu.Lock()
	defer thumbs.mu.Unlock()
	assert.NoError(t, thumbs.ctxErr)
}

func TestMediaManager_EpisodesUseMkv(t *testing.T) {
	mgr, starter, thumbs := newMediaManagerFixture()

	_, err := mgr.DownloadMedia(context.Background(), "jellyfin_2", "/tmp/dl", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/dl", "Pilot.mkv"), starter.requests[0].FilePath)
	waitPrefetches(t, mgr)
	assert.Empty(t, thumbs.fetchedURLs())
}

func TestMediaManager_SkipsCachedThumbnail(t *testing.T) {
	mgr, _, thumbs := newMediaManagerFixture()
	thumbs.cached["http://remote/Items/1/Images/Primary"] = "/thumbs/x.jpg"

	_, err := mgr.DownloadMedia(context.Background(), "jellyfin_1", "", "")
	require.NoError(t, err)
	waitPrefetches(t, mgr)
	assert.Empty(t, thumbs.fetchedURLs())
}

func TestMediaManager_Errors(t *testing.T) {
	mgr, starter, _ := newMediaManagerFixture()

	_, err := mgr.DownloadMedia(context.Background(), "missing", "", "")
	assert.ErrorIs(t, err, domain.ErrMediaNotFound)

	_, err = mgr.DownloadMedia(context.Background(), "local_abc", "", "")
	assert.ErrorIs(t, err, domain.ErrNotRemote)

	starter.err = errors.New("shut down")
	_, err = mgr.DownloadMedia(context.Background(), "jellyfin_2", "", "")
	assert.Error(t, err)
}
