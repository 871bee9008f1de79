package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediahub-go/internal/domain"
)

// stubRemoteSource implements RemoteSource for testing
type stubRemoteSource struct {
	items []*domain.CatalogItem
	fail  atomic.Bool
	calls atomic.Int32
}

func (s *stubRemoteSource) Fetch(ctx context.Context) *domain.FetchResult {
	s.calls.Add(1)
	if s.fail.Load() {
		return &domain.FetchResult{Items: []*domain.CatalogItem{}, Metadata: domain.FetchMetadata{Errors: []string{"offline"}}}
	}
	return &domain.FetchResult{Items: s.items, Metadata: domain.FetchMetadata{Success: true, ValidItems: len(s.items)}}
}

// stubThumbnails implements ThumbnailLookup for testing
type stubThumbnails map[string]string

func (s stubThumbnails) Lookup(url string) (string, bool) {
	p, ok := s[url]
	return p, ok
}

func remoteItem(id, title string) *domain.CatalogItem {
	return &domain.CatalogItem{
		ID:           "jellyfin_" + id,
		Title:        title,
		Kind:         domain.KindMovie,
		Availability: domain.AvailabilityRemoteOnly,
		RemoteID:     id,
		Metadata:     map[string]interface{}{},
	}
}

func localItem(path, title string) *domain.CatalogItem {
	return &domain.CatalogItem{
		ID:           "local_" + title,
		Title:        title,
		Kind:         domain.KindMovie,
		Availability: domain.AvailabilityLocalOnly,
		LocalPath:    path,
		Metadata:     map[string]interface{}{},
	}
}

type engineFixture struct {
	engine *UnificationEngine
	store  *mockCatalogStore
	probe  *mockFileProbe
	remote *stubRemoteSource
}

func newEngineFixture(rows []*domain.LocalMedia, remote []*domain.CatalogItem) *engineFixture {
	store := newMockCatalogStore(rows...)
	probe := newMockFileProbe(paths(rows)...)
	src := &stubRemoteSource{items: remote}
	validator := newTestValidator(store, probe)
	engine := NewUnificationEngine(store, validator, src, nil, nil, domain.CatalogConfig{CacheTTL: time.Minute}, nil, nil)
	return &engineFixture{engine: engine, store: store, probe: probe, remote: src}
}

func TestMerge_InceptionScenario(t *testing.T) {
	rows := []*domain.LocalMedia{{FilePath: "/media/Inception.mkv", Title: "Inception", Kind: domain.KindMovie}}
	f := newEngineFixture(rows, []*domain.CatalogItem{remoteItem("r1", "inception")})

	unified := f.engine.GetUnified(context.Background(), false)

	require.Len(t, unified, 1)
	assert.Equal(t, domain.AvailabilityBoth, unified[0].Availability)
	assert.Equal(t, "/media/Inception.mkv", unified[0].LocalPath)
	assert.Equal(t, "r1", unified[0].RemoteID)
	assert.NoError(t, unified[0].Validate())
}

func TestMerge_FieldPrecedence(t *testing.T) {
	engine := NewUnificationEngine(nil, nil, nil, nil,
		stubThumbnails{"http://remote/img": "/cache/img.jpg"}, domain.CatalogConfig{}, nil, nil)

	local := localItem("/media/The Matrix (1999).mkv", "The Matrix")
	local.Metadata = map[string]interface{}{"codec": "h264", "overview": "local"}
	remote := remoteItem("r2", "Matrix")
	remote.Year = 1999
	remote.DurationSeconds = 8160
	remote.ThumbnailURL = "http://remote/img"
	remote.Metadata = map[string]interface{}{"overview": "remote", "genres": []string{"Action"}}

	merged := engine.Merge([]*domain.CatalogItem{local}, []*domain.CatalogItem{remote})

	require.Len(t, merged, 1)
	want := &domain.CatalogItem{
		ID:                  local.ID,
		Title:               "The Matrix",
		Kind:                domain.KindMovie,
		Availability:        domain.AvailabilityBoth,
		Year:                1999,
		DurationSeconds:     8160,
		ThumbnailURL:        "http://remote/img",
		CachedThumbnailPath: "/cache/img.jpg",
		LocalPath:           local.LocalPath,
		RemoteID:            "r2",
		Metadata:            map[string]interface{}{"codec": "h264", "overview": "local", "genres": []string{"Action"}},
	}
	if diff := cmp.Diff(want, merged[0]); diff != "" {
		t.Errorf("merged item mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_SortedAndDeduplicated(t *testing.T) {
	engine := NewUnificationEngine(nil, nil, nil, nil, nil, domain.CatalogConfig{}, nil, nil)

	local := []*domain.CatalogItem{
		localItem("/m/zodiac.mkv", "Zodiac"),
		localItem("/m/alien.mkv", "alien"),
		localItem("/m/alien-copy.mkv", "Alien"),
		localItem("/m/2012.mkv", "2012"),
	}
	remote := []*domain.CatalogItem{
		remoteItem("r1", "Brazil"),
		remoteItem("r2", "ALIEN (1979)"),
		remoteItem("r3", "Brazil 1080p"),
	}

	merged := engine.Merge(local, remote)

	titles := make([]string, len(merged))
	for i, it := range merged {
		titles[i] = it.Title
	}
	assert.Equal(t, []string{"2012", "alien", "Brazil", "Zodiac"}, titles)
	assert.Equal(t, "/m/alien.mkv", merged[1].LocalPath)
	assert.Equal(t, "r2", merged[1].RemoteID)
	assert.Equal(t, "r1", merged[2].RemoteID)
}

func TestGetUnified_UsesCacheUntilInvalidated(t *testing.T) {
	rows := []*domain.LocalMedia{{FilePath: "/media/Heat.mkv", Title: "Heat", Kind: domain.KindMovie}}
	f := newEngineFixture(rows, []*domain.CatalogItem{remoteItem("r1", "Ronin")})
	ctx := context.Background()

	require.Len(t, f.engine.GetUnified(ctx, false), 2)
	require.Len(t, f.engine.GetUnified(ctx, false), 2)
	assert.Equal(t, int32(1), f.remote.calls.Load())

	require.NoError(t, f.store.Upsert([]*domain.LocalMedia{{FilePath: "/media/Up.mkv", Title: "Up", Kind: domain.KindMovie}}))
	f.probe.files["/media/Up.mkv"] = true
	assert.Len(t, f.engine.GetUnified(ctx, false), 2)

	f.engine.InvalidateLocal()
	f.engine.InvalidateUnified()
	assert.Len(t, f.engine.GetUnified(ctx, false), 3)
	assert.Equal(t, int32(1), f.remote.calls.Load())
}

func TestGetUnified_SyncRequestRefreshesRemoteOnce(t *testing.T) {
	f := newEngineFixture(nil, []*domain.CatalogItem{remoteItem("r1", "Ronin")})
	ctx := context.Background()

	f.engine.GetUnified(ctx, false)
	f.engine.RequestSync()
	assert.True(t, f.engine.SyncRequested())

	f.engine.GetUnified(ctx, false)
	assert.Equal(t, int32(2), f.remote.calls.Load())
	assert.False(t, f.engine.SyncRequested())

	f.engine.InvalidateUnified()
	f.engine.GetUnified(ctx, false)
	assert.Equal(t, int32(2), f.remote.calls.Load())
}

func TestGetRemote_FailureServesStaleList(t *testing.T) {
	f := newEngineFixture(nil, []*domain.CatalogItem{remoteItem("r1", "Ronin")})
	ctx := context.Background()

	require.Len(t, f.engine.GetRemote(ctx, false), 1)

	f.remote.fail.Store(true)
	items := f.engine.GetRemote(ctx, true)

	assert.Len(t, items, 1)
	md := f.engine.LastFetchMetadata()
	require.NotNil(t, md)
	assert.False(t, md.Success)
}

func TestGetRemote_FailureWithoutCacheIsEmpty(t *testing.T) {
	f := newEngineFixture(nil, nil)
	f.remote.fail.Store(true)

	assert.Empty(t, f.engine.GetRemote(context.Background(), false))
}

func TestGetItemAndSearch(t *testing.T) {
	rows := []*domain.LocalMedia{{FilePath: "/media/Heat.mkv", Title: "Heat", Kind: domain.KindMovie, FileHash: "abcdef0123456789ff"}}
	f := newEngineFixture(rows, []*domain.CatalogItem{
		remoteItem("r1", "Ronin"),
		remoteItem("r2", "The Bourne Identity"),
	})
	ctx := context.Background()

	item, err := f.engine.GetItem(ctx, "local_abcdef0123456789")
	require.NoError(t, err)
	assert.Equal(t, "Heat", item.Title)

	_, err = f.engine.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrMediaNotFound)

	results := f.engine.Search(ctx, "bourne", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "r2", results[0].RemoteID)

	assert.Empty(t, f.engine.Search(ctx, "  ", 10))
}

func TestCompareAndSynchronize(t *testing.T) {
	rows := []*domain.LocalMedia{
		{FilePath: "/media/Heat.mkv", Title: "Heat", Kind: domain.KindMovie},
		{FilePath: "/media/Ronin.mkv", Title: "Ronin", Kind: domain.KindMovie},
	}
	f := newEngineFixture(rows, []*domain.CatalogItem{
		remoteItem("r1", "Ronin"),
		remoteItem("r2", "Collateral"),
	})
	ctx := context.Background()

	cmpResult := f.engine.Compare(ctx, false)
	assert.Equal(t, 1, cmpResult.Summary.LocalOnlyCount)
	assert.Equal(t, 1, cmpResult.Summary.RemoteOnlyCount)
	assert.Equal(t, 1, cmpResult.Summary.BothCount)
	assert.Equal(t, 3, cmpResult.Summary.TotalUnique)

	result := f.engine.Synchronize(ctx)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.UnifiedCount)
	require.NotNil(t, result.Comparison)
	assert.Equal(t, 2, result.Comparison.Summary.TotalLocal)
}
