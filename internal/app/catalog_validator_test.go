package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediahub-go/internal/domain"
)

// mockCatalogStore implements domain.CatalogStore for testing
type mockCatalogStore struct {
	mu          sync.Mutex
	rows        map[string]*domain.LocalMedia
	deleteCalls [][]string
	deleteErr   error
}

func newMockCatalogStore(rows ...*domain.LocalMedia) *mockCatalogStore {
	s := &mockCatalogStore{rows: map[string]*domain.LocalMedia{}}
	for _, r := range rows {
		s.rows[r.FilePath] = r
	}
	return s
}

func (s *mockCatalogStore) Upsert(items []*domain.LocalMedia) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		cp := *it
		s.rows[it.FilePath] = &cp
	}
	return nil
}

func (s *mockCatalogStore) DeleteByPaths(paths []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, append([]string(nil), paths...))
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	var n int64
	for _, p := range paths {
		if _, ok := s.rows[p]; ok {
			delete(s.rows, p)
			n++
		}
	}
	return n, nil
}

func (s *mockCatalogStore) List() ([]*domain.LocalMedia, error) {
	return s.ListUnder("")
}

func (s *mockCatalogStore) ListUnder(dir string) ([]*domain.LocalMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.LocalMedia
	for p, r := range s.rows {
		if dir == "" || strings.HasPrefix(p, dir) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *mockCatalogStore) FindByPath(path string) (*domain.LocalMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[path]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *mockCatalogStore) UpdateValidation(path string, validated bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[path]; ok {
		r.FileValidated = validated
		r.ValidatedAt = at
	}
	return nil
}

func (s *mockCatalogStore) Count() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

// mockFileProbe implements domain.FileProbe for testing
type mockFileProbe struct {
	mu     sync.Mutex
	files  map[string]bool
	errs   map[string]error
	info   map[string]*domain.ProbeInfo
	checks atomic.Int64
}

func newMockFileProbe(paths ...string) *mockFileProbe {
	p := &mockFileProbe{files: map[string]bool{}, errs: map[string]error{}, info: map[string]*domain.ProbeInfo{}}
	for _, path := range paths {
		p.files[path] = true
	}
	return p
}

func (p *mockFileProbe) Exists(path string) (bool, error) {
	p.checks.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs[path]; err != nil {
		return false, err
	}
	return p.files[path], nil
}

func (p *mockFileProbe) Metadata(ctx context.Context, path string) (*domain.ProbeInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, ok := p.info[path]; ok {
		return info, nil
	}
	return &domain.ProbeInfo{}, nil
}

func (p *mockFileProbe) remove(path string) {
	p.mu.Lock()
	delete(p.files, path)
	p.mu.Unlock()
}

func localRows(n int) []*domain.LocalMedia {
	rows := make([]*domain.LocalMedia, n)
	for i := range rows {
		rows[i] = &domain.LocalMedia{
			FilePath: fmt.Sprintf("/media/movie-%02d.mkv", i),
			Title:    fmt.Sprintf("Movie %02d", i),
			Kind:     domain.KindMovie,
		}
	}
	return rows
}

func paths(rows []*domain.LocalMedia) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.FilePath
	}
	return out
}

func newTestValidator(store domain.CatalogStore, probe domain.FileProbe) *CatalogValidator {
	return NewCatalogValidator(store, probe, domain.ValidationConfig{
		CacheTTL:             300 * time.Second,
		MaxWorkers:           4,
		ConcurrencyThreshold: 5,
		DeleteBatchSize:      500,
	}, nil, nil)
}

func TestValidate_TTLScenario(t *testing.T) {
	row := &domain.LocalMedia{FilePath: "/media/Inception.mkv", Title: "Inception", Kind: domain.KindMovie}
	store := newMockCatalogStore(row)
	probe := newMockFileProbe(row.FilePath)
	v := newTestValidator(store, probe)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	v.now = func() time.Time { return clock }

	items := []*domain.LocalMedia{row}

	valid := v.Validate(context.Background(), items)
	require.Len(t, valid, 1)
	assert.True(t, row.FileValidated)
	assert.Equal(t, int64(1), probe.checks.Load())

	clock = base.Add(100 * time.Second)
	valid = v.Validate(context.Background(), items)
	require.Len(t, valid, 1)
	assert.Equal(t, int64(1), probe.checks.Load(), "no stat within ttl")

	clock = base.Add(400 * time.Second)
	valid = v.Validate(context.Background(), items)
	require.Len(t, valid, 1)
	assert.Equal(t, int64(2), probe.checks.Load(), "stale entry is re-checked")
}

func TestValidate_RepeatedCallsHitCache(t *testing.T) {
	rows := localRows(12)
	store := newMockCatalogStore(rows...)
	probe := newMockFileProbe(paths(rows)...)
	v := newTestValidator(store, probe)

	first := v.Validate(context.Background(), rows)
	hitsAfterFirst := v.Stats().CacheHits

	second := v.Validate(context.Background(), rows)
	stats := v.Stats()

	assert.Equal(t, paths(first), paths(second))
	assert.Greater(t, stats.CacheHits, hitsAfterFirst)
	assert.Equal(t, int64(12), stats.CacheHits)
	assert.Equal(t, int64(12), stats.CacheMisses)
	assert.Equal(t, 0.5, stats.CacheHitRate)
	assert.Equal(t, 12, stats.CacheSize)
}

func TestValidate_ConcurrentPreservesOrderAndPrunes(t *testing.T) {
	rows := localRows(40)
	store := newMockCatalogStore(rows...)
	probe := newMockFileProbe(paths(rows)...)
	probe.remove(rows[3].FilePath)
	probe.remove(rows[17].FilePath)
	probe.errs[rows[30].FilePath] = errors.New("permission denied")
	v := newTestValidator(store, probe)

	valid := v.Validate(context.Background(), rows)

	require.Len(t, valid, 37)
	for i := 1; i < len(valid); i++ {
		assert.Less(t, valid[i-1].FilePath, valid[i].FilePath)
	}

	count, _ := store.Count()
	assert.Equal(t, int64(37), count)
	stats := v.Stats()
	assert.Equal(t, int64(3), stats.FilesMissing)
	assert.Equal(t, int64(37), stats.FilesValidated)
	assert.Equal(t, 40, stats.LastBatchSize)
}

func TestValidate_DeletesInBatches(t *testing.T) {
	rows := localRows(7)
	store := newMockCatalogStore(rows...)
	probe := newMockFileProbe()
	v := NewCatalogValidator(store, probe, domain.ValidationConfig{
		CacheTTL: time.Minute, MaxWorkers: 2, ConcurrencyThreshold: 5, DeleteBatchSize: 3,
	}, nil, nil)

	valid := v.Validate(context.Background(), rows)

	assert.Empty(t, valid)
	require.Len(t, store.deleteCalls, 3)
	assert.Len(t, store.deleteCalls[0], 3)
	assert.Len(t, store.deleteCalls[2], 1)
}

func TestValidate_StoreErrorDoesNotAbort(t *testing.T) {
	rows := localRows(3)
	store := newMockCatalogStore(rows...)
	store.deleteErr = errors.New("database is locked")
	probe := newMockFileProbe(rows[0].FilePath, rows[2].FilePath)
	v := newTestValidator(store, probe)

	valid := v.Validate(context.Background(), rows)

	assert.Equal(t, []string{rows[0].FilePath, rows[2].FilePath}, paths(valid))
}

func TestValidate_NegativeResultEvictsCache(t *testing.T) {
	rows := localRows(1)
	store := newMockCatalogStore(rows...)
	probe := newMockFileProbe(rows[0].FilePath)
	v := newTestValidator(store, probe)

	require.Len(t, v.Validate(context.Background(), rows), 1)
	assert.Equal(t, 1, v.Stats().CacheSize)

	probe.remove(rows[0].FilePath)
	rows[0].FileValidated = false

	assert.Empty(t, v.Validate(context.Background(), rows))
	assert.Equal(t, 0, v.Stats().CacheSize)
}

func TestValidator_Settings(t *testing.T) {
	v := newTestValidator(newMockCatalogStore(), newMockFileProbe())

	assert.Error(t, v.SetCacheTTL(-time.Second))
	require.NoError(t, v.SetCacheTTL(time.Minute))
	assert.Equal(t, time.Minute, v.Stats().CacheTTL)

	assert.Error(t, v.SetMaxWorkers(0))
	require.NoError(t, v.SetMaxWorkers(8))
	assert.Equal(t, 8, v.Stats().MaxWorkers)
}

func TestValidator_CleanupExpiredAndReset(t *testing.T) {
	rows := localRows(2)
	store := newMockCatalogStore(rows...)
	probe := newMockFileProbe(paths(rows)...)
	v := newTestValidator(store, probe)

	base := time.Now()
	clock := base
	v.now = func() time.Time { return clock }
	v.Validate(context.Background(), rows)

	clock = base.Add(10 * time.Minute)
	assert.Equal(t, 2, v.CleanupExpired())
	assert.Equal(t, 0, v.Stats().CacheSize)

	v.ResetStats()
	stats := v.Stats()
	assert.Zero(t, stats.TotalValidations)
	assert.Zero(t, stats.CacheMisses)
}
