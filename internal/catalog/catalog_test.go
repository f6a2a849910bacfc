package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

type fakeCatalog struct {
	searchCalls int
	results     []domain.CachedTorrent
}

func (f *fakeCatalog) Store(ctx context.Context, candidates []domain.TorrentCandidate) (int, error) {
	return 0, nil
}
func (f *fakeCatalog) Search(ctx context.Context, query string, limit int) ([]domain.CachedTorrent, error) {
	f.searchCalls++
	return f.results, nil
}
func (f *fakeCatalog) Get(ctx context.Context, infoHash string) (domain.CachedTorrent, error) {
	return domain.CachedTorrent{}, nil
}
func (f *fakeCatalog) StoreFiles(ctx context.Context, infoHash, title string, files []domain.CatalogFile) error {
	return nil
}
func (f *fakeCatalog) GetFiles(ctx context.Context, infoHash string) ([]domain.CatalogFile, error) {
	return nil, nil
}
func (f *fakeCatalog) Exists(ctx context.Context, infoHash string) (bool, error) { return false, nil }
func (f *fakeCatalog) Remove(ctx context.Context, infoHash string) error         { return nil }
func (f *fakeCatalog) Clear(ctx context.Context) error                          { return nil }
func (f *fakeCatalog) Stats(ctx context.Context) (domain.CatalogStats, error) {
	return domain.CatalogStats{}, nil
}

func TestCachingCatalog_SearchCachesWithinTTL(t *testing.T) {
	underlying := &fakeCatalog{results: []domain.CachedTorrent{{InfoHash: "abc", Title: "Example"}}}
	cache := New(underlying, nil, Config{CacheTTL: time.Minute, StaleTTL: 2 * time.Minute})

	ctx := context.Background()
	if _, err := cache.Search(ctx, "example", 10); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if _, err := cache.Search(ctx, "example", 10); err != nil {
		t.Fatalf("second search: %v", err)
	}
	if underlying.searchCalls != 1 {
		t.Fatalf("expected 1 underlying search call, got %d", underlying.searchCalls)
	}
}

func TestCachingCatalog_StoreInvalidatesCache(t *testing.T) {
	underlying := &fakeCatalog{results: []domain.CachedTorrent{{InfoHash: "abc"}}}
	cache := New(underlying, nil, Config{})

	ctx := context.Background()
	if _, err := cache.Search(ctx, "q", 10); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := cache.Store(ctx, []domain.TorrentCandidate{{InfoHash: "def"}}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := cache.Search(ctx, "q", 10); err != nil {
		t.Fatalf("search after store: %v", err)
	}
	if underlying.searchCalls != 2 {
		t.Fatalf("expected cache invalidation to force a second search, got %d calls", underlying.searchCalls)
	}
}
