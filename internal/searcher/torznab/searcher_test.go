package torznab

import (
	"context"
	"errors"
	"testing"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

type fakeIndexer struct {
	name       string
	candidates []domain.TorrentCandidate
	err        error
}

func (f fakeIndexer) Name() string { return f.name }
func (f fakeIndexer) Search(ctx context.Context, query string, limit int) ([]domain.TorrentCandidate, error) {
	return f.candidates, f.err
}

func TestSearcher_MergesSameInfoHashAcrossIndexers(t *testing.T) {
	shared := domain.TorrentCandidate{
		Title:    "Same Release",
		InfoHash: "deadbeef",
		Seeders:  10,
	}
	a := shared
	a.Sources = []domain.TorrentSourceRef{{Indexer: "indexer-a", Seeders: 10}}
	b := shared
	b.Seeders = 25
	b.Sources = []domain.TorrentSourceRef{{Indexer: "indexer-b", Seeders: 25}}

	s := newWithIndexers([]indexer{
		fakeIndexer{name: "indexer-a", candidates: []domain.TorrentCandidate{a}},
		fakeIndexer{name: "indexer-b", candidates: []domain.TorrentCandidate{b}},
	})

	results, err := s.Search(context.Background(), "same release", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected candidates to merge into 1, got %d", len(results))
	}
	if len(results[0].Sources) != 2 {
		t.Fatalf("expected 2 merged sources, got %d", len(results[0].Sources))
	}
	if results[0].Seeders != 25 {
		t.Fatalf("expected merged seeders to take the max (25), got %d", results[0].Seeders)
	}
}

func TestSearcher_ReturnsAllIndexersFailedWhenEveryoneErrors(t *testing.T) {
	s := newWithIndexers([]indexer{
		fakeIndexer{name: "indexer-a", err: errors.New("timeout")},
		fakeIndexer{name: "indexer-b", err: errors.New("connection refused")},
	})

	_, err := s.Search(context.Background(), "query", 10)
	var allFailed *ports.AllIndexersFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("expected AllIndexersFailedError, got %v", err)
	}
	if len(allFailed.Errors) != 2 {
		t.Fatalf("expected 2 errors recorded, got %d", len(allFailed.Errors))
	}
}

func TestSearcher_PartialIndexerFailureIsNonFatal(t *testing.T) {
	s := newWithIndexers([]indexer{
		fakeIndexer{name: "indexer-a", err: errors.New("boom")},
		fakeIndexer{name: "indexer-b", candidates: []domain.TorrentCandidate{{
			Title:    "Found It",
			InfoHash: "cafef00d",
			Sources:  []domain.TorrentSourceRef{{Indexer: "indexer-b"}},
		}}},
	})

	results, err := s.Search(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("expected no error when at least one indexer succeeds, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}
