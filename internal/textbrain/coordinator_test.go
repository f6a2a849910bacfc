package textbrain

import (
	"context"
	"testing"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

type fakeSearcher struct {
	results []domain.TorrentCandidate
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]domain.TorrentCandidate, error) {
	return f.results, nil
}

func TestCoordinator_DumbOnlyAutoApproves(t *testing.T) {
	qc := domain.QueryContext{
		Description: "Some Great Album flac",
		Tags:        []string{"flac"},
	}
	searcher := &fakeSearcher{results: []domain.TorrentCandidate{
		{Title: "Some Great Album FLAC", InfoHash: "hash1", Seeders: 50, SizeBytes: 500_000_000},
	}}

	coord := New(Config{Mode: ModeDumbOnly, AutoApproveThreshold: 0.1, MaxQueries: 5},
		NewHeuristicQueryBuilder(5), nil, NewHeuristicMatcher(), nil)

	result, err := coord.Acquire(context.Background(), qc, searcher, nil)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if result.BestCandidate == nil {
		t.Fatal("expected a best candidate")
	}
	if !result.AutoApproved {
		t.Fatalf("expected auto-approval given low threshold, got score %.2f", result.BestCandidate.Score)
	}
}

func TestCoordinator_NoQueriesGenerated(t *testing.T) {
	coord := New(Config{Mode: ModeDumbOnly}, NewHeuristicQueryBuilder(5), nil, NewHeuristicMatcher(), nil)
	_, err := coord.BuildQueries(context.Background(), domain.QueryContext{Description: ""})
	if err == nil {
		t.Fatal("expected an error for an empty description")
	}
}

func TestCoordinator_AcquireRejectsZeroMaxQueries(t *testing.T) {
	qc := domain.QueryContext{Description: "Some Great Album flac", Tags: []string{"flac"}}
	searcher := &fakeSearcher{results: []domain.TorrentCandidate{
		{Title: "Some Great Album FLAC", InfoHash: "hash1", Seeders: 50, SizeBytes: 500_000_000},
	}}

	coord := New(Config{Mode: ModeDumbOnly, AutoApproveThreshold: 0.1, MaxQueries: 0},
		NewHeuristicQueryBuilder(5), nil, NewHeuristicMatcher(), nil)

	_, err := coord.Acquire(context.Background(), qc, searcher, nil)
	if err == nil {
		t.Fatal("expected an error for max_queries=0")
	}
}

func TestHeuristicMatcher_ScoresEmptyInputAsNone(t *testing.T) {
	m := NewHeuristicMatcher()
	result, err := m.ScoreCandidates(context.Background(), domain.QueryContext{}, nil)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if result.Method != "none" {
		t.Fatalf("expected method none, got %s", result.Method)
	}
}

func TestMapFiles_Album(t *testing.T) {
	expected := domain.ExpectedAlbum{
		Artist: "Artist",
		Title:  "Album",
		Tracks: []domain.ExpectedTrack{
			{Number: 1, Title: "Opening Track"},
			{Number: 2, Title: "Second Song"},
		},
	}
	files := []domain.TorrentFile{
		{Path: "01 Opening Track.flac", Length: 1000},
		{Path: "02 Second Song.flac", Length: 1000},
		{Path: "cover.jpg", Length: 10},
	}
	mappings := MapFiles(expected, files)
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d: %#v", len(mappings), mappings)
	}
}
