package torznab

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// indexer is the subset of Provider that Searcher fans queries out to;
// narrowed to ease testing with fakes.
type indexer interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]domain.TorrentCandidate, error)
}

// Searcher implements ports.Searcher by querying every configured
// indexer concurrently (bounded by maxConcurrent, grounded on the
// teacher's aggregator.go semaphore fan-out) and merging observations of
// the same info-hash into one TorrentCandidate with multiple Sources.
// Per §7, a single indexer's failure is non-fatal; AllIndexersFailedError
// is only returned when every configured indexer errored.
type Searcher struct {
	indexers      []indexer
	maxConcurrent int64
}

// New builds a Searcher over the given providers.
func New(providers ...*Provider) *Searcher {
	idx := make([]indexer, len(providers))
	for i, p := range providers {
		idx[i] = p
	}
	return &Searcher{indexers: idx, maxConcurrent: 4}
}

func newWithIndexers(idx []indexer) *Searcher {
	return &Searcher{indexers: idx, maxConcurrent: 4}
}

func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]domain.TorrentCandidate, error) {
	if len(s.indexers) == 0 {
		return nil, &ports.AllIndexersFailedError{Query: query, Errors: map[string]error{}}
	}

	type outcome struct {
		name       string
		candidates []domain.TorrentCandidate
		err        error
	}

	results := make([]outcome, len(s.indexers))
	sem := semaphore.NewWeighted(s.maxConcurrent)
	var wg sync.WaitGroup

	for i, idx := range s.indexers {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = outcome{name: idx.Name(), err: err}
			continue
		}
		wg.Add(1)
		go func(i int, idx indexer) {
			defer wg.Done()
			defer sem.Release(1)
			candidates, err := idx.Search(ctx, query, limit)
			results[i] = outcome{name: idx.Name(), candidates: candidates, err: err}
		}(i, idx)
	}
	wg.Wait()

	errs := make(map[string]error)
	merged := make(map[string]*domain.TorrentCandidate)
	order := make([]string, 0)

	for _, r := range results {
		if r.err != nil {
			errs[r.name] = r.err
			continue
		}
		for _, c := range r.candidates {
			mergeCandidate(merged, &order, c)
		}
	}

	if len(errs) == len(s.indexers) {
		return nil, &ports.AllIndexersFailedError{Query: query, Errors: errs}
	}

	out := make([]domain.TorrentCandidate, 0, len(order))
	for _, hash := range order {
		out = append(out, *merged[hash])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// mergeCandidate folds c into the running merge-by-infohash map,
// appending its Sources to an existing entry or inserting a new one.
func mergeCandidate(merged map[string]*domain.TorrentCandidate, order *[]string, c domain.TorrentCandidate) {
	key := c.InfoHash
	if key == "" && len(c.Sources) > 0 {
		key = c.Sources[0].Magnet
	}
	if key == "" {
		return
	}
	existing, ok := merged[key]
	if !ok {
		copy := c
		merged[key] = &copy
		*order = append(*order, key)
		return
	}
	existing.Sources = append(existing.Sources, c.Sources...)
	if c.Seeders > existing.Seeders {
		existing.Seeders = c.Seeders
	}
	if c.Leechers > existing.Leechers {
		existing.Leechers = c.Leechers
	}
	if existing.SizeBytes == 0 {
		existing.SizeBytes = c.SizeBytes
	}
}
