package ports

import (
	"context"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// Searcher turns a text query into ranked torrent candidates. Per §7, a
// single query failure against one indexer is non-fatal; AllIndexersFailed
// is returned only when every indexer errored for that query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.TorrentCandidate, error)
}

// AllIndexersFailedError reports that every configured indexer errored
// while answering one query.
type AllIndexersFailedError struct {
	Query  string
	Errors map[string]error
}

func (e *AllIndexersFailedError) Error() string {
	return "all indexers failed for query " + e.Query
}
