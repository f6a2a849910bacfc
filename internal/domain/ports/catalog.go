package ports

import (
	"context"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// Catalog is the content-addressed, deduplicating store of observed
// torrents, §4.2.
type Catalog interface {
	// Store inserts or merges each candidate by info-hash and returns the
	// count of genuinely new entries. Empty info-hashes are skipped.
	Store(ctx context.Context, candidates []domain.TorrentCandidate) (newCount int, err error)
	Search(ctx context.Context, query string, limit int) ([]domain.CachedTorrent, error)
	Get(ctx context.Context, infoHash string) (domain.CachedTorrent, error)
	StoreFiles(ctx context.Context, infoHash, title string, files []domain.CatalogFile) error
	GetFiles(ctx context.Context, infoHash string) ([]domain.CatalogFile, error)
	Exists(ctx context.Context, infoHash string) (bool, error)
	Remove(ctx context.Context, infoHash string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (domain.CatalogStats, error)
}
