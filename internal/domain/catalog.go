package domain

import "time"

// CatalogFile is one file recorded against a CachedTorrent, unique per
// (info_hash, path).
type CatalogFile struct {
	Path   string `json:"path"`
	Length int64  `json:"length"`
}

// CachedTorrent is a Catalog entry: a content-addressed, deduplicated
// observation of a torrent across every indexer that has reported it.
type CachedTorrent struct {
	InfoHash     string             `json:"info_hash"`
	Title        string             `json:"title"`
	SizeBytes    int64              `json:"size_bytes"`
	Category     string             `json:"category,omitempty"`
	FirstSeenAt  time.Time          `json:"first_seen_at"`
	LastSeenAt   time.Time          `json:"last_seen_at"`
	SeenCount    int64              `json:"seen_count"`
	Sources      []TorrentSourceRef `json:"sources"`
	Files        []CatalogFile      `json:"files,omitempty"`
}

// CatalogStats summarizes the catalog's current size and span.
type CatalogStats struct {
	TotalTorrents  int64      `json:"total_torrents"`
	TotalFiles     int64      `json:"total_files"`
	TotalSize      int64      `json:"total_size"`
	UniqueIndexers int64      `json:"unique_indexers"`
	OldestEntry    *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry    *time.Time `json:"newest_entry,omitempty"`
}
