package domain

// TorrentSourceRef is one indexer's observation of a torrent: multiple
// indexers may report the same info-hash, and their observations are
// merged (§3 Catalog entry).
type TorrentSourceRef struct {
	Indexer   string  `json:"indexer"`
	Magnet    string  `json:"magnet,omitempty"`
	URL       string  `json:"url,omitempty"`
	Seeders   int     `json:"seeders"`
	Leechers  int     `json:"leechers"`
	UpdatedAt int64   `json:"updated_at"`
}

// TorrentFile is one file inside a torrent as reported by a Searcher.
type TorrentFile struct {
	Path   string `json:"path"`
	Length int64  `json:"length"`
}

// TorrentCandidate is a raw, unscored observation returned by a Searcher.
type TorrentCandidate struct {
	Title     string             `json:"title"`
	InfoHash  string             `json:"info_hash"`
	SizeBytes int64              `json:"size_bytes"`
	Seeders   int                `json:"seeders"`
	Leechers  int                `json:"leechers"`
	Category  string             `json:"category,omitempty"`
	Files     []TorrentFile      `json:"files,omitempty"`
	Sources   []TorrentSourceRef `json:"sources"`
}

// FileMapping links one torrent-internal file path to a ticket item
// (an album track, a single movie file, an episode) with a confidence the
// matcher assigned to the link.
type FileMapping struct {
	FilePath   string  `json:"file_path"`
	ItemID     string  `json:"item_id"`
	Confidence float64 `json:"confidence"`
}

// ScoredCandidate is a TorrentCandidate after TextBrain has scored it.
type ScoredCandidate struct {
	TorrentCandidate
	Score        float64       `json:"score"`
	Reasoning    string        `json:"reasoning"`
	FileMappings []FileMapping `json:"file_mappings,omitempty"`
}

// SelectedCandidate is the specific candidate the orchestrator is
// currently trying (or did try) to download. MagnetURI may instead hold
// an HTTP(S) URL to a .torrent file; see the add-torrent algorithm in
// SPEC_FULL.md §4.4.
type SelectedCandidate struct {
	Title        string        `json:"title"`
	InfoHash     string        `json:"info_hash"`
	MagnetURI    string        `json:"magnet_uri"`
	TorrentURL   string        `json:"torrent_url,omitempty"`
	SizeBytes    int64         `json:"size_bytes"`
	Score        float64       `json:"score"`
	FileMappings []FileMapping `json:"file_mappings,omitempty"`
}

// SelectedCandidateFromScored builds the trimmed SelectedCandidate value
// stored in ticket states from a fully scored candidate and its magnet
// source of truth.
func SelectedCandidateFromScored(c ScoredCandidate, magnetURI, torrentURL string) SelectedCandidate {
	return SelectedCandidate{
		Title:        c.Title,
		InfoHash:     c.InfoHash,
		MagnetURI:    magnetURI,
		TorrentURL:   torrentURL,
		SizeBytes:    c.SizeBytes,
		Score:        c.Score,
		FileMappings: c.FileMappings,
	}
}
