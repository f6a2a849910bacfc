package ports

import "context"

// TorrentStatus is the torrent client's own runtime status for a handle,
// distinct from domain.TicketState (SPEC_FULL.md §4.4's progress check
// treats "Seeding" as a completion signal).
type TorrentStatus string

const (
	TorrentStatusDownloading TorrentStatus = "downloading"
	TorrentStatusSeeding     TorrentStatus = "seeding"
	TorrentStatusError       TorrentStatus = "error"
)

// TorrentProgress is one poll result from the torrent client.
type TorrentProgress struct {
	InfoHash    string
	Status      TorrentStatus
	ProgressPct float64 // 0..100
	SpeedBps    int64
	SavePath    string
	Error       string
}

// TorrentFileSource is a magnet add (MagnetURI non-empty) or a raw
// .torrent file add (Data non-empty), mutually exclusive.
type TorrentFileSource struct {
	MagnetURI string
	Data      []byte
	Name      string
}

// TorrentClient adds, polls and removes downloads. It has its own
// internal synchronization; per-hash calls make no ordering guarantee
// relative to calls on other hashes (§5).
type TorrentClient interface {
	AddMagnet(ctx context.Context, magnetURI string) (infoHash string, err error)
	AddTorrentFile(ctx context.Context, src TorrentFileSource) (infoHash string, err error)
	Progress(ctx context.Context, infoHash string) (TorrentProgress, error)
	Pause(ctx context.Context, infoHash string) error
	Resume(ctx context.Context, infoHash string) error
	Remove(ctx context.Context, infoHash string) error
}

// ErrTorrentNotFound is returned by Progress when the client no longer
// knows about infoHash (§7's TorrentClient::TorrentNotFound kind).
var ErrTorrentNotFound = torrentNotFoundError{}

type torrentNotFoundError struct{}

func (torrentNotFoundError) Error() string { return "torrent not found" }
