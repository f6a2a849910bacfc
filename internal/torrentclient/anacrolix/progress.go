package anacrolix

import (
	"context"
	"path/filepath"
	"time"

	"github.com/anacrolix/torrent"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// speedSample is the previous poll's cumulative byte counters, used to
// derive an instantaneous download rate; grounded on the teacher's
// sampleSpeed.
type speedSample struct {
	at        time.Time
	bytesRead int64
}

func (c *Client) Progress(ctx context.Context, infoHash string) (ports.TorrentProgress, error) {
	t := c.get(infoHash)
	if t == nil {
		return ports.TorrentProgress{}, ports.ErrTorrentNotFound
	}

	if !torrentInfoReady(t) {
		return ports.TorrentProgress{
			InfoHash:    infoHash,
			Status:      ports.TorrentStatusDownloading,
			ProgressPct: 0,
		}, nil
	}

	length := t.Length()
	completed := t.BytesCompleted()

	// Maintain a high-water mark: after a restart anacrolix re-verifies
	// pieces from disk and BytesCompleted can transiently dip below a
	// previously observed value.
	c.speedMu.Lock()
	if completed > c.peakBytes[infoHash] {
		c.peakBytes[infoHash] = completed
	} else {
		completed = c.peakBytes[infoHash]
	}
	c.speedMu.Unlock()

	var progressPct float64
	if length > 0 {
		progressPct = float64(completed) / float64(length) * 100
	}

	status := ports.TorrentStatusDownloading
	if length > 0 && completed >= length {
		status = ports.TorrentStatusSeeding
	}

	speed := c.sampleSpeed(infoHash, t.Stats(), time.Now())

	return ports.TorrentProgress{
		InfoHash:    infoHash,
		Status:      status,
		ProgressPct: progressPct,
		SpeedBps:    speed,
		SavePath:    filepath.Join(c.dataDir, t.Info().Name),
	}, nil
}

func (c *Client) sampleSpeed(infoHash string, stats torrent.TorrentStats, now time.Time) int64 {
	current := stats.BytesReadUsefulData.Int64()

	c.speedMu.Lock()
	defer c.speedMu.Unlock()

	prev, ok := c.speeds[infoHash]
	c.speeds[infoHash] = speedSample{at: now, bytesRead: current}
	if !ok || prev.at.IsZero() {
		return 0
	}
	return rateBetween(prev.at, prev.bytesRead, now, current)
}

// rateBetween derives bytes/sec between two cumulative byte readings.
func rateBetween(prevAt time.Time, prevBytes int64, now time.Time, current int64) int64 {
	elapsed := now.Sub(prevAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	delta := current - prevBytes
	if delta < 0 {
		delta = 0
	}
	return int64(float64(delta) / elapsed)
}

func (c *Client) forgetSpeed(infoHash string) {
	c.speedMu.Lock()
	delete(c.speeds, infoHash)
	delete(c.peakBytes, infoHash)
	c.speedMu.Unlock()
}
