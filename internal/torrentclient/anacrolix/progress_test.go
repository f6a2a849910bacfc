package anacrolix

import (
	"context"
	"testing"
	"time"

	"github.com/anacrolix/torrent"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

func newTestClient() *Client {
	return &Client{
		torrents:  make(map[string]*torrent.Torrent),
		speeds:    make(map[string]speedSample),
		peakBytes: make(map[string]int64),
	}
}

func TestClient_ProgressUnknownHashReturnsNotFound(t *testing.T) {
	c := newTestClient()
	_, err := c.Progress(context.Background(), "unknown")
	if err != ports.ErrTorrentNotFound {
		t.Fatalf("expected ErrTorrentNotFound, got %v", err)
	}
}

func TestClient_PauseResumeRemoveUnknownHashReturnsNotFound(t *testing.T) {
	c := newTestClient()
	if err := c.Pause(context.Background(), "unknown"); err != ports.ErrTorrentNotFound {
		t.Fatalf("Pause: expected ErrTorrentNotFound, got %v", err)
	}
	if err := c.Resume(context.Background(), "unknown"); err != ports.ErrTorrentNotFound {
		t.Fatalf("Resume: expected ErrTorrentNotFound, got %v", err)
	}
	if err := c.Remove(context.Background(), "unknown"); err != ports.ErrTorrentNotFound {
		t.Fatalf("Remove: expected ErrTorrentNotFound, got %v", err)
	}
}

func TestRateBetween_ComputesBytesPerSecond(t *testing.T) {
	start := time.Now()
	got := rateBetween(start, 0, start.Add(time.Second), 1_000_000)
	if got != 1_000_000 {
		t.Fatalf("expected 1,000,000 B/s, got %d", got)
	}
}

func TestRateBetween_ClampsNegativeDeltaToZero(t *testing.T) {
	start := time.Now()
	got := rateBetween(start, 5_000, start.Add(time.Second), 1_000)
	if got != 0 {
		t.Fatalf("expected a shrinking counter to clamp to 0, got %d", got)
	}
}

func TestRateBetween_ZeroElapsedReturnsZero(t *testing.T) {
	now := time.Now()
	got := rateBetween(now, 0, now, 1_000)
	if got != 0 {
		t.Fatalf("expected 0 for zero elapsed time, got %d", got)
	}
}

func TestClient_ForgetSpeedClearsState(t *testing.T) {
	c := newTestClient()
	c.speeds["hash1"] = speedSample{at: time.Now(), bytesRead: 100}
	c.peakBytes["hash1"] = 100
	c.forgetSpeed("hash1")
	if _, ok := c.speeds["hash1"]; ok {
		t.Fatal("expected speed sample to be forgotten")
	}
	if _, ok := c.peakBytes["hash1"]; ok {
		t.Fatal("expected peak-bytes high-water mark to be forgotten")
	}
}
