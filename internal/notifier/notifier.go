// Package notifier sends a library-refresh request to an optional media
// server once a pipeline job places its files, grounded on the teacher's
// internal/notifier/notifier.go.teacher: same POST /Library/Refresh +
// X-Emby-Token request shape, same "log, don't fail" posture (placement
// has already succeeded and is already persisted by the time this runs),
// restated with slog instead of the log package to match this daemon's
// ambient logging.
package notifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// Notifier posts library-refresh requests to a configured media server.
type Notifier struct {
	client *http.Client
	log    *slog.Logger
}

func New(log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{client: &http.Client{Timeout: 5 * time.Second}, log: log}
}

// NotifyMediaServer sends POST /Library/Refresh. A no-op when disabled
// or URL is empty. Delivery failures are logged, never returned: the
// ticket has already transitioned to completed by the time this runs.
func (n *Notifier) NotifyMediaServer(ctx context.Context, cfg domain.MediaServerConfig) error {
	if !cfg.Enabled || strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	url := strings.TrimRight(cfg.URL, "/") + "/Library/Refresh"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", cfg.APIKey)

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("notifier: refresh request failed", slog.String("url", url), slog.String("error", err.Error()))
		return nil
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		n.log.Warn("notifier: refresh request rejected", slog.String("url", url), slog.Int("status", resp.StatusCode))
	}
	return nil
}

// TestConnection checks reachability and that the API key is accepted.
// Returns an empty string on success, else a human-readable reason.
func (n *Notifier) TestConnection(ctx context.Context, cfg domain.MediaServerConfig) string {
	if strings.TrimSpace(cfg.URL) == "" {
		return "URL is required"
	}
	url := strings.TrimRight(cfg.URL, "/") + "/Library/Refresh"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err.Error()
	}
	req.Header.Set("X-Emby-Token", cfg.APIKey)
	resp, err := n.client.Do(req)
	if err != nil {
		return err.Error()
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return "invalid API key"
	}
	if resp.StatusCode >= 400 {
		return fmt.Sprintf("server returned %d", resp.StatusCode)
	}
	return ""
}
