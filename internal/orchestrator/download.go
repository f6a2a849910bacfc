package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// runDownloadMonitorLoop ticks every DownloadPollInterval, starting newly
// approved downloads and polling in-flight ones, §4.4.
func (o *Orchestrator) runDownloadMonitorLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.DownloadPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.done:
			return
		case <-ticker.C:
			o.startApprovedDownloads(ctx)
			o.checkProgress(ctx)
		}
	}
}

func (o *Orchestrator) startApprovedDownloads(ctx context.Context) {
	o.mu.Lock()
	capacity := o.cfg.MaxConcurrentDownloads - len(o.active)
	o.mu.Unlock()
	if capacity <= 0 {
		return
	}

	for _, stateType := range []string{"auto_approved", "approved"} {
		tickets, err := o.tickets.List(ctx, domain.TicketFilter{StateType: stateType})
		if err != nil {
			o.log.Error("download loop: list approved", "state", stateType, "error", err)
			continue
		}
		for _, ticket := range tickets {
			if capacity <= 0 {
				return
			}
			o.mu.Lock()
			_, tracked := o.active[ticket.ID]
			o.mu.Unlock()
			if tracked {
				continue
			}

			candidates := candidatesOf(ticket.State)
			if len(candidates) == 0 {
				continue
			}
			if o.startDownload(ctx, ticket.ID, candidates) {
				capacity--
			}
		}
	}
}

// candidatesOf extracts the ordered candidate list carried by an
// AutoApproved or Approved ticket state.
func candidatesOf(state domain.TicketState) []domain.SelectedCandidate {
	switch s := state.(type) {
	case domain.StateAutoApproved:
		return s.Candidates
	case domain.StateApproved:
		return s.Candidates
	default:
		return nil
	}
}

// startDownload tries each candidate in order via addTorrentFromCandidate
// until one succeeds. Returns true if a download was started.
func (o *Orchestrator) startDownload(ctx context.Context, id domain.TicketID, candidates []domain.SelectedCandidate) bool {
	for idx, candidate := range candidates {
		infoHash, err := o.addTorrentFromCandidate(ctx, candidate)
		if err != nil {
			o.audit.Emit(ctx, &id, nil, domain.EventTorrentAddFailed{CandidateIdx: idx, Error: err.Error()})
			continue
		}

		o.audit.Emit(ctx, &id, nil, domain.EventTorrentAdded{InfoHash: infoHash, CandidateIdx: idx})

		now := o.now()
		o.mu.Lock()
		o.active[id] = &trackedDownload{
			InfoHash:        infoHash,
			CandidateIdx:    idx,
			FailoverRound:   1,
			LastProgressPct: 0,
			LastProgressAt:  now,
			Candidates:      candidates,
		}
		o.mu.Unlock()

		state := domain.StateDownloading{
			InfoHash:       infoHash,
			StartedAt:      now,
			CandidateIdx:   idx,
			FailoverRound:  1,
			LastProgressAt: now,
			Candidates:     candidates,
		}
		if _, err := o.tickets.UpdateState(ctx, id, state); err != nil {
			o.log.Error("download loop: transition to downloading", "ticket", id, "error", err)
		}
		o.publishTicketUpdate(id, state)
		return true
	}

	state := domain.StateFailed{Error: "all candidates failed to start", Retryable: true, FailedAt: o.now()}
	if _, err := o.tickets.UpdateState(ctx, id, state); err != nil {
		o.log.Error("download loop: transition to failed", "ticket", id, "error", err)
	}
	o.publishTicketUpdate(id, state)
	return false
}

// addTorrentFromCandidate implements the 5-step fallback chain of §4.4.
func (o *Orchestrator) addTorrentFromCandidate(ctx context.Context, c domain.SelectedCandidate) (string, error) {
	switch {
	case strings.HasPrefix(c.MagnetURI, "magnet:"):
		return o.client.AddMagnet(ctx, c.MagnetURI)

	case strings.HasPrefix(c.MagnetURI, "http://") || strings.HasPrefix(c.MagnetURI, "https://"):
		data, err := fetchTorrentFile(ctx, c.MagnetURI)
		if err != nil {
			if c.InfoHash != "" {
				magnet := fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", c.InfoHash, url.QueryEscape(c.Title))
				return o.client.AddMagnet(ctx, magnet)
			}
			return "", fmt.Errorf("download torrent file: %w", err)
		}
		return o.client.AddTorrentFile(ctx, ports.TorrentFileSource{Data: data, Name: c.Title})

	case c.TorrentURL != "":
		data, err := fetchTorrentFile(ctx, c.TorrentURL)
		if err != nil {
			return "", fmt.Errorf("download torrent file: %w", err)
		}
		return o.client.AddTorrentFile(ctx, ports.TorrentFileSource{Data: data, Name: c.Title})

	case c.InfoHash != "":
		magnet := fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", c.InfoHash, url.QueryEscape(c.Title))
		return o.client.AddMagnet(ctx, magnet)

	default:
		return "", fmt.Errorf("candidate has no magnet_uri, torrent_url or info_hash")
	}
}

func fetchTorrentFile(ctx context.Context, source string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, source)
	}
	return io.ReadAll(resp.Body)
}

// checkProgress polls the torrent client for every tracked download and
// advances state: completion triggers the pipeline, a stall or a vanished
// torrent triggers failover, otherwise the Downloading record is refreshed.
func (o *Orchestrator) checkProgress(ctx context.Context) {
	o.mu.Lock()
	snapshot := make(map[domain.TicketID]trackedDownload, len(o.active))
	for id, td := range o.active {
		snapshot[id] = *td
	}
	o.mu.Unlock()

	for id, td := range snapshot {
		o.checkOne(ctx, id, td)
	}
}

func (o *Orchestrator) checkOne(ctx context.Context, id domain.TicketID, td trackedDownload) {
	progress, err := o.client.Progress(ctx, td.InfoHash)
	if err != nil {
		if errors.Is(err, ports.ErrTorrentNotFound) || isVanished(err.Error()) {
			o.audit.Emit(ctx, &id, nil, domain.EventTorrentStalled{InfoHash: td.InfoHash, FailoverRound: td.FailoverRound})
			o.failover(ctx, id, td)
			return
		}
		o.log.Warn("download loop: poll progress", "ticket", id, "info_hash", td.InfoHash, "error", err)
		return
	}
	if isVanished(progress.Error) {
		o.audit.Emit(ctx, &id, nil, domain.EventTorrentStalled{InfoHash: td.InfoHash, FailoverRound: td.FailoverRound})
		o.failover(ctx, id, td)
		return
	}

	if progress.ProgressPct >= 100 || progress.Status == ports.TorrentStatusSeeding {
		o.mu.Lock()
		delete(o.active, id)
		o.mu.Unlock()

		o.audit.Emit(ctx, &id, nil, domain.EventDownloadCompleted{InfoHash: td.InfoHash})
		if err := o.triggerPipeline(ctx, id, td, progress.SavePath); err != nil {
			state := domain.StateFailed{Error: err.Error(), Retryable: true, FailedAt: o.now()}
			if _, uerr := o.tickets.UpdateState(ctx, id, state); uerr != nil {
				o.log.Error("download loop: transition to failed after pipeline submit error", "ticket", id, "error", uerr)
			}
			o.publishTicketUpdate(id, state)
		}
		return
	}

	now := o.now()
	if progress.ProgressPct > td.LastProgressPct {
		td.LastProgressPct = progress.ProgressPct
		td.LastProgressAt = now
	}

	stallDuration := now.Sub(td.LastProgressAt)
	threshold := o.cfg.stallTimeoutForRound(td.FailoverRound)
	if stallDuration >= threshold {
		o.failover(ctx, id, td)
		return
	}

	o.mu.Lock()
	o.active[id] = &td
	o.mu.Unlock()

	state := domain.StateDownloading{
		InfoHash:        td.InfoHash,
		ProgressPct:     progress.ProgressPct,
		SpeedBps:        progress.SpeedBps,
		StartedAt:       td.LastProgressAt,
		CandidateIdx:    td.CandidateIdx,
		FailoverRound:   td.FailoverRound,
		LastProgressPct: td.LastProgressPct,
		LastProgressAt:  td.LastProgressAt,
		Candidates:      td.Candidates,
	}
	if _, err := o.tickets.UpdateState(ctx, id, state); err != nil {
		o.log.Error("download loop: persist progress", "ticket", id, "error", err)
	}
	if o.broad != nil {
		o.broad.Publish(ports.MsgTorrentProgress{
			TicketID:    id,
			InfoHash:    td.InfoHash,
			ProgressPct: progress.ProgressPct,
			SpeedBps:    progress.SpeedBps,
		})
	}
}

func isVanished(errMsg string) bool {
	if errMsg == "" {
		return false
	}
	lower := strings.ToLower(errMsg)
	return strings.Contains(lower, "not found") || strings.Contains(lower, "404") || strings.Contains(lower, "no such")
}
