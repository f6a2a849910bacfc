package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// failover implements §4.4's failover arithmetic: remove the current
// torrent, advance (candidate_idx, failover_round), and either try the
// next candidate or, past round 3, give up with a precise reason.
func (o *Orchestrator) failover(ctx context.Context, id domain.TicketID, td trackedDownload) {
	_ = o.client.Remove(ctx, td.InfoHash)

	nextIdx := td.CandidateIdx + 1
	nextRound := td.FailoverRound
	if nextIdx >= len(td.Candidates) {
		nextIdx = 0
		nextRound++
	}

	o.audit.Emit(ctx, &id, nil, domain.EventFailoverTriggered{
		FromIdx:   td.CandidateIdx,
		ToIdx:     nextIdx,
		NextRound: nextRound,
	})

	if nextRound > 3 {
		o.exhaustFailover(ctx, id, td)
		return
	}

	candidate := td.Candidates[nextIdx]
	infoHash, err := o.addTorrentFromCandidate(ctx, candidate)
	now := o.now()
	if err != nil {
		o.audit.Emit(ctx, &id, nil, domain.EventTorrentAddFailed{CandidateIdx: nextIdx, Error: err.Error()})

		// Don't hang waiting for the next tick to notice a stalled
		// candidate that never even started: rewind LastProgressAt past
		// the stall threshold for the round we just entered so checkOne
		// immediately retries with the candidate after this one.
		threshold := o.cfg.stallTimeoutForRound(nextRound)
		retry := trackedDownload{
			InfoHash:        td.InfoHash,
			CandidateIdx:    nextIdx,
			FailoverRound:   nextRound,
			LastProgressPct: 0,
			LastProgressAt:  now.Add(-threshold - time.Second),
			Candidates:      td.Candidates,
		}
		o.mu.Lock()
		o.active[id] = &retry
		o.mu.Unlock()
		return
	}

	o.audit.Emit(ctx, &id, nil, domain.EventTorrentAdded{InfoHash: infoHash, CandidateIdx: nextIdx})

	updated := trackedDownload{
		InfoHash:        infoHash,
		CandidateIdx:    nextIdx,
		FailoverRound:   nextRound,
		LastProgressPct: 0,
		LastProgressAt:  now,
		Candidates:      td.Candidates,
	}
	o.mu.Lock()
	o.active[id] = &updated
	o.mu.Unlock()

	state := domain.StateDownloading{
		InfoHash:        infoHash,
		StartedAt:       now,
		CandidateIdx:    nextIdx,
		FailoverRound:   nextRound,
		LastProgressAt:  now,
		Candidates:      td.Candidates,
	}
	if _, uerr := o.tickets.UpdateState(ctx, id, state); uerr != nil {
		o.log.Error("failover: persist downloading state", "ticket", id, "error", uerr)
	}
	o.publishTicketUpdate(id, state)
}

// exhaustFailover gives up after round 3, reporting the candidate count
// and the total wall-clock budget that was spent trying every round.
func (o *Orchestrator) exhaustFailover(ctx context.Context, id domain.TicketID, td trackedDownload) {
	o.mu.Lock()
	delete(o.active, id)
	o.mu.Unlock()

	count := len(td.Candidates)
	budget := o.cfg.StallTimeoutRound1 + o.cfg.StallTimeoutRound2 + o.cfg.StallTimeoutRound3
	totalHours := float64(budget) * float64(count) / float64(time.Hour)

	o.audit.Emit(ctx, &id, nil, domain.EventCandidatesExhausted{CandidateCount: count, Rounds: 3})

	reason := fmt.Sprintf("exhausted %d candidates across 3 rounds (%.1fh total wall-clock budget)", count, totalHours)
	state := domain.StateFailed{Error: reason, Retryable: false, FailedAt: o.now()}
	if _, err := o.tickets.UpdateState(ctx, id, state); err != nil {
		o.log.Error("failover: transition to failed", "ticket", id, "error", err)
	}
	o.publishTicketUpdate(id, state)
}
