package orchestrator

import (
	"context"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// runAcquisitionLoop is the sequential loop: at most one acquisition runs
// at a time, ticking every AcquisitionPollInterval.
func (o *Orchestrator) runAcquisitionLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.AcquisitionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.done:
			return
		case <-ticker.C:
			o.acquireOnce(ctx)
		}
	}
}

// acquireOnce fetches the highest-priority Pending ticket (if any) and
// drives it through acquisition, per §4.4.
func (o *Orchestrator) acquireOnce(ctx context.Context) {
	pending, err := o.tickets.List(ctx, domain.TicketFilter{StateType: "pending", Limit: 1})
	if err != nil {
		o.log.Error("acquisition loop: list pending", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	ticket := pending[0]

	if _, err := o.tickets.UpdateState(ctx, ticket.ID, domain.StateAcquiring{
		StartedAt: o.now(),
		Phase:     domain.PhaseQueryBuilding{},
	}); err != nil {
		o.log.Error("acquisition loop: transition to acquiring", "ticket", ticket.ID, "error", err)
		return
	}
	o.publishTicketUpdate(ticket.ID, domain.StateAcquiring{StartedAt: o.now(), Phase: domain.PhaseQueryBuilding{}})

	result, err := o.acquireWithAudit(ctx, ticket)
	if err != nil {
		o.failAcquisition(ctx, ticket.ID, err.Error())
		return
	}

	o.classifyAcquisition(ctx, ticket, result)
}

// acquisitionPhaseObserver persists a ticket's StateAcquiring.Phase as
// TextBrain.Acquire reports progress, so the UI can watch it live, and
// emits the matching fine-grained audit events.
type acquisitionPhaseObserver struct {
	o      *Orchestrator
	ticket domain.TicketID
}

func (p acquisitionPhaseObserver) OnPhase(ctx context.Context, phase domain.Phase) {
	switch ph := phase.(type) {
	case domain.PhaseQueryBuilding:
		p.o.audit.Emit(ctx, &p.ticket, nil, domain.EventQueryBuildingStarted{})
	case domain.PhaseSearching:
		p.o.audit.Emit(ctx, &p.ticket, nil, domain.EventSearchStarted{Query: ph.Query})
	case domain.PhaseScoring:
		p.o.audit.Emit(ctx, &p.ticket, nil, domain.EventScoringStarted{CandidateCount: ph.Count})
	}

	current, err := p.o.tickets.Get(ctx, p.ticket)
	if err != nil {
		return
	}
	acquiring, ok := current.State.(domain.StateAcquiring)
	if !ok {
		return
	}
	acquiring.Phase = phase
	if sp, ok := phase.(domain.PhaseSearching); ok {
		acquiring.QueriesTried = append(acquiring.QueriesTried, sp.Query)
	}
	if _, err := p.o.tickets.UpdateState(ctx, p.ticket, acquiring); err != nil {
		p.o.log.Warn("acquisition observer: persist phase", "ticket", p.ticket, "error", err)
	}
}

// acquireWithAudit runs TextBrain.Acquire, surrounding it with the
// coarse-grained acquisition_started/acquisition_completed audit events
// and the per-query fine-grained ones emitted by the phase observer.
func (o *Orchestrator) acquireWithAudit(ctx context.Context, ticket domain.Ticket) (ports.AcquisitionResult, error) {
	o.audit.Emit(ctx, &ticket.ID, nil, domain.EventAcquisitionStarted{})

	searcher := searcherAdapter{o: o, ticket: ticket.ID}
	observer := acquisitionPhaseObserver{o: o, ticket: ticket.ID}

	result, err := o.brain.Acquire(ctx, ticket.QueryContext, searcher, observer)
	if err != nil {
		o.audit.Emit(ctx, &ticket.ID, nil, domain.EventAcquisitionFailed{Reason: err.Error()})
		return ports.AcquisitionResult{}, err
	}

	bestScore := 0.0
	if result.BestCandidate != nil {
		bestScore = result.BestCandidate.Score
	}
	o.audit.Emit(ctx, &ticket.ID, nil, domain.EventQueriesGenerated{Queries: result.QueriesTried, Method: result.QueryMethod})
	o.audit.Emit(ctx, &ticket.ID, nil, domain.EventCandidatesScored{Count: result.CandidatesEvaluated, Method: result.ScoreMethod})
	o.audit.Emit(ctx, &ticket.ID, nil, domain.EventAcquisitionCompleted{
		AutoApproved: result.AutoApproved,
		BestScore:    bestScore,
		DurationMs:   result.DurationMs,
	})
	o.audit.Emit(ctx, &ticket.ID, nil, domain.EventTrainingDataCaptured{
		QueryMethod:    result.QueryMethod,
		ScoreMethod:    result.ScoreMethod,
		BestScore:      bestScore,
		CandidateCount: result.CandidatesEvaluated,
		AutoApproved:   result.AutoApproved,
	})

	return result, nil
}

// searcherAdapter wraps the orchestrator's configured Searcher port with a
// per-query search_completed audit event (search_started comes from the
// phase observer); TextBrain.Acquire itself only knows about ports.Searcher.
type searcherAdapter struct {
	o      *Orchestrator
	ticket domain.TicketID
}

func (s searcherAdapter) Search(ctx context.Context, query string, limit int) ([]domain.TorrentCandidate, error) {
	candidates, err := s.o.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	s.o.audit.Emit(ctx, &s.ticket, nil, domain.EventSearchCompleted{Query: query, CandidateCount: len(candidates)})
	return candidates, nil
}

// classifyAcquisition maps an AcquisitionResult onto the next ticket
// state, per §4.4's classification rules.
func (o *Orchestrator) classifyAcquisition(ctx context.Context, ticket domain.Ticket, result ports.AcquisitionResult) {
	if result.BestCandidate == nil {
		o.failAcquisition(ctx, ticket.ID, "no usable candidate found")
		return
	}

	best := *result.BestCandidate
	if result.AutoApproved && best.Score >= o.cfg.AutoApproveThreshold {
		candidates := topCandidates(result.AllCandidates, o.cfg.MaxFailoverCandidates)
		selected := make([]domain.SelectedCandidate, 0, len(candidates))
		for _, c := range candidates {
			selected = append(selected, selectedCandidateFrom(c))
		}
		state := domain.StateAutoApproved{
			Selected:   selected[0],
			Candidates: selected,
			Confidence: best.Score,
			ApprovedAt: o.now(),
		}
		if _, err := o.tickets.UpdateState(ctx, ticket.ID, state); err != nil {
			o.log.Error("acquisition loop: transition to auto_approved", "ticket", ticket.ID, "error", err)
			return
		}
		o.publishTicketUpdate(ticket.ID, state)
		return
	}

	top := topCandidates(result.AllCandidates, 5)
	summaries := make([]domain.CandidateSummary, 0, len(top))
	for _, c := range top {
		summaries = append(summaries, domain.CandidateSummary{
			Title:     c.Title,
			InfoHash:  c.InfoHash,
			SizeBytes: c.SizeBytes,
			Score:     c.Score,
			Reasoning: c.Reasoning,
		})
	}
	state := domain.StateNeedsApproval{
		Candidates:     summaries,
		RecommendedIdx: 0,
		Confidence:     best.Score,
		WaitingSince:   o.now(),
	}
	if _, err := o.tickets.UpdateState(ctx, ticket.ID, state); err != nil {
		o.log.Error("acquisition loop: transition to needs_approval", "ticket", ticket.ID, "error", err)
		return
	}
	o.publishTicketUpdate(ticket.ID, state)
}

func (o *Orchestrator) failAcquisition(ctx context.Context, id domain.TicketID, reason string) {
	state := domain.StateAcquisitionFailed{Reason: reason, FailedAt: o.now()}
	if _, err := o.tickets.UpdateState(ctx, id, state); err != nil {
		o.log.Error("acquisition loop: transition to acquisition_failed", "ticket", id, "error", err)
		return
	}
	o.publishTicketUpdate(id, state)
}

func (o *Orchestrator) publishTicketUpdate(id domain.TicketID, state domain.TicketState) {
	if o.broad == nil {
		return
	}
	o.broad.Publish(ports.MsgTicketUpdate{TicketID: id, State: state})
}

// selectedCandidateFrom picks the magnet/torrent-file URL to try first
// from a scored candidate's source observations, falling back to
// synthesizing a magnet from its info-hash when no source carries one
// (addTorrentFromCandidate's step 4).
func selectedCandidateFrom(c domain.ScoredCandidate) domain.SelectedCandidate {
	var magnet, torrentURL string
	for _, src := range c.Sources {
		if src.Magnet != "" && magnet == "" {
			magnet = src.Magnet
		}
		if src.URL != "" && torrentURL == "" {
			torrentURL = src.URL
		}
	}
	return domain.SelectedCandidateFromScored(c, magnet, torrentURL)
}

func topCandidates(all []domain.ScoredCandidate, n int) []domain.ScoredCandidate {
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	return append([]domain.ScoredCandidate(nil), all[:n]...)
}
