package orchestrator

import (
	"context"
	"fmt"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// triggerPipeline builds and non-blockingly submits a PipelineJob once a
// download completes, per §4.4's "Pipeline trigger". Completion of the
// job itself arrives later as ticket state transitions the pipeline
// component initiates directly.
func (o *Orchestrator) triggerPipeline(ctx context.Context, id domain.TicketID, td trackedDownload, savePath string) error {
	ticket, err := o.tickets.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("trigger pipeline: load ticket: %w", err)
	}

	if td.CandidateIdx < 0 || td.CandidateIdx >= len(td.Candidates) {
		return fmt.Errorf("trigger pipeline: candidate index %d out of range", td.CandidateIdx)
	}
	selected := td.Candidates[td.CandidateIdx]

	job := ports.PipelineJob{
		TicketID:          id,
		SourcePath:        savePath,
		DestDir:           ticket.DestPath,
		FileMappings:      selected.FileMappings,
		OutputConstraints: ticket.OutputConstraints,
	}

	if _, err := o.tickets.UpdateState(ctx, id, domain.StateConverting{Total: len(selected.FileMappings), StartedAt: o.now()}); err != nil {
		o.log.Error("trigger pipeline: transition to converting", "ticket", id, "error", err)
	}

	if err := o.pipeline.Process(ctx, job, nil); err != nil {
		return fmt.Errorf("submit pipeline job: %w", err)
	}
	return nil
}
