// Package pipeline implements the conversion + placement processor
// described in SPEC_FULL.md §4.5: two bounded worker pools, one for
// conversions and one for placements, backed by
// golang.org/x/sync/semaphore the same way the teacher's search
// aggregator bounds concurrent provider fan-out.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// Config tunes the processor's concurrency and scratch space.
type Config struct {
	MaxParallelConversions int64
	MaxParallelPlacements  int64
	TempDir                string
}

func (c Config) withDefaults() Config {
	if c.MaxParallelConversions <= 0 {
		c.MaxParallelConversions = 2
	}
	if c.MaxParallelPlacements <= 0 {
		c.MaxParallelPlacements = 4
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	return c
}

// MediaNotifier triggers a media server library rescan once a job
// places its files. Optional: a nil Processor.notifier skips the call.
type MediaNotifier interface {
	NotifyMediaServer(ctx context.Context, cfg domain.MediaServerConfig) error
}

// Processor implements ports.Pipeline.
type Processor struct {
	tickets   ports.TicketStore
	audit     ports.AuditSink
	converter ports.Converter
	placer    ports.Placer
	cfg       Config
	log       *slog.Logger

	notifier       MediaNotifier
	mediaServerCfg domain.MediaServerConfig

	convSem  *semaphore.Weighted
	placeSem *semaphore.Weighted

	mu        sync.Mutex
	running   bool
	inFlight  map[domain.TicketID]struct{}
}

func New(tickets ports.TicketStore, audit ports.AuditSink, conv ports.Converter, placer ports.Placer, cfg Config, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Processor{
		tickets:   tickets,
		audit:     audit,
		converter: conv,
		placer:    placer,
		cfg:       cfg,
		log:       log,
		convSem:   semaphore.NewWeighted(cfg.MaxParallelConversions),
		placeSem:  semaphore.NewWeighted(cfg.MaxParallelPlacements),
		inFlight:  make(map[domain.TicketID]struct{}),
	}
}

// SetMediaNotifier wires an optional media server notification into
// completed jobs. Calling it is optional; no notification fires until
// it is set.
func (p *Processor) SetMediaNotifier(n MediaNotifier, cfg domain.MediaServerConfig) {
	p.notifier = n
	p.mediaServerCfg = cfg
}

func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	return nil
}

func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// Process refuses submission if the processor is stopped or a job for the
// same ticket is already in flight; otherwise it processes the job in a
// background goroutine and returns immediately.
func (p *Processor) Process(ctx context.Context, job ports.PipelineJob, progress chan<- ports.PipelineProgressEvent) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline processor is not running")
	}
	if _, ok := p.inFlight[job.TicketID]; ok {
		p.mu.Unlock()
		return fmt.Errorf("a pipeline job for ticket %s is already in flight", job.TicketID)
	}
	p.inFlight[job.TicketID] = struct{}{}
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.inFlight, job.TicketID)
			p.mu.Unlock()
		}()
		// Detach from the caller's request-scoped context: processing
		// outlives Process's non-blocking call.
		p.run(context.Background(), job, progress)
	}()

	return nil
}

func (p *Processor) run(ctx context.Context, job ports.PipelineJob, progress chan<- ports.PipelineProgressEvent) {
	tempDir := filepath.Join(p.cfg.TempDir, string(job.TicketID))
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		p.failJob(ctx, job, "conversion", fmt.Errorf("create temp dir: %w", err), progress)
		return
	}

	convertedPaths, err := p.convert(ctx, job, tempDir, progress)
	if err != nil {
		os.RemoveAll(tempDir)
		p.failJob(ctx, job, "conversion", err, progress)
		return
	}

	filesPlaced, bytesPlaced, err := p.place(ctx, job, convertedPaths, progress)
	if err != nil {
		os.RemoveAll(tempDir)
		p.failJob(ctx, job, "placement", err, progress)
		return
	}

	os.RemoveAll(tempDir)

	p.audit.Emit(ctx, &job.TicketID, nil, domain.EventPlacementCompleted{FilesPlaced: filesPlaced, TotalBytes: bytesPlaced})
	p.audit.Emit(ctx, &job.TicketID, nil, domain.EventTicketCompleted{Stats: domain.CompletionStats{FilesPlaced: filesPlaced, TotalBytes: bytesPlaced}})
	if progress != nil {
		progress <- ports.ProgressPipelineCompleted{Files: filesPlaced, Bytes: bytesPlaced}
	}

	state := domain.StateCompleted{
		CompletedAt: time.Now(),
		Stats:       domain.CompletionStats{FilesPlaced: filesPlaced, TotalBytes: bytesPlaced},
	}
	if _, err := p.tickets.UpdateState(ctx, job.TicketID, state); err != nil {
		p.log.Error("pipeline: transition to completed", "ticket", job.TicketID, "error", err)
	}

	if p.notifier != nil {
		if err := p.notifier.NotifyMediaServer(ctx, p.mediaServerCfg); err != nil {
			p.log.Warn("pipeline: media server notify failed", "ticket", job.TicketID, "error", err)
		}
	}
}

// convertedFile pairs a mapping's item id with the file it produced.
type convertedFile struct {
	itemID string
	path   string
}

func (p *Processor) convert(ctx context.Context, job ports.PipelineJob, tempDir string, progress chan<- ports.PipelineProgressEvent) ([]convertedFile, error) {
	total := len(job.FileMappings)
	p.audit.Emit(ctx, &job.TicketID, nil, domain.EventConversionStarted{Total: total})

	results := make([]convertedFile, total)
	errs := make([]error, total)
	var wg sync.WaitGroup

	for i, mapping := range job.FileMappings {
		if err := p.convSem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func(idx int, m domain.FileMapping) {
			defer wg.Done()
			defer p.convSem.Release(1)

			outExt := outputExtension(job.OutputConstraints, m.FilePath)
			outputPath := filepath.Join(tempDir, fmt.Sprintf("%s.%s", sanitizeItemID(m.ItemID), outExt))
			convJob := ports.ConversionJob{
				ItemID:            m.ItemID,
				SourcePath:        filepath.Join(job.SourcePath, m.FilePath),
				OutputPath:        outputPath,
				OutputConstraints: job.OutputConstraints,
			}

			if progress != nil {
				progress <- ports.ProgressConverting{Current: idx + 1, Total: total, CurrentFileName: m.FilePath, Percent: 0}
			}

			result, err := p.converter.Convert(ctx, convJob)
			if err != nil {
				errs[idx] = err
				return
			}
			if progress != nil {
				progress <- ports.ProgressConverting{Current: idx + 1, Total: total, CurrentFileName: m.FilePath, Percent: 100}
			}
			results[idx] = convertedFile{itemID: m.ItemID, path: result.OutputPath}
		}(i, mapping)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			p.audit.Emit(ctx, &job.TicketID, nil, domain.EventConversionFailed{Error: err.Error(), Retryable: true})
			return nil, fmt.Errorf("conversion: %w", err)
		}
	}

	p.audit.Emit(ctx, &job.TicketID, nil, domain.EventConversionCompleted{FilesConverted: len(results)})
	return results, nil
}

func (p *Processor) place(ctx context.Context, job ports.PipelineJob, converted []convertedFile, progress chan<- ports.PipelineProgressEvent) (int, int64, error) {
	if err := p.placeSem.Acquire(ctx, 1); err != nil {
		return 0, 0, err
	}
	defer p.placeSem.Release(1)

	p.audit.Emit(ctx, &job.TicketID, nil, domain.EventPlacementStarted{TotalFiles: len(converted)})

	placements := make([]ports.FilePlacement, 0, len(converted))
	for _, c := range converted {
		placements = append(placements, ports.FilePlacement{
			ItemID:      c.itemID,
			Source:      c.path,
			Destination: filepath.Join(job.DestDir, filepath.Base(c.path)),
			Overwrite:   false,
		})
	}

	if progress != nil {
		progress <- ports.ProgressPlacing{FilesPlaced: 0, TotalFiles: len(placements)}
	}

	result, err := p.placer.Place(ctx, placements)
	if err != nil {
		p.audit.Emit(ctx, &job.TicketID, nil, domain.EventPlacementFailed{Error: err.Error()})
		return 0, 0, fmt.Errorf("placement: %w", err)
	}

	if progress != nil {
		progress <- ports.ProgressPlacing{FilesPlaced: result.FilesPlaced, TotalFiles: len(placements), Bytes: result.TotalBytes}
	}

	return result.FilesPlaced, result.TotalBytes, nil
}

func (p *Processor) failJob(ctx context.Context, job ports.PipelineJob, phase string, err error, progress chan<- ports.PipelineProgressEvent) {
	p.log.Error("pipeline: job failed", "ticket", job.TicketID, "phase", phase, "error", err)
	if progress != nil {
		progress <- ports.ProgressPipelineFailed{Error: err, FailedPhase: phase}
	}
	state := domain.StateFailed{Error: err.Error(), Retryable: true, FailedAt: time.Now()}
	if _, uerr := p.tickets.UpdateState(ctx, job.TicketID, state); uerr != nil {
		p.log.Error("pipeline: transition to failed", "ticket", job.TicketID, "error", uerr)
	}
	p.audit.Emit(ctx, &job.TicketID, nil, domain.EventTicketFailed{Error: err.Error(), Retryable: true})
}

func outputExtension(constraints *domain.OutputConstraints, sourcePath string) string {
	if constraints != nil {
		if constraints.AudioFormat != "" {
			return constraints.AudioFormat
		}
		if constraints.VideoFormat != "" {
			return constraints.VideoFormat
		}
	}
	ext := filepath.Ext(sourcePath)
	if len(ext) > 1 {
		return ext[1:]
	}
	return "bin"
}

func sanitizeItemID(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "item"
	}
	return string(out)
}
