// Package orchestrator drives the two long-running control loops described
// in SPEC_FULL.md §4.4: one sequential loop that acquires candidates for
// pending tickets, one concurrent loop that starts, monitors and fails
// over in-flight downloads before handing completed ones to the pipeline.
//
// The shape — small collaborator fields, a constructor, and loop methods
// launched as goroutines from main — generalizes the teacher's
// create_torrent usecase (a single-purpose struct with an Execute method)
// into long-lived loops, and its watcher's reconnect-on-error loop body
// into the per-tick poll/recover pattern used by both loops here.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// Config tunes the two loops, §4.4 and §6's Configuration section.
type Config struct {
	AcquisitionPollInterval time.Duration
	DownloadPollInterval    time.Duration
	AutoApproveThreshold    float64
	MaxConcurrentDownloads  int
	MaxFailoverCandidates   int
	StallTimeoutRound1      time.Duration
	StallTimeoutRound2      time.Duration
	StallTimeoutRound3      time.Duration
}

func (c Config) withDefaults() Config {
	if c.AcquisitionPollInterval <= 0 {
		c.AcquisitionPollInterval = 5 * time.Second
	}
	if c.DownloadPollInterval <= 0 {
		c.DownloadPollInterval = 10 * time.Second
	}
	if c.AutoApproveThreshold <= 0 {
		c.AutoApproveThreshold = 0.8
	}
	if c.MaxConcurrentDownloads <= 0 {
		c.MaxConcurrentDownloads = 3
	}
	if c.MaxFailoverCandidates <= 0 {
		c.MaxFailoverCandidates = 5
	}
	if c.StallTimeoutRound1 <= 0 {
		c.StallTimeoutRound1 = 10 * time.Minute
	}
	if c.StallTimeoutRound2 <= 0 {
		c.StallTimeoutRound2 = 20 * time.Minute
	}
	if c.StallTimeoutRound3 <= 0 {
		c.StallTimeoutRound3 = 40 * time.Minute
	}
	return c
}

func (c Config) stallTimeoutForRound(round int) time.Duration {
	switch round {
	case 1:
		return c.StallTimeoutRound1
	case 2:
		return c.StallTimeoutRound2
	default:
		return c.StallTimeoutRound3
	}
}

// trackedDownload is the in-memory bookkeeping row for one ticket's
// in-flight download, mirroring domain.StateDownloading plus the fields
// the monitor loop needs that are not worth persisting every tick.
type trackedDownload struct {
	InfoHash        string
	CandidateIdx    int
	FailoverRound   int
	LastProgressPct float64
	LastProgressAt  time.Time
	Candidates      []domain.SelectedCandidate
}

// Orchestrator owns the acquisition and download-monitor loops.
type Orchestrator struct {
	tickets  ports.TicketStore
	client   ports.TorrentClient
	pipeline ports.Pipeline
	audit    ports.AuditSink
	broad    ports.Broadcaster
	brain    ports.TextBrain
	searcher ports.Searcher
	log      *slog.Logger
	cfg      Config
	now      func() time.Time

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	active    map[domain.TicketID]*trackedDownload
	submitted map[domain.TicketID]struct{} // tickets with a pipeline job in flight
}

// New builds an Orchestrator. brain is the configured TextBrain
// (heuristic/LLM strategy already baked in per the daemon's configured
// mode); client, pipeline, audit and broad are the respective ports.
func New(tickets ports.TicketStore, client ports.TorrentClient, pipeline ports.Pipeline, audit ports.AuditSink, broad ports.Broadcaster, brain ports.TextBrain, searcher ports.Searcher, cfg Config, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		tickets:   tickets,
		client:    client,
		pipeline:  pipeline,
		audit:     audit,
		broad:     broad,
		brain:     brain,
		searcher:  searcher,
		log:       log,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		active:    make(map[domain.TicketID]*trackedDownload),
		submitted: make(map[domain.TicketID]struct{}),
	}
}

// Start is idempotent: a second call while already running is a no-op. It
// first reconciles in-flight downloads from durable state (so a restart
// resumes monitoring instead of abandoning them), then launches both
// loops.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return nil
	}
	o.done = make(chan struct{})

	if err := o.reconcile(ctx); err != nil {
		o.log.Error("orchestrator: reconcile active downloads", "error", err)
	}

	o.wg.Add(2)
	go o.runAcquisitionLoop(ctx)
	go o.runDownloadMonitorLoop(ctx)

	if o.broad != nil {
		o.broad.Publish(ports.MsgOrchestratorStatus{Running: true})
	}
	return nil
}

// Stop signals both loops to exit and waits (briefly) for them to drain.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if !o.running.CompareAndSwap(true, false) {
		return nil
	}
	close(o.done)

	waitDone := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-ctx.Done():
	}

	if o.broad != nil {
		o.broad.Publish(ports.MsgOrchestratorStatus{Running: false})
	}
	return nil
}

// reconcile rebuilds the active-downloads map from every ticket currently
// in Downloading, so the monitor loop picks up progress after a restart.
func (o *Orchestrator) reconcile(ctx context.Context) error {
	downloading, err := o.tickets.List(ctx, domain.TicketFilter{StateType: "downloading"})
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range downloading {
		state, ok := t.State.(domain.StateDownloading)
		if !ok {
			continue
		}
		o.active[t.ID] = &trackedDownload{
			InfoHash:        state.InfoHash,
			CandidateIdx:    state.CandidateIdx,
			FailoverRound:   state.FailoverRound,
			LastProgressPct: state.LastProgressPct,
			LastProgressAt:  state.LastProgressAt,
			Candidates:      state.Candidates,
		}
	}
	return nil
}

// Status is the §4.4 orchestrator status snapshot.
type Status struct {
	Running            bool  `json:"running"`
	ActiveDownloads    int   `json:"active_downloads"`
	AcquiringCount     int64 `json:"acquiring_count"`
	PendingCount       int64 `json:"pending_count"`
	NeedsApprovalCount int64 `json:"needs_approval_count"`
	DownloadingCount   int64 `json:"downloading_count"`
}

func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	o.mu.Lock()
	activeCount := len(o.active)
	o.mu.Unlock()

	pending, err := o.tickets.Count(ctx, domain.TicketFilter{StateType: "pending"})
	if err != nil {
		return Status{}, err
	}
	acquiring, err := o.tickets.Count(ctx, domain.TicketFilter{StateType: "acquiring"})
	if err != nil {
		return Status{}, err
	}
	needsApproval, err := o.tickets.Count(ctx, domain.TicketFilter{StateType: "needs_approval"})
	if err != nil {
		return Status{}, err
	}
	downloading, err := o.tickets.Count(ctx, domain.TicketFilter{StateType: "downloading"})
	if err != nil {
		return Status{}, err
	}

	return Status{
		Running:            o.running.Load(),
		ActiveDownloads:    activeCount,
		AcquiringCount:     acquiring,
		PendingCount:       pending,
		NeedsApprovalCount: needsApproval,
		DownloadingCount:   downloading,
	}, nil
}
