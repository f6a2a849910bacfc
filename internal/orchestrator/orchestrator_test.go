package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

type fakeTicketStore struct {
	mu      sync.Mutex
	tickets map[domain.TicketID]domain.Ticket
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{tickets: make(map[domain.TicketID]domain.Ticket)}
}

func (f *fakeTicketStore) seed(t domain.Ticket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[t.ID] = t
}

func (f *fakeTicketStore) Create(ctx context.Context, req domain.CreateTicketRequest) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := domain.Ticket{
		ID:                domain.TicketID(uuid.NewString()),
		CreatedBy:         req.CreatedBy,
		Priority:          req.Priority,
		QueryContext:      req.QueryContext,
		DestPath:          req.DestPath,
		OutputConstraints: req.OutputConstraints,
		State:             domain.StatePending{},
	}
	f.tickets[t.ID] = t
	return t, nil
}

func (f *fakeTicketStore) Get(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTicketStore) List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if filter.StateType != "" && t.State.StateType() != filter.StateType {
			continue
		}
		out = append(out, t)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeTicketStore) Count(ctx context.Context, filter domain.TicketFilter) (int64, error) {
	tickets, _ := f.List(ctx, domain.TicketFilter{StateType: filter.StateType})
	return int64(len(tickets)), nil
}

func (f *fakeTicketStore) UpdateState(ctx context.Context, id domain.TicketID, newState domain.TicketState) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrNotFound
	}
	t.State = newState
	t.UpdatedAt = time.Now()
	f.tickets[id] = t
	return t, nil
}

func (f *fakeTicketStore) IncrementRetryCount(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tickets[id]
	t.RetryCount++
	f.tickets[id] = t
	return t, nil
}

func (f *fakeTicketStore) Delete(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tickets[id]
	delete(f.tickets, id)
	return t, nil
}

type fakeTorrentClient struct {
	mu        sync.Mutex
	addCalls  int
	failAdd   bool
	progress  map[string]ports.TorrentProgress
	removed   []string
}

func (f *fakeTorrentClient) AddMagnet(ctx context.Context, magnetURI string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.failAdd {
		return "", fmt.Errorf("add failed")
	}
	return "hash-" + magnetURI[len(magnetURI)-4:], nil
}

func (f *fakeTorrentClient) AddTorrentFile(ctx context.Context, src ports.TorrentFileSource) (string, error) {
	return "hash-file", nil
}

func (f *fakeTorrentClient) Progress(ctx context.Context, infoHash string) (ports.TorrentProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[infoHash]
	if !ok {
		return ports.TorrentProgress{}, ports.ErrTorrentNotFound
	}
	return p, nil
}

func (f *fakeTorrentClient) Pause(ctx context.Context, infoHash string) error  { return nil }
func (f *fakeTorrentClient) Resume(ctx context.Context, infoHash string) error { return nil }
func (f *fakeTorrentClient) Remove(ctx context.Context, infoHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, infoHash)
	return nil
}

type fakeAuditSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (f *fakeAuditSink) Emit(ctx context.Context, ticketID *domain.TicketID, userID *string, event domain.AuditEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeAuditSink) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	return nil, nil
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []ports.BroadcastMessage
}

func (f *fakeBroadcaster) Publish(msg ports.BroadcastMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeBroadcaster) Subscribe() (<-chan ports.BroadcastMessage, func()) {
	ch := make(chan ports.BroadcastMessage)
	return ch, func() {}
}

type fakeTextBrain struct {
	result ports.AcquisitionResult
	err    error
}

func (f *fakeTextBrain) BuildQueries(ctx context.Context, qc domain.QueryContext) (ports.QueryBuildResult, error) {
	return ports.QueryBuildResult{Queries: []string{"q"}, Method: "heuristic"}, nil
}

func (f *fakeTextBrain) ScoreCandidates(ctx context.Context, qc domain.QueryContext, candidates []domain.TorrentCandidate) (ports.ScoreResult, error) {
	return ports.ScoreResult{Method: "heuristic"}, nil
}

func (f *fakeTextBrain) Acquire(ctx context.Context, qc domain.QueryContext, searcher ports.Searcher, observer ports.AcquisitionPhaseObserver) (ports.AcquisitionResult, error) {
	if observer != nil {
		observer.OnPhase(ctx, domain.PhaseQueryBuilding{})
		observer.OnPhase(ctx, domain.PhaseSearching{Query: "test query"})
	}
	searcher.Search(ctx, "test query", 50)
	return f.result, f.err
}

type fakeSearcher struct{}

func (fakeSearcher) Search(ctx context.Context, query string, limit int) ([]domain.TorrentCandidate, error) {
	return []domain.TorrentCandidate{{Title: "Result", InfoHash: "abc123"}}, nil
}

type fakePipeline struct {
	processed []ports.PipelineJob
}

func (f *fakePipeline) Process(ctx context.Context, job ports.PipelineJob, progress chan<- ports.PipelineProgressEvent) error {
	f.processed = append(f.processed, job)
	return nil
}
func (f *fakePipeline) Start(ctx context.Context) error { return nil }
func (f *fakePipeline) Stop(ctx context.Context) error  { return nil }

func newTestOrchestrator(tickets *fakeTicketStore, client *fakeTorrentClient, brain ports.TextBrain, cfg Config) (*Orchestrator, *fakeAuditSink, *fakeBroadcaster) {
	audit := &fakeAuditSink{}
	broad := &fakeBroadcaster{}
	o := New(tickets, client, &fakePipeline{}, audit, broad, brain, fakeSearcher{}, cfg, nil)
	return o, audit, broad
}

func TestOrchestrator_AcquireOnceAutoApproves(t *testing.T) {
	tickets := newFakeTicketStore()
	id := domain.TicketID(uuid.NewString())
	tickets.seed(domain.Ticket{ID: id, QueryContext: domain.QueryContext{Description: "x"}, State: domain.StatePending{}})

	best := domain.ScoredCandidate{TorrentCandidate: domain.TorrentCandidate{Title: "Best", InfoHash: "abc123"}, Score: 0.9}
	brain := &fakeTextBrain{result: ports.AcquisitionResult{
		BestCandidate: &best,
		AllCandidates: []domain.ScoredCandidate{best},
		AutoApproved:  true,
	}}

	o, audit, broad := newTestOrchestrator(tickets, &fakeTorrentClient{}, brain, Config{AutoApproveThreshold: 0.5})
	o.acquireOnce(context.Background())

	ticket, err := tickets.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ticket.State.StateType() != "auto_approved" {
		t.Fatalf("expected auto_approved, got %s", ticket.State.StateType())
	}
	if len(audit.events) == 0 {
		t.Fatal("expected audit events to be emitted")
	}
	if len(broad.messages) == 0 {
		t.Fatal("expected broadcast messages to be emitted")
	}
}

func TestOrchestrator_AcquireOnceNeedsApproval(t *testing.T) {
	tickets := newFakeTicketStore()
	id := domain.TicketID(uuid.NewString())
	tickets.seed(domain.Ticket{ID: id, QueryContext: domain.QueryContext{Description: "x"}, State: domain.StatePending{}})

	best := domain.ScoredCandidate{TorrentCandidate: domain.TorrentCandidate{Title: "Maybe", InfoHash: "def456"}, Score: 0.3}
	brain := &fakeTextBrain{result: ports.AcquisitionResult{
		BestCandidate: &best,
		AllCandidates: []domain.ScoredCandidate{best},
		AutoApproved:  false,
	}}

	o, _, _ := newTestOrchestrator(tickets, &fakeTorrentClient{}, brain, Config{AutoApproveThreshold: 0.8})
	o.acquireOnce(context.Background())

	ticket, _ := tickets.Get(context.Background(), id)
	if ticket.State.StateType() != "needs_approval" {
		t.Fatalf("expected needs_approval, got %s", ticket.State.StateType())
	}
}

func TestOrchestrator_StartIsIdempotentAndStopDrains(t *testing.T) {
	tickets := newFakeTicketStore()
	o, _, _ := newTestOrchestrator(tickets, &fakeTorrentClient{}, &fakeTextBrain{}, Config{
		AcquisitionPollInterval: time.Hour,
		DownloadPollInterval:    time.Hour,
	})

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := o.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !o.running.Load() {
		t.Fatal("expected running after Start")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := o.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if o.running.Load() {
		t.Fatal("expected not running after Stop")
	}
}

func TestFailover_AdvancesCandidateAndRound(t *testing.T) {
	tickets := newFakeTicketStore()
	id := domain.TicketID(uuid.NewString())
	tickets.seed(domain.Ticket{ID: id, State: domain.StateDownloading{}})

	client := &fakeTorrentClient{}
	o, audit, _ := newTestOrchestrator(tickets, client, &fakeTextBrain{}, Config{})
	o.mu.Lock()
	o.active[id] = &trackedDownload{
		InfoHash:     "hash0",
		CandidateIdx: 1,
		FailoverRound: 1,
		Candidates: []domain.SelectedCandidate{
			{InfoHash: "h0"}, {InfoHash: "h1"},
		},
	}
	o.mu.Unlock()

	td := *o.active[id]
	o.failover(context.Background(), id, td)

	o.mu.Lock()
	updated := o.active[id]
	o.mu.Unlock()
	if updated == nil {
		t.Fatal("expected tracked download to remain after round-1 failover")
	}
	if updated.CandidateIdx != 0 || updated.FailoverRound != 2 {
		t.Fatalf("expected candidate_idx=0 round=2 after wrapping past the last candidate, got idx=%d round=%d", updated.CandidateIdx, updated.FailoverRound)
	}
	if len(client.removed) != 1 || client.removed[0] != "hash0" {
		t.Fatalf("expected old torrent removed, got %v", client.removed)
	}
	foundTriggered := false
	for _, e := range audit.events {
		if _, ok := e.(domain.EventFailoverTriggered); ok {
			foundTriggered = true
		}
	}
	if !foundTriggered {
		t.Fatal("expected a failover_triggered audit event")
	}
}

func TestFailover_ExhaustsAfterRoundThree(t *testing.T) {
	tickets := newFakeTicketStore()
	id := domain.TicketID(uuid.NewString())
	tickets.seed(domain.Ticket{ID: id, State: domain.StateDownloading{}})

	client := &fakeTorrentClient{}
	o, _, _ := newTestOrchestrator(tickets, client, &fakeTextBrain{}, Config{})
	td := trackedDownload{
		InfoHash:      "hash0",
		CandidateIdx:  1,
		FailoverRound: 3,
		Candidates:    []domain.SelectedCandidate{{InfoHash: "h0"}, {InfoHash: "h1"}},
	}
	o.mu.Lock()
	o.active[id] = &td
	o.mu.Unlock()

	o.failover(context.Background(), id, td)

	o.mu.Lock()
	_, tracked := o.active[id]
	o.mu.Unlock()
	if tracked {
		t.Fatal("expected ticket to be removed from active map after exhausting failover")
	}

	ticket, _ := tickets.Get(context.Background(), id)
	failed, ok := ticket.State.(domain.StateFailed)
	if !ok {
		t.Fatalf("expected failed, got %s", ticket.State.StateType())
	}
	if failed.Retryable {
		t.Fatal("expected candidate exhaustion to be non-retryable")
	}
}
