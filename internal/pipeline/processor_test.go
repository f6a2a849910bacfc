package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
	"github.com/lelloman/quentin-torrentino-sub000/internal/pipeline/converter"
	"github.com/lelloman/quentin-torrentino-sub000/internal/pipeline/placer"
)

type fakeTicketStore struct {
	mu     sync.Mutex
	states map[domain.TicketID]domain.TicketState
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{states: make(map[domain.TicketID]domain.TicketState)}
}

func (f *fakeTicketStore) Create(ctx context.Context, req domain.CreateTicketRequest) (domain.Ticket, error) {
	return domain.Ticket{}, nil
}
func (f *fakeTicketStore) Get(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	return domain.Ticket{}, nil
}
func (f *fakeTicketStore) List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	return nil, nil
}
func (f *fakeTicketStore) Count(ctx context.Context, filter domain.TicketFilter) (int64, error) {
	return 0, nil
}
func (f *fakeTicketStore) UpdateState(ctx context.Context, id domain.TicketID, newState domain.TicketState) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[id] = newState
	return domain.Ticket{ID: id, State: newState}, nil
}
func (f *fakeTicketStore) IncrementRetryCount(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	return domain.Ticket{}, nil
}
func (f *fakeTicketStore) Delete(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	return domain.Ticket{}, nil
}

func (f *fakeTicketStore) stateOf(id domain.TicketID) domain.TicketState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id]
}

type fakeAuditSink struct{}

func (fakeAuditSink) Emit(ctx context.Context, ticketID *domain.TicketID, userID *string, event domain.AuditEvent) {
}
func (fakeAuditSink) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	return nil, nil
}

func waitForState(t *testing.T, store *fakeTicketStore, id domain.TicketID, wantType string) domain.TicketState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := store.stateOf(id); s != nil && s.StateType() == wantType {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %q, last state: %v", wantType, store.stateOf(id))
	return nil
}

func TestProcessor_ProcessConvertsAndPlaces(t *testing.T) {
	sourceDir := t.TempDir()
	destDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(sourceDir, "01.flac"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	tickets := newFakeTicketStore()
	proc := New(tickets, fakeAuditSink{}, converter.New(), placer.New(), Config{TempDir: t.TempDir()}, nil)
	if err := proc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ticketID := domain.TicketID("ticket-1")
	job := ports.PipelineJob{
		TicketID:   ticketID,
		SourcePath: sourceDir,
		DestDir:    destDir,
		FileMappings: []domain.FileMapping{
			{FilePath: "01.flac", ItemID: "1"},
		},
	}

	if err := proc.Process(context.Background(), job, nil); err != nil {
		t.Fatalf("process: %v", err)
	}

	state := waitForState(t, tickets, ticketID, "completed")
	completed, ok := state.(domain.StateCompleted)
	if !ok {
		t.Fatalf("expected StateCompleted, got %T", state)
	}
	if completed.Stats.FilesPlaced != 1 {
		t.Fatalf("expected 1 file placed, got %d", completed.Stats.FilesPlaced)
	}
}

type fakeMediaNotifier struct {
	mu     sync.Mutex
	called int
	cfg    domain.MediaServerConfig
}

func (f *fakeMediaNotifier) NotifyMediaServer(ctx context.Context, cfg domain.MediaServerConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called++
	f.cfg = cfg
	return nil
}

func TestProcessor_NotifiesMediaServerOnCompletion(t *testing.T) {
	sourceDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(sourceDir, "01.flac"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	tickets := newFakeTicketStore()
	proc := New(tickets, fakeAuditSink{}, converter.New(), placer.New(), Config{TempDir: t.TempDir()}, nil)
	notifier := &fakeMediaNotifier{}
	proc.SetMediaNotifier(notifier, domain.MediaServerConfig{Enabled: true, URL: "http://example.invalid"})
	if err := proc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ticketID := domain.TicketID("ticket-notify")
	job := ports.PipelineJob{
		TicketID:   ticketID,
		SourcePath: sourceDir,
		DestDir:    destDir,
		FileMappings: []domain.FileMapping{
			{FilePath: "01.flac", ItemID: "1"},
		},
	}

	if err := proc.Process(context.Background(), job, nil); err != nil {
		t.Fatalf("process: %v", err)
	}
	waitForState(t, tickets, ticketID, "completed")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.called != 1 {
		t.Fatalf("expected notifier to be called once, got %d", notifier.called)
	}
}

func TestProcessor_RefusesDuplicateInFlightJob(t *testing.T) {
	tickets := newFakeTicketStore()
	proc := New(tickets, fakeAuditSink{}, converter.New(), placer.New(), Config{TempDir: t.TempDir()}, nil)
	proc.Start(context.Background())

	proc.mu.Lock()
	proc.inFlight[domain.TicketID("busy")] = struct{}{}
	proc.mu.Unlock()

	err := proc.Process(context.Background(), ports.PipelineJob{TicketID: "busy"}, nil)
	if err == nil {
		t.Fatal("expected an error submitting a job for an already in-flight ticket")
	}
}

func TestProcessor_RefusesSubmissionWhenStopped(t *testing.T) {
	tickets := newFakeTicketStore()
	proc := New(tickets, fakeAuditSink{}, converter.New(), placer.New(), Config{TempDir: t.TempDir()}, nil)

	err := proc.Process(context.Background(), ports.PipelineJob{TicketID: "t1"}, nil)
	if err == nil {
		t.Fatal("expected an error submitting to a stopped processor")
	}
}
