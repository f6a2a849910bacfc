package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

type fakeTicketStore struct {
	tickets map[domain.TicketID]domain.Ticket
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{tickets: make(map[domain.TicketID]domain.Ticket)}
}

func (f *fakeTicketStore) Create(ctx context.Context, req domain.CreateTicketRequest) (domain.Ticket, error) {
	id := domain.TicketID(uuid.NewString())
	now := time.Now().UTC()
	t := domain.Ticket{
		ID:                id,
		CreatedAt:         now,
		UpdatedAt:         now,
		CreatedBy:         req.CreatedBy,
		Priority:          req.Priority,
		QueryContext:      req.QueryContext,
		DestPath:          req.DestPath,
		OutputConstraints: req.OutputConstraints,
		State:             domain.StatePending{},
	}
	f.tickets[id] = t
	return t, nil
}

func (f *fakeTicketStore) Get(ctx context.Context, id domain.TicketID) (domain.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, &domain.NotFoundError{ID: string(id)}
	}
	return t, nil
}

func (f *fakeTicketStore) List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTicketStore) Count(ctx context.Context, filter domain.TicketFilter) (int64, error) {
	return int64(len(f.tickets)), nil
}

func (f *fakeTicketStore) UpdateState(ctx context.Context, id domain.TicketID, newState domain.TicketState) (domain.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, &domain.NotFoundError{ID: string(id)}
	}
	if newState.StateType() == "cancelled" && !domain.CanCancel(t.State) {
		return domain.Ticket{}, &domain.InvalidStateError{TicketID: id, CurrentState: t.State.StateType(), Operation: "cancel"}
	}
	t.State = newState
	t.UpdatedAt = time.Now().UTC()
	f.tickets[id] = t
	return t, nil
}

func newTestServer() (*Server, *fakeTicketStore) {
	store := newFakeTicketStore()
	return NewServer(store), store
}

func TestServer_CreateTicketReturns201(t *testing.T) {
	s, _ := newTestServer()
	body := bytes.NewBufferString(`{"dest_path":"/media/movies","query_context":{"tags":["movie"],"description":"a film"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", body)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ticketResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DestPath != "/media/movies" {
		t.Fatalf("unexpected dest_path: %q", resp.DestPath)
	}
}

func TestServer_CreateTicketRejectsMissingDestPath(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestServer_GetUnknownTicketReturns404(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets/unknown", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServer_CancelTicketThenCancelAgainReturns409(t *testing.T) {
	s, store := newTestServer()
	var ticket domain.Ticket
	for id, t := range store.tickets {
		_ = id
		ticket = t
	}
	if ticket.ID == "" {
		created, _ := store.Create(context.Background(), domain.CreateTicketRequest{DestPath: "/x"})
		ticket = created
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tickets/"+string(ticket.ID), bytes.NewBufferString(`{"reason":"no longer needed"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on first cancel, got %d: %s", rec.Code, rec.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodDelete, "/api/v1/tickets/"+string(ticket.ID), bytes.NewBufferString(`{}`))
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusConflict {
		t.Fatalf("expected 409 on already-cancelled ticket, got %d", rec2.Code)
	}
}

func TestServer_HealthReturnsOK(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServer_APIKeyAuthRejectsUnauthenticatedWrite(t *testing.T) {
	store := newFakeTicketStore()
	s := NewServer(store, WithAuth(AuthConfig{Method: "api_key", APIKey: "secret"}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", bytes.NewBufferString(`{"dest_path":"/x"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without API key, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", bytes.NewBufferString(`{"dest_path":"/x"}`))
	req2.Header.Set("X-API-Key", "secret")
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusCreated {
		t.Fatalf("expected 201 with valid API key, got %d: %s", rec2.Code, rec2.Body.String())
	}
}

func TestServer_APIKeyAuthAllowsUnauthenticatedRead(t *testing.T) {
	store := newFakeTicketStore()
	s := NewServer(store, WithAuth(AuthConfig{Method: "api_key", APIKey: "secret"}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unauthenticated read, got %d", rec.Code)
	}
}
