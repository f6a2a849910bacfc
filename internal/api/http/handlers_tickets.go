package apihttp

import (
	"encoding/json"
	"net/http"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// ticketResponse is the wire shape of a domain.Ticket: State is a tagged
// interface and needs domain.MarshalTicketState's envelope rather than
// encoding/json's default (untagged) struct marshaling.
type ticketResponse struct {
	ID                domain.TicketID          `json:"id"`
	CreatedAt         string                   `json:"created_at"`
	UpdatedAt         string                   `json:"updated_at"`
	CreatedBy         string                   `json:"created_by"`
	Priority          uint16                   `json:"priority"`
	QueryContext      domain.QueryContext      `json:"query_context"`
	DestPath          string                   `json:"dest_path"`
	OutputConstraints *domain.OutputConstraints `json:"output_constraints,omitempty"`
	RetryCount        uint32                   `json:"retry_count"`
	State             json.RawMessage          `json:"state"`
}

func toTicketResponse(t domain.Ticket) (ticketResponse, error) {
	stateJSON, err := domain.MarshalTicketState(t.State)
	if err != nil {
		return ticketResponse{}, err
	}
	return ticketResponse{
		ID:                t.ID,
		CreatedAt:         t.CreatedAt.UTC().Format(rfc3339Milli),
		UpdatedAt:         t.UpdatedAt.UTC().Format(rfc3339Milli),
		CreatedBy:         t.CreatedBy,
		Priority:          t.Priority,
		QueryContext:      t.QueryContext,
		DestPath:          t.DestPath,
		OutputConstraints: t.OutputConstraints,
		RetryCount:        t.RetryCount,
		State:             stateJSON,
	}, nil
}

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

func writeTicket(w http.ResponseWriter, status int, t domain.Ticket) {
	resp, err := toTicketResponse(t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "encode ticket")
		return
	}
	writeJSON(w, status, resp)
}

type createTicketRequest struct {
	Priority          uint16                    `json:"priority"`
	QueryContext      domain.QueryContext       `json:"query_context"`
	DestPath          string                    `json:"dest_path"`
	OutputConstraints *domain.OutputConstraints `json:"output_constraints,omitempty"`
}

// handleTickets serves POST /api/v1/tickets and GET /api/v1/tickets.
func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTicket(w, r)
	case http.MethodGet:
		s.listTickets(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (s *Server) createTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	if req.DestPath == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "dest_path is required")
		return
	}

	ticket, err := s.tickets.Create(r.Context(), domain.CreateTicketRequest{
		CreatedBy:         identity(r),
		Priority:          req.Priority,
		QueryContext:      req.QueryContext,
		DestPath:          req.DestPath,
		OutputConstraints: req.OutputConstraints,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.audit != nil {
		userID := ticket.CreatedBy
		s.audit.Emit(r.Context(), &ticket.ID, &userID, domain.EventTicketCreated{
			DestPath: ticket.DestPath,
			Priority: ticket.Priority,
		})
	}
	if s.hub != nil {
		s.hub.Publish(ports.MsgTicketUpdate{TicketID: ticket.ID, State: ticket.State})
	}

	writeTicket(w, http.StatusCreated, ticket)
}

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.TicketFilter{
		StateType: q.Get("state"),
		CreatedBy: q.Get("created_by"),
		Limit:     parsePositiveInt(q.Get("limit"), 50),
		Offset:    parsePositiveInt(q.Get("offset"), 0),
	}

	tickets, err := s.tickets.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	total, err := s.tickets.Count(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		resp, err := toTicketResponse(t)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "encode ticket")
			return
		}
		items = append(items, resp)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
		"tickets": items,
	})
}

// handleTicketByID serves GET and DELETE /api/v1/tickets/:id.
func (s *Server) handleTicketByID(w http.ResponseWriter, r *http.Request) {
	id := domain.TicketID(idFromPath("/api/v1/tickets/", r.URL.Path))
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "ticket not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getTicket(w, r, id)
	case http.MethodDelete:
		s.cancelTicket(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (s *Server) getTicket(w http.ResponseWriter, r *http.Request, id domain.TicketID) {
	ticket, err := s.tickets.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeTicket(w, http.StatusOK, ticket)
}

type cancelTicketRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) cancelTicket(w http.ResponseWriter, r *http.Request, id domain.TicketID) {
	var req cancelTicketRequest
	if r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	who := identity(r)
	ticket, err := s.tickets.UpdateState(r.Context(), id, domain.StateCancelled{
		CancelledBy: who,
		Reason:      req.Reason,
		CancelledAt: nowUTC(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.audit != nil {
		userID := who
		s.audit.Emit(r.Context(), &ticket.ID, &userID, domain.EventTicketCancelled{Reason: req.Reason})
	}
	if s.hub != nil {
		s.hub.Publish(ports.MsgTicketDeleted{TicketID: ticket.ID})
	}

	writeTicket(w, http.StatusOK, ticket)
}
