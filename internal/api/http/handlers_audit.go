package apihttp

import (
	"net/http"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// handleAudit serves GET /api/v1/audit, filtering by event_type, ticket_id,
// user_id and an optional inclusive [since,until] time range, per SPEC_FULL.md §6.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if s.audit == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"events": []domain.AuditRecord{}})
		return
	}

	q := r.URL.Query()
	filter := domain.AuditFilter{
		EventType: q.Get("event_type"),
		TicketID:  domain.TicketID(q.Get("ticket_id")),
		UserID:    q.Get("user_id"),
		Limit:     parsePositiveInt(q.Get("limit"), 100),
		Offset:    parsePositiveInt(q.Get("offset"), 0),
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		}
	}
	if until := q.Get("until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			filter.Until = &t
		}
	}

	events, err := s.audit.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
