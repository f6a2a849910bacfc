package ports

import (
	"context"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// AuditSink is the append-only sink for structured events, §4.9. Emit is
// non-blocking: it never back-pressures the orchestrator loops; a bounded
// drop policy on overflow is acceptable and does not return an error to
// the (fire-and-forget) caller.
type AuditSink interface {
	Emit(ctx context.Context, ticketID *domain.TicketID, userID *string, event domain.AuditEvent)
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error)
}
