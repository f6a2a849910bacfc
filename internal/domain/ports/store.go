// Package ports declares the interfaces the orchestrator and HTTP/WS
// surface depend on. Concrete adapters live under internal/store (which
// also holds the audit sink), internal/searcher, internal/torrentclient,
// internal/pipeline and internal/textbrain; each package's tests define
// their own in-memory fakes of these interfaces.
package ports

import (
	"context"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// TicketStore is the durable key-value-with-index interface over ticket
// rows, §4.1. The store exclusively owns ticket rows; callers never
// mutate a Ticket they read and expect the write to be visible elsewhere.
type TicketStore interface {
	Create(ctx context.Context, req domain.CreateTicketRequest) (domain.Ticket, error)
	Get(ctx context.Context, id domain.TicketID) (domain.Ticket, error)
	List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter domain.TicketFilter) (int64, error)
	UpdateState(ctx context.Context, id domain.TicketID, newState domain.TicketState) (domain.Ticket, error)
	IncrementRetryCount(ctx context.Context, id domain.TicketID) (domain.Ticket, error)
	Delete(ctx context.Context, id domain.TicketID) (domain.Ticket, error)
}
