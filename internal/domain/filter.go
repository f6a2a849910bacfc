package domain

import "time"

// TicketFilter narrows TicketStore.List/Count. A zero value matches every
// ticket, ordered by priority DESC, created_at ASC.
type TicketFilter struct {
	StateType string
	CreatedBy string
	Limit     int
	Offset    int
}

// AuditFilter narrows AuditSink.List.
type AuditFilter struct {
	EventType string
	TicketID  TicketID
	UserID    string
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}
