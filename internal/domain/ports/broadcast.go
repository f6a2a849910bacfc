package ports

import "github.com/lelloman/quentin-torrentino-sub000/internal/domain"

// BroadcastMessage is the tagged union of messages pushed to WebSocket
// subscribers, §4.10.
type BroadcastMessage interface{ isBroadcastMessage() }

type MsgTicketUpdate struct {
	TicketID domain.TicketID
	State    domain.TicketState
}

func (MsgTicketUpdate) isBroadcastMessage() {}

type MsgTicketDeleted struct {
	TicketID domain.TicketID
}

func (MsgTicketDeleted) isBroadcastMessage() {}

type MsgTorrentProgress struct {
	TicketID    domain.TicketID
	InfoHash    string
	ProgressPct float64
	SpeedBps    int64
}

func (MsgTorrentProgress) isBroadcastMessage() {}

type MsgPipelineProgress struct {
	TicketID domain.TicketID
	Phase    string
	Percent  float64
}

func (MsgPipelineProgress) isBroadcastMessage() {}

type MsgOrchestratorStatus struct {
	Running bool
}

func (MsgOrchestratorStatus) isBroadcastMessage() {}

type MsgHeartbeat struct {
	TimestampUnix int64
}

func (MsgHeartbeat) isBroadcastMessage() {}

// Broadcaster is the fan-out hub described in §4.10: a multi-producer,
// multi-consumer channel with a bounded buffer per subscriber and no
// history. Subscribers lag and skip, never block, never disconnect the
// publisher.
type Broadcaster interface {
	Publish(msg BroadcastMessage)
	Subscribe() (ch <-chan BroadcastMessage, unsubscribe func())
}
