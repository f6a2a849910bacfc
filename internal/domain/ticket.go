package domain

import "time"

// TicketID is an opaque, UUID-shaped identifier.
type TicketID string

// Ticket is the durable record of one acquisition job.
type Ticket struct {
	ID                TicketID
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CreatedBy         string
	Priority          uint16
	QueryContext      QueryContext
	DestPath          string
	OutputConstraints *OutputConstraints
	RetryCount        uint32
	State             TicketState
}

// OutputConstraints describes the audio/video re-encoding target for a
// ticket's output files, if any. Interpretation of the fields is left to
// the Converter collaborator (§4.6); the orchestrator only threads this
// value through unchanged.
type OutputConstraints struct {
	AudioFormat  string `json:"audio_format,omitempty"`
	AudioBitrate string `json:"audio_bitrate,omitempty"`
	VideoFormat  string `json:"video_format,omitempty"`
	VideoCRF     int    `json:"video_crf,omitempty"`
}

// CreateTicketRequest is the input to TicketStore.Create.
type CreateTicketRequest struct {
	CreatedBy         string
	Priority          uint16
	QueryContext      QueryContext
	DestPath          string
	OutputConstraints *OutputConstraints
}
