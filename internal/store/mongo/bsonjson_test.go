package mongo

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// TestTicketStateRoundTripsThroughBSON guards against handing raw JSON
// bytes to the driver as bson.Raw (which expects BSON-encoded document
// bytes, not JSON text) — every ticket state write must go through
// bsonMarshalJSON/bsonUnmarshalJSON the way toTicketDoc/fromTicketDoc do.
func TestTicketStateRoundTripsThroughBSON(t *testing.T) {
	started := time.Now().UTC().Truncate(time.Second)
	state := domain.StateDownloading{
		InfoHash:      "abc123",
		ProgressPct:   42.5,
		SpeedBps:      1024,
		StartedAt:     started,
		CandidateIdx:  1,
		FailoverRound: 2,
		Candidates: []domain.SelectedCandidate{
			{Title: "Some Release", InfoHash: "abc123", SizeBytes: 500, Score: 0.9},
		},
	}

	stateJSON, err := domain.MarshalTicketState(state)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	stateBSON, err := bsonMarshalJSON(json.RawMessage(stateJSON))
	if err != nil {
		t.Fatalf("bsonMarshalJSON: %v", err)
	}

	var roundTripped json.RawMessage
	if err := bsonUnmarshalJSON(stateBSON, &roundTripped); err != nil {
		t.Fatalf("bsonUnmarshalJSON: %v", err)
	}

	got, err := domain.UnmarshalTicketState(roundTripped)
	if err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	downloading, ok := got.(domain.StateDownloading)
	if !ok {
		t.Fatalf("expected StateDownloading, got %T", got)
	}
	if downloading.InfoHash != state.InfoHash || downloading.CandidateIdx != state.CandidateIdx ||
		downloading.FailoverRound != state.FailoverRound || len(downloading.Candidates) != 1 {
		t.Fatalf("round-tripped state mismatch: %#v", downloading)
	}
	if !downloading.StartedAt.Equal(state.StartedAt) {
		t.Fatalf("expected StartedAt %v, got %v", state.StartedAt, downloading.StartedAt)
	}
}

// TestAuditEventRoundTripsThroughBSON is the audit.go analogue of
// TestTicketStateRoundTripsThroughBSON.
func TestAuditEventRoundTripsThroughBSON(t *testing.T) {
	event := domain.EventTicketApproved{CandidateIdx: 3}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	eventBSON, err := bsonMarshalJSON(json.RawMessage(eventJSON))
	if err != nil {
		t.Fatalf("bsonMarshalJSON: %v", err)
	}

	var roundTripped json.RawMessage
	if err := bsonUnmarshalJSON(eventBSON, &roundTripped); err != nil {
		t.Fatalf("bsonUnmarshalJSON: %v", err)
	}

	got, err := domain.UnmarshalAuditEvent(event.EventType(), roundTripped)
	if err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	approved, ok := got.(*domain.EventTicketApproved)
	if !ok {
		t.Fatalf("expected *EventTicketApproved, got %T", got)
	}
	if approved.CandidateIdx != 3 {
		t.Fatalf("expected CandidateIdx 3, got %d", approved.CandidateIdx)
	}
}
