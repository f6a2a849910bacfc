package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuditEvent is a tagged variant: the full payload of one audit record.
// Over thirty kinds are defined below, covering ticket lifecycle, search,
// torrent actions, acquisition phases, LLM calls, conversion, placement
// and training-data capture (SPEC_FULL.md §3, §4.9).
type AuditEvent interface {
	isAuditEvent()
	EventType() string
}

// AuditRecord is one durable, append-only audit log entry.
type AuditRecord struct {
	ID        int64      `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	EventType string     `json:"event_type"`
	TicketID  *TicketID  `json:"ticket_id,omitempty"`
	UserID    *string    `json:"user_id,omitempty"`
	Event     AuditEvent `json:"event"`
}

// --- Ticket lifecycle -------------------------------------------------

type EventTicketCreated struct {
	DestPath string `json:"dest_path"`
	Priority uint16 `json:"priority"`
}

func (EventTicketCreated) isAuditEvent()        {}
func (EventTicketCreated) EventType() string    { return "ticket_created" }

type EventTicketCancelled struct {
	Reason string `json:"reason,omitempty"`
}

func (EventTicketCancelled) isAuditEvent()     {}
func (EventTicketCancelled) EventType() string { return "ticket_cancelled" }

type EventTicketApproved struct {
	CandidateIdx int `json:"candidate_idx"`
}

func (EventTicketApproved) isAuditEvent()     {}
func (EventTicketApproved) EventType() string { return "ticket_approved" }

type EventTicketRejected struct {
	Reason string `json:"reason,omitempty"`
}

func (EventTicketRejected) isAuditEvent()     {}
func (EventTicketRejected) EventType() string { return "ticket_rejected" }

// --- Acquisition phase ---------------------------------------------------

type EventAcquisitionStarted struct{}

func (EventAcquisitionStarted) isAuditEvent()     {}
func (EventAcquisitionStarted) EventType() string { return "acquisition_started" }

type EventQueryBuildingStarted struct{}

func (EventQueryBuildingStarted) isAuditEvent()     {}
func (EventQueryBuildingStarted) EventType() string { return "query_building_started" }

type EventQueryBuildingCompleted struct {
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
	NumQueries int     `json:"num_queries"`
}

func (EventQueryBuildingCompleted) isAuditEvent()     {}
func (EventQueryBuildingCompleted) EventType() string { return "query_building_completed" }

type EventSearchStarted struct {
	Query string `json:"query"`
}

func (EventSearchStarted) isAuditEvent()     {}
func (EventSearchStarted) EventType() string { return "search_started" }

type EventSearchCompleted struct {
	Query          string `json:"query"`
	CandidateCount int    `json:"candidate_count"`
}

func (EventSearchCompleted) isAuditEvent()     {}
func (EventSearchCompleted) EventType() string { return "search_completed" }

type EventScoringStarted struct {
	CandidateCount int `json:"candidate_count"`
}

func (EventScoringStarted) isAuditEvent()     {}
func (EventScoringStarted) EventType() string { return "scoring_started" }

type EventScoringCompleted struct {
	Method    string  `json:"method"`
	BestScore float64 `json:"best_score"`
}

func (EventScoringCompleted) isAuditEvent()     {}
func (EventScoringCompleted) EventType() string { return "scoring_completed" }

type EventAcquisitionCompleted struct {
	AutoApproved bool    `json:"auto_approved"`
	BestScore    float64 `json:"best_score"`
	DurationMs   int64   `json:"duration_ms"`
}

func (EventAcquisitionCompleted) isAuditEvent()     {}
func (EventAcquisitionCompleted) EventType() string { return "acquisition_completed" }

type EventQueriesGenerated struct {
	Queries []string `json:"queries"`
	Method  string   `json:"method"`
}

func (EventQueriesGenerated) isAuditEvent()     {}
func (EventQueriesGenerated) EventType() string { return "queries_generated" }

type EventCandidatesScored struct {
	Count  int    `json:"count"`
	Method string `json:"method"`
}

func (EventCandidatesScored) isAuditEvent()     {}
func (EventCandidatesScored) EventType() string { return "candidates_scored" }

type EventAcquisitionFailed struct {
	Reason string `json:"reason"`
}

func (EventAcquisitionFailed) isAuditEvent()     {}
func (EventAcquisitionFailed) EventType() string { return "acquisition_failed" }

// --- LLM calls ------------------------------------------------------------

type EventLlmCallStarted struct {
	Provider string `json:"provider"`
	Purpose  string `json:"purpose"` // "query_building" | "scoring"
}

func (EventLlmCallStarted) isAuditEvent()     {}
func (EventLlmCallStarted) EventType() string { return "llm_call_started" }

type EventLlmCallCompleted struct {
	Provider     string `json:"provider"`
	Purpose      string `json:"purpose"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

func (EventLlmCallCompleted) isAuditEvent()     {}
func (EventLlmCallCompleted) EventType() string { return "llm_call_completed" }

type EventLlmCallFailed struct {
	Provider string `json:"provider"`
	Purpose  string `json:"purpose"`
	Error    string `json:"error"`
}

func (EventLlmCallFailed) isAuditEvent()     {}
func (EventLlmCallFailed) EventType() string { return "llm_call_failed" }

// --- Torrent / download -----------------------------------------------

type EventTorrentAdded struct {
	InfoHash     string `json:"info_hash"`
	CandidateIdx int    `json:"candidate_idx"`
}

func (EventTorrentAdded) isAuditEvent()     {}
func (EventTorrentAdded) EventType() string { return "torrent_added" }

type EventTorrentAddFailed struct {
	CandidateIdx int    `json:"candidate_idx"`
	Error        string `json:"error"`
}

func (EventTorrentAddFailed) isAuditEvent()     {}
func (EventTorrentAddFailed) EventType() string { return "torrent_add_failed" }

type EventTorrentProgressEvent struct {
	InfoHash    string  `json:"info_hash"`
	ProgressPct float64 `json:"progress_pct"`
	SpeedBps    int64   `json:"speed_bps"`
}

func (EventTorrentProgressEvent) isAuditEvent()     {}
func (EventTorrentProgressEvent) EventType() string { return "torrent_progress" }

type EventTorrentStalled struct {
	InfoHash      string `json:"info_hash"`
	FailoverRound int    `json:"failover_round"`
}

func (EventTorrentStalled) isAuditEvent()     {}
func (EventTorrentStalled) EventType() string { return "torrent_stalled" }

type EventFailoverTriggered struct {
	FromIdx   int `json:"from_idx"`
	ToIdx     int `json:"to_idx"`
	NextRound int `json:"next_round"`
}

func (EventFailoverTriggered) isAuditEvent()     {}
func (EventFailoverTriggered) EventType() string { return "failover_triggered" }

type EventCandidatesExhausted struct {
	CandidateCount int `json:"candidate_count"`
	Rounds         int `json:"rounds"`
}

func (EventCandidatesExhausted) isAuditEvent()     {}
func (EventCandidatesExhausted) EventType() string { return "candidates_exhausted" }

type EventDownloadCompleted struct {
	InfoHash string `json:"info_hash"`
}

func (EventDownloadCompleted) isAuditEvent()     {}
func (EventDownloadCompleted) EventType() string { return "download_completed" }

// --- Pipeline: conversion / placement -----------------------------------

type EventConversionStarted struct {
	Total int `json:"total"`
}

func (EventConversionStarted) isAuditEvent()     {}
func (EventConversionStarted) EventType() string { return "conversion_started" }

type EventConversionProgress struct {
	CurrentIdx int     `json:"current_idx"`
	Total      int     `json:"total"`
	Percent    float64 `json:"percent"`
}

func (EventConversionProgress) isAuditEvent()     {}
func (EventConversionProgress) EventType() string { return "conversion_progress" }

type EventConversionCompleted struct {
	FilesConverted int `json:"files_converted"`
}

func (EventConversionCompleted) isAuditEvent()     {}
func (EventConversionCompleted) EventType() string { return "conversion_completed" }

type EventConversionFailed struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (EventConversionFailed) isAuditEvent()     {}
func (EventConversionFailed) EventType() string { return "conversion_failed" }

type EventPlacementStarted struct {
	TotalFiles int `json:"total_files"`
}

func (EventPlacementStarted) isAuditEvent()     {}
func (EventPlacementStarted) EventType() string { return "placement_started" }

type EventPlacementCompleted struct {
	FilesPlaced int   `json:"files_placed"`
	TotalBytes  int64 `json:"total_bytes"`
}

func (EventPlacementCompleted) isAuditEvent()     {}
func (EventPlacementCompleted) EventType() string { return "placement_completed" }

type EventPlacementFailed struct {
	Error          string `json:"error"`
	FilesRolledBack int   `json:"files_rolled_back"`
	DirsRolledBack  int   `json:"dirs_rolled_back"`
}

func (EventPlacementFailed) isAuditEvent()     {}
func (EventPlacementFailed) EventType() string { return "placement_failed" }

type EventTicketCompleted struct {
	Stats CompletionStats `json:"stats"`
}

func (EventTicketCompleted) isAuditEvent()     {}
func (EventTicketCompleted) EventType() string { return "ticket_completed" }

type EventTicketFailed struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (EventTicketFailed) isAuditEvent()     {}
func (EventTicketFailed) EventType() string { return "ticket_failed" }

// --- Training data capture -----------------------------------------------

// EventTrainingDataCaptured records a (query context, candidates, outcome)
// tuple for later model fine-tuning, per SPEC_FULL.md §4.4's "training
// events" requirement.
type EventTrainingDataCaptured struct {
	QueryMethod     string  `json:"query_method"`
	ScoreMethod     string  `json:"score_method"`
	BestScore       float64 `json:"best_score"`
	CandidateCount  int     `json:"candidate_count"`
	AutoApproved    bool    `json:"auto_approved"`
}

func (EventTrainingDataCaptured) isAuditEvent()     {}
func (EventTrainingDataCaptured) EventType() string { return "training_data_captured" }

// auditEventConstructors maps an event_type discriminant to a zero-value
// pointer of the concrete type, used by UnmarshalAuditEvent.
var auditEventConstructors = map[string]func() AuditEvent{
	"ticket_created":            func() AuditEvent { return &EventTicketCreated{} },
	"ticket_cancelled":          func() AuditEvent { return &EventTicketCancelled{} },
	"ticket_approved":           func() AuditEvent { return &EventTicketApproved{} },
	"ticket_rejected":           func() AuditEvent { return &EventTicketRejected{} },
	"acquisition_started":       func() AuditEvent { return &EventAcquisitionStarted{} },
	"query_building_started":    func() AuditEvent { return &EventQueryBuildingStarted{} },
	"query_building_completed":  func() AuditEvent { return &EventQueryBuildingCompleted{} },
	"search_started":            func() AuditEvent { return &EventSearchStarted{} },
	"search_completed":          func() AuditEvent { return &EventSearchCompleted{} },
	"scoring_started":           func() AuditEvent { return &EventScoringStarted{} },
	"scoring_completed":         func() AuditEvent { return &EventScoringCompleted{} },
	"acquisition_completed":     func() AuditEvent { return &EventAcquisitionCompleted{} },
	"queries_generated":         func() AuditEvent { return &EventQueriesGenerated{} },
	"candidates_scored":         func() AuditEvent { return &EventCandidatesScored{} },
	"acquisition_failed":        func() AuditEvent { return &EventAcquisitionFailed{} },
	"llm_call_started":          func() AuditEvent { return &EventLlmCallStarted{} },
	"llm_call_completed":        func() AuditEvent { return &EventLlmCallCompleted{} },
	"llm_call_failed":           func() AuditEvent { return &EventLlmCallFailed{} },
	"torrent_added":             func() AuditEvent { return &EventTorrentAdded{} },
	"torrent_add_failed":        func() AuditEvent { return &EventTorrentAddFailed{} },
	"torrent_progress":          func() AuditEvent { return &EventTorrentProgressEvent{} },
	"torrent_stalled":           func() AuditEvent { return &EventTorrentStalled{} },
	"failover_triggered":        func() AuditEvent { return &EventFailoverTriggered{} },
	"candidates_exhausted":      func() AuditEvent { return &EventCandidatesExhausted{} },
	"download_completed":        func() AuditEvent { return &EventDownloadCompleted{} },
	"conversion_started":        func() AuditEvent { return &EventConversionStarted{} },
	"conversion_progress":       func() AuditEvent { return &EventConversionProgress{} },
	"conversion_completed":      func() AuditEvent { return &EventConversionCompleted{} },
	"conversion_failed":         func() AuditEvent { return &EventConversionFailed{} },
	"placement_started":         func() AuditEvent { return &EventPlacementStarted{} },
	"placement_completed":       func() AuditEvent { return &EventPlacementCompleted{} },
	"placement_failed":          func() AuditEvent { return &EventPlacementFailed{} },
	"ticket_completed":          func() AuditEvent { return &EventTicketCompleted{} },
	"ticket_failed":             func() AuditEvent { return &EventTicketFailed{} },
	"training_data_captured":    func() AuditEvent { return &EventTrainingDataCaptured{} },
}

// UnmarshalAuditEvent decodes a raw JSON payload into the concrete
// AuditEvent named by eventType.
func UnmarshalAuditEvent(eventType string, raw []byte) (AuditEvent, error) {
	ctor, ok := auditEventConstructors[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown audit event type %q", eventType)
	}
	ev := ctor()
	if len(raw) == 0 {
		return ev, nil
	}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("unmarshal audit event %q: %w", eventType, err)
	}
	return ev, nil
}
