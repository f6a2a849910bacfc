package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TicketState is a closed tagged variant describing where a Ticket sits in
// the acquisition pipeline. Every concrete state below implements it; there
// is no open string enumeration anywhere else in the codebase — pattern
// match on concrete type (type switch) rather than comparing strings.
type TicketState interface {
	isTicketState()
	// StateType returns the stable snake_case discriminant used for
	// persistence, filtering and JSON serialization.
	StateType() string
}

// Phase is the tagged sub-state an Acquiring ticket is currently in.
type Phase interface {
	isPhase()
	PhaseType() string
}

type PhaseQueryBuilding struct{}

func (PhaseQueryBuilding) isPhase()          {}
func (PhaseQueryBuilding) PhaseType() string { return "query_building" }

type PhaseSearching struct {
	Query string `json:"query"`
}

func (PhaseSearching) isPhase()          {}
func (PhaseSearching) PhaseType() string { return "searching" }

type PhaseScoring struct {
	Count int `json:"count"`
}

func (PhaseScoring) isPhase()          {}
func (PhaseScoring) PhaseType() string { return "scoring" }

// StatePending carries no context: the ticket is waiting for the
// acquisition loop to pick it up.
type StatePending struct{}

func (StatePending) isTicketState()    {}
func (StatePending) StateType() string { return "pending" }

// StateAcquiring tracks in-progress query building / searching / scoring.
type StateAcquiring struct {
	StartedAt       time.Time `json:"started_at"`
	QueriesTried    []string  `json:"queries_tried"`
	CandidatesFound int       `json:"candidates_found"`
	Phase           Phase     `json:"phase"`
}

func (StateAcquiring) isTicketState()    {}
func (StateAcquiring) StateType() string { return "acquiring" }

// StateAcquisitionFailed records that no usable candidate was found.
// Not terminal: CanRetry is true, a client may resubmit.
type StateAcquisitionFailed struct {
	QueriesTried   []string  `json:"queries_tried"`
	CandidatesSeen int       `json:"candidates_seen"`
	Reason         string    `json:"reason"`
	FailedAt       time.Time `json:"failed_at"`
}

func (StateAcquisitionFailed) isTicketState()    {}
func (StateAcquisitionFailed) StateType() string { return "acquisition_failed" }

// CandidateSummary is the trimmed view of a ScoredCandidate shown to a user
// deciding whether to approve a ticket.
type CandidateSummary struct {
	Title      string  `json:"title"`
	InfoHash   string  `json:"info_hash"`
	SizeBytes  int64   `json:"size_bytes"`
	Score      float64 `json:"score"`
	Reasoning  string  `json:"reasoning"`
}

// StateNeedsApproval holds the top candidates for a human decision.
type StateNeedsApproval struct {
	Candidates     []CandidateSummary `json:"candidates"`
	RecommendedIdx int                `json:"recommended_idx"`
	Confidence     float64            `json:"confidence"`
	WaitingSince   time.Time          `json:"waiting_since"`
}

func (StateNeedsApproval) isTicketState()    {}
func (StateNeedsApproval) StateType() string { return "needs_approval" }

// StateAutoApproved carries the ordered failover candidate list the
// download loop will try in sequence.
type StateAutoApproved struct {
	Selected   SelectedCandidate   `json:"selected"`
	Candidates []SelectedCandidate `json:"candidates"`
	Confidence float64             `json:"confidence"`
	ApprovedAt time.Time           `json:"approved_at"`
}

func (StateAutoApproved) isTicketState()    {}
func (StateAutoApproved) StateType() string { return "auto_approved" }

// StateApproved is the human-approval equivalent of StateAutoApproved.
type StateApproved struct {
	Selected   SelectedCandidate   `json:"selected"`
	Candidates []SelectedCandidate `json:"candidates"`
	ApprovedBy string              `json:"approved_by"`
	ApprovedAt time.Time           `json:"approved_at"`
}

func (StateApproved) isTicketState()    {}
func (StateApproved) StateType() string { return "approved" }

// StateRejected is terminal: a human declined every candidate.
type StateRejected struct {
	RejectedBy string    `json:"rejected_by"`
	Reason     string    `json:"reason,omitempty"`
	RejectedAt time.Time `json:"rejected_at"`
}

func (StateRejected) isTicketState()    {}
func (StateRejected) StateType() string { return "rejected" }

// StateDownloading tracks an in-flight torrent download and the failover
// bookkeeping needed to try the next candidate on stall.
type StateDownloading struct {
	InfoHash        string              `json:"info_hash"`
	ProgressPct     float64             `json:"progress_pct"`
	SpeedBps        int64               `json:"speed_bps"`
	EtaSecs         *int64              `json:"eta_secs,omitempty"`
	StartedAt       time.Time           `json:"started_at"`
	CandidateIdx    int                 `json:"candidate_idx"`
	FailoverRound   int                 `json:"failover_round"`
	LastProgressPct float64             `json:"last_progress_pct"`
	LastProgressAt  time.Time           `json:"last_progress_at"`
	Candidates      []SelectedCandidate `json:"candidates"`
}

func (StateDownloading) isTicketState()    {}
func (StateDownloading) StateType() string { return "downloading" }

// StateConverting tracks the pipeline's conversion phase.
type StateConverting struct {
	CurrentIdx  int       `json:"current_idx"`
	Total       int       `json:"total"`
	CurrentName string    `json:"current_name"`
	StartedAt   time.Time `json:"started_at"`
}

func (StateConverting) isTicketState()    {}
func (StateConverting) StateType() string { return "converting" }

// StatePlacing tracks the pipeline's placement phase.
type StatePlacing struct {
	FilesPlaced int       `json:"files_placed"`
	TotalFiles  int       `json:"total_files"`
	StartedAt   time.Time `json:"started_at"`
}

func (StatePlacing) isTicketState()    {}
func (StatePlacing) StateType() string { return "placing" }

// CompletionStats summarizes a finished ticket for display.
type CompletionStats struct {
	FilesPlaced int   `json:"files_placed"`
	TotalBytes  int64 `json:"total_bytes"`
}

// StateCompleted is terminal: the content landed on disk.
type StateCompleted struct {
	CompletedAt time.Time       `json:"completed_at"`
	Stats       CompletionStats `json:"stats"`
}

func (StateCompleted) isTicketState()    {}
func (StateCompleted) StateType() string { return "completed" }

// StateFailed is terminal. Retryable governs whether the UI offers a
// resubmit action; it does not trigger any automatic retry (see open
// question (a) in SPEC_FULL.md / DESIGN.md).
type StateFailed struct {
	Error      string    `json:"error"`
	Retryable  bool      `json:"retryable"`
	RetryCount int       `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
}

func (StateFailed) isTicketState()    {}
func (StateFailed) StateType() string { return "failed" }

// StateCancelled is terminal.
type StateCancelled struct {
	CancelledBy string    `json:"cancelled_by"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (StateCancelled) isTicketState()    {}
func (StateCancelled) StateType() string { return "cancelled" }

// IsTerminal reports whether s can never transition further.
func IsTerminal(s TicketState) bool {
	switch s.(type) {
	case StateCompleted, StateFailed, StateCancelled, StateRejected:
		return true
	default:
		return false
	}
}

// CanCancel reports whether a ticket in state s may be cancelled.
func CanCancel(s TicketState) bool {
	return !IsTerminal(s)
}

// CanRetry reports whether a ticket in state s is eligible for resubmission.
func CanRetry(s TicketState) bool {
	switch st := s.(type) {
	case StateAcquisitionFailed:
		return true
	case StateFailed:
		return st.Retryable
	default:
		return false
	}
}

// IsActive reports whether the orchestrator is actively doing work on a
// ticket in state s (as opposed to waiting, terminal, or idle).
func IsActive(s TicketState) bool {
	switch s.(type) {
	case StateAcquiring, StateDownloading, StateConverting, StatePlacing:
		return true
	default:
		return false
	}
}

// NeedsAttention reports whether a human should look at a ticket in state s.
func NeedsAttention(s TicketState) bool {
	switch s.(type) {
	case StateNeedsApproval, StateAcquisitionFailed:
		return true
	default:
		return false
	}
}

// validTransitions is the adjacency list of permitted StateType transitions,
// generalizing the teacher's SessionMode transition table to this system's
// richer, payload-carrying state machine.
var validTransitions = map[string][]string{
	"pending":             {"acquiring", "cancelled"},
	"acquiring":           {"auto_approved", "needs_approval", "acquisition_failed", "cancelled"},
	"acquisition_failed":  {"acquiring", "cancelled"},
	"needs_approval":      {"approved", "rejected", "cancelled"},
	"auto_approved":       {"downloading", "cancelled"},
	"approved":            {"downloading", "cancelled"},
	"downloading":         {"downloading", "converting", "failed", "cancelled"},
	"converting":          {"placing", "failed", "cancelled"},
	"placing":             {"completed", "failed", "cancelled"},
	"completed":           {},
	"failed":              {},
	"cancelled":           {},
	"rejected":            {},
}

// CanTransition reports whether moving from StateType `from` to StateType
// `to` is permitted. Only the Cancelled-from-terminal guard in §4.1 is
// enforced at the store boundary today, but the full graph is retained so
// other callers (or future validation) can consult it without re-deriving
// it from the narrative spec.
func CanTransition(from, to string) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ticketStateEnvelope is the {"type": "...", ...payload} wire shape every
// TicketState marshals to and unmarshals from.
type ticketStateEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"-"`
}

// MarshalTicketState encodes any TicketState into its tagged JSON envelope.
func MarshalTicketState(s TicketState) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket state payload: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("marshal ticket state: %w", err)
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", s.StateType()))
	return json.Marshal(fields)
}

// UnmarshalTicketState decodes a tagged JSON envelope back into the
// concrete TicketState variant named by its "type" field.
func UnmarshalTicketState(raw []byte) (TicketState, error) {
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("unmarshal ticket state envelope: %w", err)
	}
	switch tagged.Type {
	case "pending":
		return StatePending{}, nil
	case "acquiring":
		var aux struct {
			StartedAt       time.Time       `json:"started_at"`
			QueriesTried    []string        `json:"queries_tried"`
			CandidatesFound int             `json:"candidates_found"`
			Phase           json.RawMessage `json:"phase"`
		}
		if err := json.Unmarshal(raw, &aux); err != nil {
			return nil, err
		}
		phase, err := unmarshalPhase(aux.Phase)
		if err != nil {
			return nil, err
		}
		return StateAcquiring{
			StartedAt:       aux.StartedAt,
			QueriesTried:    aux.QueriesTried,
			CandidatesFound: aux.CandidatesFound,
			Phase:           phase,
		}, nil
	case "acquisition_failed":
		var s StateAcquisitionFailed
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "needs_approval":
		var s StateNeedsApproval
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "auto_approved":
		var s StateAutoApproved
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "approved":
		var s StateApproved
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "rejected":
		var s StateRejected
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "downloading":
		var s StateDownloading
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "converting":
		var s StateConverting
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "placing":
		var s StatePlacing
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "completed":
		var s StateCompleted
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "failed":
		var s StateFailed
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "cancelled":
		var s StateCancelled
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown ticket state type %q", tagged.Type)
	}
}

func unmarshalPhase(raw json.RawMessage) (Phase, error) {
	if len(raw) == 0 {
		return PhaseQueryBuilding{}, nil
	}
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("unmarshal phase: %w", err)
	}
	switch tagged.Type {
	case "", "query_building":
		return PhaseQueryBuilding{}, nil
	case "searching":
		var p PhaseSearching
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "scoring":
		var p PhaseScoring
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown phase type %q", tagged.Type)
	}
}

// MarshalJSON implements json.Marshaler for Phase's concrete variants so
// they always carry their own "type" tag when embedded inside a state.
func (p PhaseQueryBuilding) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"query_building"}`), nil
}

func (p PhaseSearching) MarshalJSON() ([]byte, error) {
	type alias PhaseSearching
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "searching", alias: alias(p)})
}

func (p PhaseScoring) MarshalJSON() ([]byte, error) {
	type alias PhaseScoring
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "scoring", alias: alias(p)})
}
