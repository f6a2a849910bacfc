package ports

import (
	"context"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// LlmUsage summarizes token spend on one LLM call, surfaced in
// AcquisitionResult for audit/training purposes.
type LlmUsage struct {
	Provider     string
	InputTokens  int
	OutputTokens int
}

// QueryBuildResult is the output of TextBrain.BuildQueries / a
// QueryBuilder plug-in.
type QueryBuildResult struct {
	Queries    []string
	Method     string
	Confidence float64
	LlmUsage   *LlmUsage
}

// ScoreResult is the output of TextBrain.ScoreCandidates / a
// CandidateMatcher plug-in.
type ScoreResult struct {
	Candidates []domain.ScoredCandidate
	Method     string
	LlmUsage   *LlmUsage
}

// QueryBuilder turns a QueryContext into one or more search queries.
// There are two implementations: heuristic (dumb) and LLM-backed.
type QueryBuilder interface {
	BuildQueries(ctx context.Context, qc domain.QueryContext) (QueryBuildResult, error)
}

// CandidateMatcher scores TorrentCandidates against a QueryContext.
// There are two implementations: heuristic (dumb) and LLM-backed.
type CandidateMatcher interface {
	ScoreCandidates(ctx context.Context, qc domain.QueryContext, candidates []domain.TorrentCandidate) (ScoreResult, error)
}

// AcquisitionResult is TextBrain.Acquire's output, §4.3.
type AcquisitionResult struct {
	BestCandidate       *domain.ScoredCandidate
	AllCandidates        []domain.ScoredCandidate
	QueriesTried         []string
	CandidatesEvaluated  int
	QueryMethod          string
	ScoreMethod          string
	AutoApproved         bool
	LlmUsage             *LlmUsage
	DurationMs           int64
}

// AcquisitionPhaseObserver receives live phase updates during Acquire so
// the orchestrator can persist StateAcquiring.Phase as it changes
// (§4.4's "AcquisitionStateUpdater hook").
type AcquisitionPhaseObserver interface {
	OnPhase(ctx context.Context, phase domain.Phase)
}

// TextBrain is the coordinator described in §4.3: it dispatches query
// building and candidate scoring across the configured strategy mode and
// drives the full acquire loop.
type TextBrain interface {
	BuildQueries(ctx context.Context, qc domain.QueryContext) (QueryBuildResult, error)
	ScoreCandidates(ctx context.Context, qc domain.QueryContext, candidates []domain.TorrentCandidate) (ScoreResult, error)
	Acquire(ctx context.Context, qc domain.QueryContext, searcher Searcher, observer AcquisitionPhaseObserver) (AcquisitionResult, error)
}

// ErrNoQueriesGenerated is returned by BuildQueries/Acquire when no query
// builder produced any queries (e.g. max_queries = 0).
var ErrNoQueriesGenerated = noQueriesGeneratedError{}

type noQueriesGeneratedError struct{}

func (noQueriesGeneratedError) Error() string { return "no queries generated" }

// ErrLLMUnconfigured is returned by an LLM-backed plug-in invoked in
// LlmOnly mode without a configured LLM client.
var ErrLLMUnconfigured = llmUnconfiguredError{}

type llmUnconfiguredError struct{}

func (llmUnconfiguredError) Error() string { return "llm client not configured" }

// LLMClient is the out-of-scope collaborator (§1: "LLM provider
// integrations" are out of scope) that the LLM-backed plug-ins call.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (text string, usage LlmUsage, err error)
}
