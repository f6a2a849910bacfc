package textbrain

import (
	"context"
	"sort"
	"time"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// Mode is one of the four strategy modes from §4.3.
type Mode string

const (
	ModeDumbOnly  Mode = "dumb_only"
	ModeDumbFirst Mode = "dumb_first"
	ModeLlmFirst  Mode = "llm_first"
	ModeLlmOnly   Mode = "llm_only"
)

// Config tunes a Coordinator.
type Config struct {
	Mode                 Mode
	ConfidenceThreshold  float64
	MaxQueries           int
	AutoApproveThreshold float64
}

// Coordinator is the TextBrain implementation described in §4.3: it
// holds up to two QueryBuilder/CandidateMatcher plug-ins (heuristic +
// LLM) and dispatches per configured mode.
type Coordinator struct {
	cfg Config

	heuristicBuilder ports.QueryBuilder
	llmBuilder       ports.QueryBuilder
	heuristicMatcher ports.CandidateMatcher
	llmMatcher       ports.CandidateMatcher
}

// New builds a Coordinator. llmBuilder/llmMatcher may be nil when no LLM
// client is configured; DumbOnly/DumbFirst then behave as if the LLM
// step never triggers, LlmFirst falls back to the heuristic plug-ins,
// and LlmOnly returns ErrLLMUnconfigured.
func New(cfg Config, heuristicBuilder ports.QueryBuilder, llmBuilder ports.QueryBuilder, heuristicMatcher ports.CandidateMatcher, llmMatcher ports.CandidateMatcher) *Coordinator {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.8
	}
	return &Coordinator{
		cfg:              cfg,
		heuristicBuilder: heuristicBuilder,
		llmBuilder:       llmBuilder,
		heuristicMatcher: heuristicMatcher,
		llmMatcher:       llmMatcher,
	}
}

func (c *Coordinator) BuildQueries(ctx context.Context, qc domain.QueryContext) (ports.QueryBuildResult, error) {
	var result ports.QueryBuildResult
	var err error

	switch c.cfg.Mode {
	case ModeDumbOnly:
		result, err = c.heuristicBuilder.BuildQueries(ctx, qc)

	case ModeDumbFirst:
		result, err = c.heuristicBuilder.BuildQueries(ctx, qc)
		if err == nil && result.Confidence < c.cfg.ConfidenceThreshold && c.llmBuilder != nil {
			llmResult, llmErr := c.llmBuilder.BuildQueries(ctx, qc)
			if llmErr == nil {
				merged := dedupeCaseInsensitive(append(append([]string{}, llmResult.Queries...), result.Queries...))
				result = ports.QueryBuildResult{
					Queries:    merged,
					Method:     "dumb_then_llm",
					Confidence: llmResult.Confidence,
					LlmUsage:   llmResult.LlmUsage,
				}
			}
		}

	case ModeLlmFirst:
		if c.llmBuilder != nil {
			result, err = c.llmBuilder.BuildQueries(ctx, qc)
		} else {
			err = ports.ErrLLMUnconfigured
		}
		if err != nil {
			result, err = c.heuristicBuilder.BuildQueries(ctx, qc)
		}

	case ModeLlmOnly:
		if c.llmBuilder == nil {
			return ports.QueryBuildResult{}, ports.ErrLLMUnconfigured
		}
		result, err = c.llmBuilder.BuildQueries(ctx, qc)

	default:
		result, err = c.heuristicBuilder.BuildQueries(ctx, qc)
	}

	if err != nil {
		return ports.QueryBuildResult{}, err
	}
	if len(result.Queries) == 0 {
		return ports.QueryBuildResult{}, ports.ErrNoQueriesGenerated
	}
	return result, nil
}

func (c *Coordinator) ScoreCandidates(ctx context.Context, qc domain.QueryContext, candidates []domain.TorrentCandidate) (ports.ScoreResult, error) {
	if len(candidates) == 0 {
		return ports.ScoreResult{Method: "none"}, nil
	}

	var result ports.ScoreResult
	var err error

	switch c.cfg.Mode {
	case ModeDumbOnly:
		result, err = c.heuristicMatcher.ScoreCandidates(ctx, qc, candidates)

	case ModeDumbFirst:
		result, err = c.heuristicMatcher.ScoreCandidates(ctx, qc, candidates)
		best := 0.0
		if err == nil && len(result.Candidates) > 0 {
			best = result.Candidates[0].Score
		}
		if err == nil && best < c.cfg.ConfidenceThreshold && c.llmMatcher != nil {
			if llmResult, llmErr := c.llmMatcher.ScoreCandidates(ctx, qc, candidates); llmErr == nil {
				result = llmResult
			}
		}

	case ModeLlmFirst:
		if c.llmMatcher != nil {
			result, err = c.llmMatcher.ScoreCandidates(ctx, qc, candidates)
		} else {
			err = ports.ErrLLMUnconfigured
		}
		if err != nil {
			result, err = c.heuristicMatcher.ScoreCandidates(ctx, qc, candidates)
		}

	case ModeLlmOnly:
		if c.llmMatcher == nil {
			return ports.ScoreResult{}, ports.ErrLLMUnconfigured
		}
		result, err = c.llmMatcher.ScoreCandidates(ctx, qc, candidates)

	default:
		result, err = c.heuristicMatcher.ScoreCandidates(ctx, qc, candidates)
	}

	if err != nil {
		return ports.ScoreResult{}, err
	}
	sort.Slice(result.Candidates, func(i, j int) bool { return result.Candidates[i].Score > result.Candidates[j].Score })
	return result, nil
}

func (c *Coordinator) Acquire(ctx context.Context, qc domain.QueryContext, searcher ports.Searcher, observer ports.AcquisitionPhaseObserver) (ports.AcquisitionResult, error) {
	started := time.Now()

	if observer != nil {
		observer.OnPhase(ctx, domain.PhaseQueryBuilding{})
	}
	buildResult, err := c.BuildQueries(ctx, qc)
	if err != nil {
		return ports.AcquisitionResult{}, err
	}

	if c.cfg.MaxQueries == 0 {
		return ports.AcquisitionResult{}, ports.ErrNoQueriesGenerated
	}
	maxQueries := c.cfg.MaxQueries
	if maxQueries < 0 {
		maxQueries = len(buildResult.Queries)
	}
	queriesTried := buildResult.Queries
	if len(queriesTried) > maxQueries {
		queriesTried = queriesTried[:maxQueries]
	}

	allByInfoHash := make(map[string]domain.ScoredCandidate)
	var allOrdered []string
	var best *domain.ScoredCandidate
	autoApproved := false
	scoreMethod := "none"

	for _, query := range queriesTried {
		if observer != nil {
			observer.OnPhase(ctx, domain.PhaseSearching{Query: query})
		}
		candidates, searchErr := searcher.Search(ctx, query, 50)
		if searchErr != nil || len(candidates) == 0 {
			continue
		}

		if observer != nil {
			observer.OnPhase(ctx, domain.PhaseScoring{Count: len(candidates)})
		}
		scoreResult, scoreErr := c.ScoreCandidates(ctx, qc, candidates)
		if scoreErr != nil {
			continue
		}
		scoreMethod = scoreResult.Method

		for _, sc := range scoreResult.Candidates {
			if sc.InfoHash == "" {
				continue
			}
			if _, exists := allByInfoHash[sc.InfoHash]; exists {
				continue // first occurrence wins
			}
			allByInfoHash[sc.InfoHash] = sc
			allOrdered = append(allOrdered, sc.InfoHash)
			candidate := sc
			if best == nil || candidate.Score > best.Score {
				best = &candidate
			}
		}

		if best != nil && best.Score >= c.cfg.AutoApproveThreshold {
			autoApproved = true
			break
		}
	}

	all := make([]domain.ScoredCandidate, 0, len(allOrdered))
	for _, hash := range allOrdered {
		all = append(all, allByInfoHash[hash])
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > 0 {
		b := all[0]
		best = &b
		autoApproved = best.Score >= c.cfg.AutoApproveThreshold
	}

	return ports.AcquisitionResult{
		BestCandidate:       best,
		AllCandidates:       all,
		QueriesTried:        queriesTried,
		CandidatesEvaluated: len(all),
		QueryMethod:         buildResult.Method,
		ScoreMethod:         scoreMethod,
		AutoApproved:        autoApproved,
		DurationMs:          time.Since(started).Milliseconds(),
	}, nil
}
