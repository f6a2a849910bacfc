package textbrain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// LLMMatcher is the LLM-backed CandidateMatcher plug-in, §4.3.
type LLMMatcher struct {
	Client        ports.LLMClient
	MaxCandidates int
}

func NewLLMMatcher(client ports.LLMClient, maxCandidates int) *LLMMatcher {
	if maxCandidates <= 0 {
		maxCandidates = 20
	}
	return &LLMMatcher{Client: client, MaxCandidates: maxCandidates}
}

func (m *LLMMatcher) ScoreCandidates(ctx context.Context, qc domain.QueryContext, candidates []domain.TorrentCandidate) (ports.ScoreResult, error) {
	if len(candidates) == 0 {
		return ports.ScoreResult{Method: "none"}, nil
	}
	if m.Client == nil {
		return ports.ScoreResult{}, ports.ErrLLMUnconfigured
	}

	considered := candidates
	overflow := candidates[:0]
	if len(considered) > m.MaxCandidates {
		overflow = candidates[m.MaxCandidates:]
		considered = candidates[:m.MaxCandidates]
	}

	system := "You score torrent candidates against a target description from 0 to 1. " +
		"Respond with a single JSON object: {\"scores\": {\"<index>\": <0..1>, ...}, \"reasoning\": {\"<index>\": \"...\"}}. No prose."
	var sb strings.Builder
	fmt.Fprintf(&sb, "Target: %s\n", qc.Description)
	for i, c := range considered {
		fmt.Fprintf(&sb, "%d. %s (seeders=%d, size=%d)\n", i, c.Title, c.Seeders, c.SizeBytes)
	}

	text, usage, err := m.Client.Complete(ctx, system, sb.String())
	if err != nil {
		return ports.ScoreResult{}, fmt.Errorf("llm matcher: %w", err)
	}

	var parsed struct {
		Scores    map[string]float64 `json:"scores"`
		Reasoning map[string]string  `json:"reasoning"`
	}
	if err := json.Unmarshal(extractJSONObject(text), &parsed); err != nil {
		return ports.ScoreResult{}, fmt.Errorf("llm matcher: parse response: %w", err)
	}

	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for i, c := range considered {
		key := fmt.Sprintf("%d", i)
		score, ok := parsed.Scores[key]
		if !ok {
			score = 0.3 // missing from the JSON response
		}
		scored = append(scored, domain.ScoredCandidate{
			TorrentCandidate: c,
			Score:            clamp01(score),
			Reasoning:        parsed.Reasoning[key],
		})
	}
	for _, c := range overflow {
		scored = append(scored, domain.ScoredCandidate{
			TorrentCandidate: c,
			Score:            0.2, // overflow past max_candidates
			Reasoning:        "not evaluated: exceeded max_candidates",
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	return ports.ScoreResult{Candidates: scored, Method: "llm", LlmUsage: &usage}, nil
}
