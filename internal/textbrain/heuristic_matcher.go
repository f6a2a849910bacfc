package textbrain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// HeuristicMatcherWeights are the default scoring weights from §4.3.
type HeuristicMatcherWeights struct {
	Title   float64
	Quality float64
	Health  float64
	Size    float64
}

func defaultWeights() HeuristicMatcherWeights {
	return HeuristicMatcherWeights{Title: 0.50, Quality: 0.20, Health: 0.20, Size: 0.10}
}

// HeuristicMatcher is the deterministic CandidateMatcher, §4.3.
type HeuristicMatcher struct {
	Weights HeuristicMatcherWeights
}

func NewHeuristicMatcher() *HeuristicMatcher {
	return &HeuristicMatcher{Weights: defaultWeights()}
}

func (m *HeuristicMatcher) ScoreCandidates(ctx context.Context, qc domain.QueryContext, candidates []domain.TorrentCandidate) (ports.ScoreResult, error) {
	if len(candidates) == 0 {
		return ports.ScoreResult{Method: "none"}, nil
	}

	keywords := extractKeyTerms(stripRequestPhrases(qc.Description))
	qualityTags := extractQualityTags(qc.Description, qc.Tags)

	minSeeders, idealSeeders := 0, 10
	var minSize, maxSize int64
	if qc.SearchConstraints != nil {
		minSeeders = qc.SearchConstraints.MinSeeders
		idealSeeders = qc.SearchConstraints.IdealSeeders
		minSize = qc.SearchConstraints.MinSizeBytes
		maxSize = qc.SearchConstraints.MaxSizeBytes
	}

	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		titleScore := m.titleScore(keywords, c.Title)
		qualityScore := m.qualityScore(qualityTags, c.Title)
		healthScore := healthScore(c.Seeders, minSeeders, idealSeeders)
		sizeScore := sizeScore(c.SizeBytes, minSize, maxSize)

		total := m.Weights.Title*titleScore +
			m.Weights.Quality*qualityScore +
			m.Weights.Health*healthScore +
			m.Weights.Size*sizeScore

		scored = append(scored, domain.ScoredCandidate{
			TorrentCandidate: c,
			Score:            total,
			Reasoning:        reasoning(titleScore, qualityScore, healthScore, sizeScore),
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	return ports.ScoreResult{Candidates: scored, Method: "heuristic"}, nil
}

func (m *HeuristicMatcher) titleScore(keywords []string, title string) float64 {
	if len(keywords) == 0 {
		return 0.5
	}
	lowerTitle := strings.ToLower(title)
	var hits float64
	for _, kw := range keywords {
		if strings.Contains(lowerTitle, kw) {
			if wordBoundaryMatch(lowerTitle, kw) {
				hits += 1
			} else {
				hits += 0.5
			}
		}
	}
	return clamp01(hits / float64(len(keywords)))
}

func wordBoundaryMatch(haystack, needle string) bool {
	for _, word := range strings.FieldsFunc(haystack, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if word == needle {
			return true
		}
	}
	return false
}

func (m *HeuristicMatcher) qualityScore(required []string, title string) float64 {
	if len(required) == 0 {
		return 0.5
	}
	lowerTitle := strings.ToLower(title)
	var hits int
	for _, q := range required {
		if strings.Contains(lowerTitle, q) {
			hits++
		}
	}
	return clamp01(float64(hits) / float64(len(required)))
}

func healthScore(seeders, minSeeders, idealSeeders int) float64 {
	if idealSeeders <= minSeeders {
		if seeders >= idealSeeders {
			return 1
		}
		return 0
	}
	if seeders <= minSeeders {
		return 0
	}
	if seeders >= idealSeeders {
		return 1
	}
	return float64(seeders-minSeeders) / float64(idealSeeders-minSeeders)
}

func sizeScore(size, minSize, maxSize int64) float64 {
	if minSize == 0 && maxSize == 0 {
		return 1
	}
	if minSize > 0 && size < minSize {
		return 0.2
	}
	if maxSize > 0 && size > maxSize {
		return 0.7
	}
	return 1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func reasoning(title, quality, health, size float64) string {
	return fmt.Sprintf("title=%.2f quality=%.2f health=%.2f size=%.2f", title, quality, health, size)
}
