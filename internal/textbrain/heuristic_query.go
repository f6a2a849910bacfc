package textbrain

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {}, "in": {},
	"on": {}, "for": {}, "to": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"prefer": {}, "preferably": {}, "looking": {}, "want": {}, "need": {},
	"please": {}, "some": {}, "any": {}, "get": {}, "find": {},
}

var requestPhrases = []string{
	"prefer", "preferably", "looking for", "i want", "i need", "please get",
	"please find", "would like",
}

var qualityPattern = regexp.MustCompile(`(?i)\b(1080p|720p|2160p|4k|flac|mp3|aac|x264|x265|h\.?264|h\.?265|hevc|web-?dl|bluray|remux|dts|truehd|atmos)\b`)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// HeuristicQueryBuilder is the deterministic QueryBuilder described in
// SPEC_FULL.md §4.3, grounded on the shape of the teacher's
// query_expand.go/normalize.go tokenization helpers, generalized from
// search-query refinement to acquisition-query generation.
type HeuristicQueryBuilder struct {
	MaxQueries int
}

func NewHeuristicQueryBuilder(maxQueries int) *HeuristicQueryBuilder {
	if maxQueries <= 0 {
		maxQueries = 5
	}
	return &HeuristicQueryBuilder{MaxQueries: maxQueries}
}

func (b *HeuristicQueryBuilder) BuildQueries(ctx context.Context, qc domain.QueryContext) (ports.QueryBuildResult, error) {
	cleaned := stripRequestPhrases(qc.Description)
	keyTerms := extractKeyTerms(cleaned)
	qualityTags := extractQualityTags(qc.Description, qc.Tags)
	languages := extractRequiredLanguages(qc)

	var candidates []string
	// Full cleaned description + quality + languages.
	candidates = append(candidates, joinNonEmpty(cleaned, qualityTags, languages))
	// Key-terms + quality + languages.
	candidates = append(candidates, joinNonEmpty(strings.Join(keyTerms, " "), qualityTags, languages))
	// Top-4 key terms + languages.
	top4 := keyTerms
	if len(top4) > 4 {
		top4 = top4[:4]
	}
	candidates = append(candidates, joinNonEmpty(strings.Join(top4, " "), nil, languages))
	// First 2 key terms.
	first2 := keyTerms
	if len(first2) > 2 {
		first2 = first2[:2]
	}
	candidates = append(candidates, strings.Join(first2, " "))
	// Key terms without year-like tokens.
	withoutYear := make([]string, 0, len(keyTerms))
	for _, term := range keyTerms {
		if yearPattern.MatchString(term) {
			continue
		}
		withoutYear = append(withoutYear, term)
	}
	candidates = append(candidates, strings.Join(withoutYear, " "))

	queries := dedupeCaseInsensitive(candidates)
	if len(queries) > b.MaxQueries {
		queries = queries[:b.MaxQueries]
	}

	confidence := 0.5
	if len(keyTerms) >= 3 {
		confidence += 0.1
	}
	if len(qualityTags) > 0 {
		confidence += 0.1
	}
	if len(queries) > 1 {
		confidence += 0.1
	}
	if len(qc.Tags) > 0 {
		confidence += 0.1
	}
	if confidence > 0.9 {
		confidence = 0.9
	}

	return ports.QueryBuildResult{
		Queries:    queries,
		Method:     "heuristic",
		Confidence: confidence,
	}, nil
}

func stripRequestPhrases(description string) string {
	lower := strings.ToLower(description)
	for _, phrase := range requestPhrases {
		lower = strings.ReplaceAll(lower, phrase, " ")
	}
	return strings.Join(strings.Fields(lower), " ")
}

func extractKeyTerms(cleaned string) []string {
	tokens := regexp.MustCompile(`[a-z0-9]+`).FindAllString(strings.ToLower(cleaned), -1)
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if len(tok) < 2 {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

func extractQualityTags(description string, tags []string) []string {
	found := map[string]struct{}{}
	for _, m := range qualityPattern.FindAllString(description, -1) {
		found[strings.ToLower(m)] = struct{}{}
	}
	for _, tag := range tags {
		if qualityPattern.MatchString(tag) {
			found[strings.ToLower(tag)] = struct{}{}
		}
	}
	out := make([]string, 0, len(found))
	for tag := range found {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// iso639ToThreeLetter maps a handful of common ISO 639-1 tags to the
// three-letter codes indexers commonly tag audio tracks with.
var iso639ToThreeLetter = map[string]string{
	"en": "eng", "it": "ita", "fr": "fre", "de": "ger", "es": "spa",
	"ja": "jpn", "ko": "kor", "zh": "chi", "ru": "rus", "pt": "por",
}

func extractRequiredLanguages(qc domain.QueryContext) []string {
	if qc.SearchConstraints == nil {
		return nil
	}
	out := make([]string, 0, len(qc.SearchConstraints.RequiredAudioLanguages))
	for _, raw := range qc.SearchConstraints.RequiredAudioLanguages {
		tag, err := language.Parse(raw)
		if err != nil {
			out = append(out, strings.ToLower(raw))
			continue
		}
		base, _ := tag.Base()
		if code, ok := iso639ToThreeLetter[base.String()]; ok {
			out = append(out, code)
		} else {
			out = append(out, base.String())
		}
	}
	return out
}

func joinNonEmpty(base string, quality []string, languages []string) string {
	parts := []string{base}
	parts = append(parts, quality...)
	parts = append(parts, languages...)
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func dedupeCaseInsensitive(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
