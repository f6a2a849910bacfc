package textbrain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// LLMQueryBuilder is the LLM-backed QueryBuilder plug-in, §4.3.
type LLMQueryBuilder struct {
	Client     ports.LLMClient
	MaxQueries int
}

func NewLLMQueryBuilder(client ports.LLMClient, maxQueries int) *LLMQueryBuilder {
	if maxQueries <= 0 {
		maxQueries = 5
	}
	return &LLMQueryBuilder{Client: client, MaxQueries: maxQueries}
}

func (b *LLMQueryBuilder) BuildQueries(ctx context.Context, qc domain.QueryContext) (ports.QueryBuildResult, error) {
	if b.Client == nil {
		return ports.QueryBuildResult{}, ports.ErrLLMUnconfigured
	}

	system := "You generate search engine queries for finding torrents of the requested media. " +
		"Respond with a single JSON object: {\"queries\": [\"...\"]}. No prose."
	user := fmt.Sprintf("Description: %s\nTags: %s\nMax queries: %d", qc.Description, strings.Join(qc.Tags, ", "), b.MaxQueries)

	text, usage, err := b.Client.Complete(ctx, system, user)
	if err != nil {
		return ports.QueryBuildResult{}, fmt.Errorf("llm query builder: %w", err)
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal(extractJSONObject(text), &parsed); err != nil {
		return ports.QueryBuildResult{}, fmt.Errorf("llm query builder: parse response: %w", err)
	}

	queries := dedupeCaseInsensitive(parsed.Queries)
	if len(queries) > b.MaxQueries {
		queries = queries[:b.MaxQueries]
	}

	return ports.QueryBuildResult{
		Queries:    queries,
		Method:     "llm",
		Confidence: 1,
		LlmUsage:   &usage,
	}, nil
}

// extractJSONObject robustly extracts the first top-level JSON object
// from text that may contain surrounding prose or markdown fences, per
// §4.3's "parse the JSON response robustly (extract first { ... last })".
func extractJSONObject(text string) []byte {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < 0 || end < start {
		return []byte("{}")
	}
	return []byte(text[start : end+1])
}
