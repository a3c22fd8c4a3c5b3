// Package plan implements the Query Planner (C5) and Plan Validator (C6):
// turning an intent record into a validated QueryPlan that names vector
// collections, structured filters, and a fusion strategy.
package plan

import (
	"encoding/json"
	"fmt"

	"github.com/aleutian-labs/toolscout/internal/filter"
)

// Strategy is the closed set of overall retrieval strategies.
type Strategy string

const (
	StrategyHybrid      Strategy = "hybrid"
	StrategyMultiVector  Strategy = "multi-vector"
	StrategyVectorOnly   Strategy = "vector-only"
	StrategyMetadataOnly Strategy = "metadata-only"
	StrategySemanticKG   Strategy = "semantic-kg"
)

// QueryVectorSource is the closed set of ways a vector source's query
// vector may be resolved.
type QueryVectorSource string

const (
	SourceQueryText             QueryVectorSource = "query_text"
	SourceReferenceToolEmbedding QueryVectorSource = "reference_tool_embedding"
	SourceSemanticVariant        QueryVectorSource = "semantic_variant"
)

// FusionMethod is the closed set of fusion algorithms C8 implements.
type FusionMethod string

const (
	FusionRRF         FusionMethod = "rrf"
	FusionWeightedSum FusionMethod = "weighted_sum"
	FusionConcat      FusionMethod = "concat"
	FusionNone        FusionMethod = "none"
)

// VectorSource is one collection the Executor will search.
type VectorSource struct {
	Collection        string            `json:"collection" validate:"required"`
	EmbeddingField    string            `json:"embeddingField"`
	QueryVectorSource QueryVectorSource `json:"queryVectorSource"`
	TopK              int               `json:"topK" validate:"gte=1,lte=200"`
}

// StructuredSource is the single structured-store query the Executor will
// issue, carrying the filters C4 produced.
type StructuredSource struct {
	Source  string             `json:"source"`
	Filters FilterSequence     `json:"filters"`
	Limit   int                `json:"limit" validate:"gte=1,lte=200"`
}

// FilterSequence is []filter.Predicate with a custom UnmarshalJSON that
// rejects a JSON object in this position — the "filters is a map" leakage
// bug the spec calls out explicitly (SPEC_FULL.md §9, §4.6).
type FilterSequence []filter.Predicate

func (fs *FilterSequence) UnmarshalJSON(data []byte) error {
	trimmed := trimLeadingWhitespace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return fmt.Errorf("filters must be a JSON array of {field,operator,value}, got an object")
	}

	var raw []struct {
		Field    string `json:"field"`
		Operator string `json:"operator"`
		Value    any    `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing filters array: %w", err)
	}
	out := make(FilterSequence, len(raw))
	for i, r := range raw {
		out[i] = filter.Predicate{Field: r.Field, Operator: filter.Operator(r.Operator), Value: r.Value}
	}
	*fs = out
	return nil
}

func trimLeadingWhitespace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return b[i:]
}

// Reranker optionally configures a post-fusion reranking stage. The core
// never implements one; it only carries the configuration through.
type Reranker struct {
	Type          string `json:"type"`
	Model         string `json:"model,omitempty"`
	MaxCandidates int    `json:"maxCandidates,omitempty"`
}

// QueryPlan is C5's output and C7's input.
type QueryPlan struct {
	Strategy            Strategy           `json:"strategy" validate:"required"`
	VectorSources       []VectorSource     `json:"vectorSources" validate:"dive"`
	StructuredSources   []StructuredSource `json:"structuredSources" validate:"dive"`
	Reranker            *Reranker          `json:"reranker,omitempty"`
	Fusion              FusionMethod       `json:"fusion" validate:"required"`
	MaxRefinementCycles int                `json:"maxRefinementCycles" validate:"gte=0,lte=5"`
	Explanation         string             `json:"explanation"`
	Confidence          float64            `json:"confidence" validate:"gte=0,lte=1"`
}

// TopKTotal sums per-source topK, capped at 200 per SPEC_FULL.md §4.7 step 6.
func (p *QueryPlan) TopKTotal() int {
	total := 0
	for _, vs := range p.VectorSources {
		total += vs.TopK
	}
	if total > 200 {
		total = 200
	}
	return total
}
