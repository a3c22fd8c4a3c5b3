package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/toolscout/internal/candidate"
	"github.com/aleutian-labs/toolscout/internal/filter"
	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/plan"
	"github.com/aleutian-labs/toolscout/internal/structuredstore"
	"github.com/aleutian-labs/toolscout/internal/vectorstore"
)

type fakeVectorStore struct {
	hits map[string][]vectorstore.Hit
	err  map[string]error
}

func (f *fakeVectorStore) Search(_ context.Context, collection string, _ []float32, topK int, _ []vectorstore.WhereClause) ([]vectorstore.Hit, error) {
	if err, ok := f.err[collection]; ok {
		return nil, err
	}
	hits := f.hits[collection]
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

type fakeStructuredStore struct {
	rows []structuredstore.Row
	err  error
}

func (f *fakeStructuredStore) Query(_ context.Context, _ string, _ []filter.Predicate, _ int) ([]structuredstore.Row, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (fakeEmbedder) EmbeddingOfTool(_ context.Context, toolID, _ string) ([]float32, bool, error) {
	if toolID == "" {
		return nil, false, nil
	}
	return []float32{0, 1, 0}, true, nil
}

func samplePlan() *plan.QueryPlan {
	return &plan.QueryPlan{
		Strategy: plan.StrategyHybrid,
		VectorSources: []plan.VectorSource{
			{Collection: "tools_semantic", EmbeddingField: "description_embedding", QueryVectorSource: plan.SourceQueryText, TopK: 10},
		},
		StructuredSources: []plan.StructuredSource{
			{Source: "tools", Filters: nil, Limit: 20},
		},
		Fusion:              plan.FusionRRF,
		MaxRefinementCycles: 0,
		Confidence:          0.8,
	}
}

func TestExecutorRun_FusesAcrossSources(t *testing.T) {
	vs := &fakeVectorStore{
		hits: map[string][]vectorstore.Hit{
			"tools_semantic": {
				{ID: "tool-a", Score: 0.9, Payload: map[string]any{"name": "A"}},
				{ID: "tool-b", Score: 0.5, Payload: map[string]any{"name": "B"}},
			},
		},
	}
	ss := &fakeStructuredStore{rows: []structuredstore.Row{
		{ID: "tool-a", Payload: map[string]any{"name": "A"}},
		{ID: "tool-c", Payload: map[string]any{"name": "C"}},
	}}

	ex := New(vs, ss, fakeEmbedder{})
	res, err := ex.Run(context.Background(), "cli tool", &intent.Record{}, samplePlan())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Errors)

	ids := make(map[string]bool)
	for _, c := range res.Candidates {
		ids[c.ID] = true
	}
	assert.True(t, ids["tool-a"])
	assert.True(t, ids["tool-b"])
	assert.True(t, ids["tool-c"])

	// tool-a appeared in both sources; provenance should carry both.
	var toolA = findCandidate(res.Candidates, "tool-a")
	require.NotNil(t, toolA)
	assert.Contains(t, toolA.Provenance.Collections, "tools_semantic")
	assert.Contains(t, toolA.Provenance.FiltersApplied, "tools")
}

func TestExecutorRun_PartialFailureIsRecovered(t *testing.T) {
	vs := &fakeVectorStore{
		err: map[string]error{"tools_semantic": errors.New("connection refused")},
	}
	ss := &fakeStructuredStore{rows: []structuredstore.Row{
		{ID: "tool-c", Payload: map[string]any{"name": "C"}},
	}}

	ex := New(vs, ss, fakeEmbedder{})
	res, err := ex.Run(context.Background(), "cli tool", &intent.Record{}, samplePlan())
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.True(t, res.Errors[0].Recovered)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "tool-c", res.Candidates[0].ID)
}

func TestExecutorRun_AllSourcesFailYieldsEmptyResultError(t *testing.T) {
	vs := &fakeVectorStore{err: map[string]error{"tools_semantic": errors.New("down")}}
	ss := &fakeStructuredStore{err: errors.New("down")}

	ex := New(vs, ss, fakeEmbedder{})
	res, err := ex.Run(context.Background(), "cli tool", &intent.Record{}, samplePlan())
	require.NoError(t, err)
	require.Empty(t, res.Candidates)
	require.NotEmpty(t, res.Errors)
}

func TestExecutorRun_TruncatesToTopK(t *testing.T) {
	hits := make([]vectorstore.Hit, 0, 10)
	for i := 0; i < 10; i++ {
		hits = append(hits, vectorstore.Hit{ID: string(rune('a' + i)), Score: 1.0 - float64(i)*0.05})
	}
	vs := &fakeVectorStore{hits: map[string][]vectorstore.Hit{"tools_semantic": hits}}
	ss := &fakeStructuredStore{}

	p := samplePlan()
	p.VectorSources[0].TopK = 3
	p.StructuredSources = nil

	ex := New(vs, ss, fakeEmbedder{})
	res, err := ex.Run(context.Background(), "cli tool", &intent.Record{}, p)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Candidates), 3)
}

func TestExecutorRun_ReferenceToolEmbeddingResolution(t *testing.T) {
	vs := &fakeVectorStore{hits: map[string][]vectorstore.Hit{
		"tools_semantic": {{ID: "tool-x", Score: 0.7}},
	}}
	ss := &fakeStructuredStore{}

	p := samplePlan()
	p.VectorSources[0].QueryVectorSource = plan.SourceReferenceToolEmbedding
	p.StructuredSources = nil

	ex := New(vs, ss, fakeEmbedder{})
	res, err := ex.Run(context.Background(), "", &intent.Record{ReferenceTool: "known-tool"}, p)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "tool-x", res.Candidates[0].ID)
}

func TestExecutorRun_SourceWeightIsDistinctFromFusedScore(t *testing.T) {
	vs := &fakeVectorStore{hits: map[string][]vectorstore.Hit{
		"tools_semantic": {{ID: "tool-a", Score: 0.9}},
	}}
	ss := &fakeStructuredStore{rows: []structuredstore.Row{{ID: "tool-b"}}}

	p := samplePlan()
	p.Fusion = plan.FusionWeightedSum

	ex := New(vs, ss, fakeEmbedder{})
	res, err := ex.Run(context.Background(), "cli tool", &intent.Record{}, p)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)

	toolA := findCandidate(res.Candidates, "tool-a")
	require.NotNil(t, toolA)
	toolB := findCandidate(res.Candidates, "tool-b")
	require.NotNil(t, toolB)

	// tool-a's vector source is the first one encountered, so it gets the
	// Primary tier weight; tool-b's structured source gets Secondary. Both
	// weights must differ from each candidate's final fused Score, or the
	// three-level tie-break degrades to two (SPEC_FULL.md §4.7 step 7).
	assert.NotEqual(t, toolA.Score, toolA.SourceWeight)
	assert.NotEqual(t, toolB.Score, toolB.SourceWeight)
	assert.NotEqual(t, toolA.SourceWeight, toolB.SourceWeight)
}

func findCandidate(cands []candidate.Candidate, id string) *candidate.Candidate {
	for i := range cands {
		if cands[i].ID == id {
			return &cands[i]
		}
	}
	return nil
}
