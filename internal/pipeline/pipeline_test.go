package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/toolscout/internal/executor"
	"github.com/aleutian-labs/toolscout/internal/filter"
	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/plan"
	"github.com/aleutian-labs/toolscout/internal/prompt"
	"github.com/aleutian-labs/toolscout/internal/providers"
	"github.com/aleutian-labs/toolscout/internal/schema"
	"github.com/aleutian-labs/toolscout/internal/structuredstore"
	"github.com/aleutian-labs/toolscout/internal/vectorstore"
)

// fakeExtractor returns a scripted intent.Record, standing in for C3's LLM
// call so S1-S6 end-to-end tests exercise planning and execution only.
type fakeExtractor struct {
	rec *intent.Record
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (*intent.Record, error) {
	return f.rec, nil
}

// fakePlanChat returns a fixed raw plan JSON string regardless of input,
// standing in for C5's LLM call.
type fakePlanChat struct {
	raw string
}

func (f *fakePlanChat) Chat(_ context.Context, _ []providers.Message, _ providers.ChatOptions) (string, error) {
	return f.raw, nil
}

type fakeVS struct {
	hits []vectorstore.Hit
}

func (f *fakeVS) Search(_ context.Context, _ string, _ []float32, topK int, _ []vectorstore.WhereClause) ([]vectorstore.Hit, error) {
	hits := f.hits
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

type fakeSS struct {
	rows []structuredstore.Row
}

func (f *fakeSS) Query(_ context.Context, _ string, _ []filter.Predicate, _ int) ([]structuredstore.Row, error) {
	return f.rows, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _, _ string) ([]float32, error) { return []float32{1, 0}, nil }
func (fakeEmbedder) EmbeddingOfTool(_ context.Context, toolID, _ string) ([]float32, bool, error) {
	return []float32{0, 1}, toolID != "", nil
}

func testSchema(t *testing.T) *schema.DomainSchema {
	t.Helper()
	s, err := schema.LoadDefault()
	require.NoError(t, err)
	return s
}

// buildPipeline wires a Pipeline whose Extractor and Planner-LLM are both
// scripted, so S1-S6 exercise real planning heuristics, real filter
// building (via the Planner's PostValidate -> filter.Build call), and real
// executor fan-out/fusion against fake stores.
func buildPipeline(t *testing.T, rec *intent.Record, planRaw string, vs vectorstore.VectorStore, ss structuredstore.StructuredStore) *Pipeline {
	t.Helper()
	s := testSchema(t)
	builder, err := prompt.NewBuilder(s)
	require.NoError(t, err)

	pl := plan.NewPlanner(&fakePlanChat{raw: planRaw}, builder, s, "", 0, nil)
	ex := executor.New(vs, ss, fakeEmbedder{})
	return New(&fakeExtractor{rec: rec}, pl, ex, nil)
}

// s1PlanJSON represents the minimal LLM plan output for "free cli tools";
// PostValidate fills in filters, embeddingField, fusion, etc.
const s1PlanJSON = `{
  "strategy": "hybrid",
  "vectorSources": [{"collection": "tools"}],
  "structuredSources": [{"source": "tools"}],
  "fusion": "none",
  "confidence": 0.7,
  "explanation": "identity-ish query"
}`

func TestPipeline_S1_FreeCLITools(t *testing.T) {
	rec := &intent.Record{
		PrimaryGoal:  "find",
		PricingModel: "Free",
		Interface:    "CLI",
		Confidence:   0.9,
	}
	vs := &fakeVS{hits: []vectorstore.Hit{{ID: "tool-1", Score: 0.8}}}
	ss := &fakeSS{rows: []structuredstore.Row{{ID: "tool-1"}}}

	p := buildPipeline(t, rec, s1PlanJSON, vs, ss)
	resp, err := p.Search(context.Background(), "free cli tools", Options{})
	require.NoError(t, err)
	require.NotNil(t, resp)

	require.Len(t, resp.Stats.Plan.StructuredSources, 1)
	filters := resp.Stats.Plan.StructuredSources[0].Filters
	require.Len(t, filters, 2)
	assert.Equal(t, "interface", filters[0].Field)
	assert.Equal(t, filter.OpIn, filters[0].Operator)
	assert.Equal(t, []string{"CLI"}, filters[0].Value)
	assert.Equal(t, "pricingModel", filters[1].Field)
	assert.Equal(t, []string{"Free"}, filters[1].Value)

	assert.NotEmpty(t, resp.Candidates)
}

func TestPipeline_S2_AIToolsUnder50PerMonth(t *testing.T) {
	rec := &intent.Record{
		PrimaryGoal: "find",
		PriceComparison: &intent.PriceComparison{
			Operator:      intent.OpLessThan,
			Value:         50,
			BillingPeriod: "Monthly",
		},
		Confidence: 0.8,
	}
	vs := &fakeVS{}
	ss := &fakeSS{}

	p := buildPipeline(t, rec, s1PlanJSON, vs, ss)
	resp, err := p.Search(context.Background(), "AI tools under $50 per month", Options{})
	require.NoError(t, err)

	filters := resp.Stats.Plan.StructuredSources[0].Filters
	require.Len(t, filters, 1)
	assert.Equal(t, "pricing", filters[0].Field)
	assert.Equal(t, filter.OpElemMatch, filters[0].Operator)
	cond, ok := filters[0].Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Monthly", cond["billingPeriod"])
	price, ok := cond["price"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 50.0, price["<"])
}

func TestPipeline_S3_CodeEditorBetween20And100Monthly(t *testing.T) {
	min, max := 20.0, 100.0
	rec := &intent.Record{
		PrimaryGoal: "find",
		Category:    "Code Editor",
		PriceRange: &intent.PriceRange{
			Min:           &min,
			Max:           &max,
			BillingPeriod: "Monthly",
		},
		Confidence: 0.85,
	}
	vs := &fakeVS{}
	ss := &fakeSS{}

	p := buildPipeline(t, rec, s1PlanJSON, vs, ss)
	resp, err := p.Search(context.Background(), "code editor between $20-100 monthly", Options{})
	require.NoError(t, err)

	filters := resp.Stats.Plan.StructuredSources[0].Filters
	require.Len(t, filters, 2)
	assert.Equal(t, "pricing", filters[0].Field)
	cond := filters[0].Value.(map[string]any)
	price := cond["price"].(map[string]any)
	assert.Equal(t, 20.0, price[">="])
	assert.Equal(t, 100.0, price["<="])

	assert.Equal(t, "categories.primary", filters[1].Field)
	assert.Equal(t, []string{"Code Editor"}, filters[1].Value)
}

func TestPipeline_S4_CursorAlternativeCheaper(t *testing.T) {
	rec := &intent.Record{
		PrimaryGoal:    "find",
		ReferenceTool:  "Cursor IDE",
		ComparisonMode: "alternative_to",
		Category:       "Code Editor",
		PriceComparison: &intent.PriceComparison{
			Operator:      intent.OpLessThan,
			Value:         20,
			BillingPeriod: "Monthly",
		},
		Confidence: 0.8,
	}
	vs := &fakeVS{hits: []vectorstore.Hit{{ID: "cursor-alt", Score: 0.9}}}
	ss := &fakeSS{}

	planRaw := `{
	  "strategy": "identity-focused",
	  "vectorSources": [{"collection": "tools", "queryVectorSource": "reference_tool_embedding"}],
	  "structuredSources": [{"source": "tools"}],
	  "fusion": "none",
	  "confidence": 0.75
	}`

	p := buildPipeline(t, rec, planRaw, vs, ss)
	resp, err := p.Search(context.Background(), "Cursor alternative but cheaper", Options{})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Stats.Plan.VectorSources)
	assert.Equal(t, plan.SourceReferenceToolEmbedding, resp.Stats.Plan.VectorSources[0].QueryVectorSource)
	assert.Contains(t, []plan.Strategy{plan.StrategyHybrid, "identity-focused"}, resp.Stats.Plan.Strategy)
}

func TestPipeline_S5_ToolsAround30PerMonth(t *testing.T) {
	rec := &intent.Record{
		PrimaryGoal: "find",
		PriceComparison: &intent.PriceComparison{
			Operator:      intent.OpAround,
			Value:         30,
			BillingPeriod: "Monthly",
		},
		Confidence: 0.7,
	}
	vs := &fakeVS{}
	ss := &fakeSS{}

	p := buildPipeline(t, rec, s1PlanJSON, vs, ss)
	resp, err := p.Search(context.Background(), "tools around $30 per month", Options{})
	require.NoError(t, err)

	filters := resp.Stats.Plan.StructuredSources[0].Filters
	cond := filters[0].Value.(map[string]any)
	price := cond["price"].(map[string]any)
	assert.Equal(t, 27.0, price[">="])
	assert.Equal(t, 33.0, price["<="])
}

func TestPipeline_S6_FreeOfflineAICodeGenerator(t *testing.T) {
	rec := &intent.Record{
		PrimaryGoal:   "find",
		PricingModel:  "Free",
		Functionality: "Code Generation",
		Deployment:    "Self-Hosted",
		Confidence:    0.8,
	}
	vs := &fakeVS{hits: []vectorstore.Hit{{ID: "offline-gen", Score: 0.6}}}
	ss := &fakeSS{rows: []structuredstore.Row{{ID: "offline-gen"}}}

	p := buildPipeline(t, rec, s1PlanJSON, vs, ss)
	resp, err := p.Search(context.Background(), "free offline AI code generator", Options{})
	require.NoError(t, err)

	filters := resp.Stats.Plan.StructuredSources[0].Filters
	var fields []string
	for _, f := range filters {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "functionality")
	assert.Contains(t, fields, "deployment")
	assert.Contains(t, fields, "pricingModel")
}

type fakeOutcomeRecorder struct {
	calls          int
	lastFusion     string
	lastCandidates int
}

func (f *fakeOutcomeRecorder) RecordQueryOutcome(_ context.Context, fusionMethod string, candidateCount int, _ time.Duration) {
	f.calls++
	f.lastFusion = fusionMethod
	f.lastCandidates = candidateCount
}

func TestPipeline_WithOutcomeRecorder_RecordsOnSuccess(t *testing.T) {
	rec := &intent.Record{PrimaryGoal: "find", PricingModel: "Free", Interface: "CLI", Confidence: 0.9}
	vs := &fakeVS{hits: []vectorstore.Hit{{ID: "tool-1", Score: 0.8}}}
	ss := &fakeSS{rows: []structuredstore.Row{{ID: "tool-1"}}}

	p := buildPipeline(t, rec, s1PlanJSON, vs, ss)
	recorder := &fakeOutcomeRecorder{}
	p.WithOutcomeRecorder(recorder)

	resp, err := p.Search(context.Background(), "free cli tools", Options{})
	require.NoError(t, err)

	require.Equal(t, 1, recorder.calls)
	assert.Equal(t, string(resp.Stats.Plan.Fusion), recorder.lastFusion)
	assert.Equal(t, len(resp.Candidates), recorder.lastCandidates)
}

func TestPipeline_NoOutcomeRecorder_DoesNotPanic(t *testing.T) {
	rec := &intent.Record{PrimaryGoal: "find", Confidence: 0.7}
	vs := &fakeVS{}
	ss := &fakeSS{}

	p := buildPipeline(t, rec, s1PlanJSON, vs, ss)
	_, err := p.Search(context.Background(), "tools", Options{})
	require.NoError(t, err)
}
