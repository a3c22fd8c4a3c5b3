package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/prompt"
	"github.com/aleutian-labs/toolscout/internal/providers"
	"github.com/aleutian-labs/toolscout/internal/schema"
)

type fakeChat struct {
	response string
}

func (f *fakeChat) Chat(ctx context.Context, messages []providers.Message, opts providers.ChatOptions) (string, error) {
	return f.response, nil
}

func TestAnalyze_IdentityFocused(t *testing.T) {
	a := Analyze(&intent.Record{PrimaryGoal: "find", ReferenceTool: "Cursor IDE"})
	require.Equal(t, AnalysisIdentityFocused, a.RecommendedStrategy)
	require.Equal(t, []string{"tools"}, a.PrimaryCollections)
}

func TestAnalyze_MultiCollectionHybrid(t *testing.T) {
	a := Analyze(&intent.Record{
		PrimaryGoal: "compare",
		Category:    "Code Editor", Interface: "CLI", Deployment: "Cloud",
	})
	require.Equal(t, AnalysisMultiCollectionHybrid, a.RecommendedStrategy)
}

func TestPlanner_S1_FreeCLITools(t *testing.T) {
	s, err := schema.LoadDefault()
	require.NoError(t, err)
	b, err := prompt.NewBuilder(s)
	require.NoError(t, err)

	chat := &fakeChat{response: `{"confidence":0.8,"explanation":"free cli tools"}`}
	planner := NewPlanner(chat, b, s, "test-model", 0, nil)

	rec := &intent.Record{PrimaryGoal: "find", PricingModel: "Free", Interface: "CLI", Confidence: 0.9}
	p, err := planner.Plan(context.Background(), "free cli tools", rec)
	require.NoError(t, err)

	require.NotEmpty(t, p.VectorSources)
	found := false
	for _, vs := range p.VectorSources {
		if vs.Collection == "tools" {
			found = true
		}
	}
	require.True(t, found)
	require.Len(t, p.StructuredSources, 1)
	require.Len(t, p.StructuredSources[0].Filters, 2)
}

func TestPlanner_InvalidPlanFails(t *testing.T) {
	s, err := schema.LoadDefault()
	require.NoError(t, err)
	b, err := prompt.NewBuilder(s)
	require.NoError(t, err)

	chat := &fakeChat{response: `not json at all`}
	planner := NewPlanner(chat, b, s, "test-model", 0, nil)

	_, err = planner.Plan(context.Background(), "anything", &intent.Record{PrimaryGoal: "find"})
	require.Error(t, err)
}

func TestPlanner_Idempotent(t *testing.T) {
	s, err := schema.LoadDefault()
	require.NoError(t, err)
	b, err := prompt.NewBuilder(s)
	require.NoError(t, err)

	chat := &fakeChat{response: `{"confidence":0.7}`}
	planner := NewPlanner(chat, b, s, "test-model", 0, nil)
	rec := &intent.Record{PrimaryGoal: "find", Interface: "CLI"}

	p1, err := planner.Plan(context.Background(), "q", rec)
	require.NoError(t, err)
	p2, err := planner.Plan(context.Background(), "q", rec)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}
