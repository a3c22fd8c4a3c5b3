package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/toolscout/internal/filter"
	"github.com/aleutian-labs/toolscout/internal/schema"
)

func TestValidate_RejectsDisabledCollection(t *testing.T) {
	s, err := schema.LoadDefault()
	require.NoError(t, err)

	p := &QueryPlan{
		Strategy:      StrategyMultiVector,
		Fusion:        FusionNone,
		VectorSources: []VectorSource{{Collection: "nonexistent", TopK: 10}},
		Confidence:    0.5,
	}
	err = Validate(s, p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not an enabled schema collection")
}

func TestValidate_RejectsUnfilterableField(t *testing.T) {
	s, err := schema.LoadDefault()
	require.NoError(t, err)

	p := &QueryPlan{
		Strategy: StrategyMetadataOnly,
		Fusion:   FusionNone,
		StructuredSources: []StructuredSource{{
			Source: "tools_structured",
			Limit:  10,
			Filters: FilterSequence{
				{Field: "not_a_real_field", Operator: filter.OpIn, Value: []string{"x"}},
			},
		}},
		Confidence: 0.5,
	}
	err = Validate(s, p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "filterableFields")
}

func TestValidate_Bounds(t *testing.T) {
	s, err := schema.LoadDefault()
	require.NoError(t, err)

	p := &QueryPlan{
		Strategy:            StrategyMetadataOnly,
		Fusion:              FusionNone,
		MaxRefinementCycles: 9,
		Confidence:          1.5,
	}
	err = Validate(s, p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "maxRefinementCycles")
}

func TestFilterSequence_RejectsObjectShape(t *testing.T) {
	var fs FilterSequence
	err := fs.UnmarshalJSON([]byte(`{"field":"x"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be a JSON array")
}
