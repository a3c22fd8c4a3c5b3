package fusion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_ClampsAndRescales(t *testing.T) {
	require.InDelta(t, 1.0, Normalize(1.0), 1e-9)
	require.InDelta(t, 0.0, Normalize(-1.0), 1e-9)
	require.InDelta(t, 0.5, Normalize(0.0), 1e-9)
	require.Equal(t, 0.0, Normalize(-5))
	require.Equal(t, 1.0, Normalize(5))
}

func TestRRF_SumsAcrossLists(t *testing.T) {
	lists := [][]RankedItem{
		{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.8}},
		{{ID: "b", Score: 0.95}, {ID: "c", Score: 0.5}},
	}
	scores := RRF(lists)
	expectedB := 1.0/float64(RRFConstant+2) + 1.0/float64(RRFConstant+1)
	require.InDelta(t, expectedB, scores["b"], 1e-9)
	require.NotContains(t, scores, "missing")
}

func TestRRF_OrderIndependentOfCompletionOrder(t *testing.T) {
	listA := []RankedItem{{ID: "x", Score: 1}, {ID: "y", Score: 0.5}}
	listB := []RankedItem{{ID: "y", Score: 1}, {ID: "x", Score: 0.5}}

	s1 := RRF([][]RankedItem{listA, listB})
	s2 := RRF([][]RankedItem{listB, listA})
	require.InDelta(t, s1["x"], s2["x"], 1e-9)
	require.InDelta(t, s1["y"], s2["y"], 1e-9)
}

func TestWeightedSum_DefaultsUnspecifiedSource(t *testing.T) {
	lists := [][]RankedItem{
		{{ID: "a", Score: 1.0, Source: "tools"}},
		{{ID: "a", Score: 1.0, Source: "unknown"}},
	}
	weights := map[string]float64{"tools": DefaultWeights.Primary}
	scores := WeightedSum(lists, weights)
	require.InDelta(t, DefaultWeights.Primary+DefaultWeights.Default, scores["a"], 1e-9)
}

func TestConcat_PreservesOrderNoRenorm(t *testing.T) {
	lists := [][]RankedItem{
		{{ID: "a", Score: 0.3}},
		{{ID: "b", Score: 0.9}},
	}
	out := Concat(lists)
	require.Equal(t, []RankedItem{{ID: "a", Score: 0.3}, {ID: "b", Score: 0.9}}, out)
}

func TestNone_PassesThrough(t *testing.T) {
	list := []RankedItem{{ID: "a", Score: 0.1}}
	require.Equal(t, list, None(list))
}
