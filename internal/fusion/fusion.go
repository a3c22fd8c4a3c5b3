// Package fusion implements C8: Reciprocal Rank Fusion, weighted sum,
// concatenation, and score normalization, all pure and re-entrant per
// SPEC_FULL.md §5 — wall-clock completion order of the sources that
// produced these ranked lists must never influence the output.
package fusion

// RankedItem is one scored entry in a single source's ranked list, the
// shape every fusion method consumes.
type RankedItem struct {
	ID     string
	Score  float64
	Source string // logical source/collection name, used as a weight key
}

// DefaultWeights are the weighted_sum fusion weights, kept independent of
// plan.DefaultTopK per SPEC_FULL.md design note 2.
var DefaultWeights = struct {
	Primary   float64
	Secondary float64
	Tertiary  float64
	Default   float64
}{Primary: 1.0, Secondary: 0.6, Tertiary: 0.4, Default: 0.5}

// RRFConstant is the K in 1/(K+rank).
const RRFConstant = 60

// Normalize rescales a cosine similarity in [-1,1] to [0,1] and clamps.
func Normalize(cosineSimilarity float64) float64 {
	v := (cosineSimilarity + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RRF combines N ranked lists by summing 1/(K+rank) per item across all
// lists it appears in; items absent from a list contribute zero from it.
// Rank is 1-based, taken from each list's existing order.
func RRF(lists [][]RankedItem) map[string]float64 {
	scores := make(map[string]float64)
	for _, list := range lists {
		for i, item := range list {
			rank := i + 1
			scores[item.ID] += 1.0 / float64(RRFConstant+rank)
		}
	}
	return scores
}

// WeightedSum combines ranked lists using per-list weights (keyed by
// RankedItem.Source); a source with no configured weight gets
// DefaultWeights.Default.
func WeightedSum(lists [][]RankedItem, weights map[string]float64) map[string]float64 {
	scores := make(map[string]float64)
	for _, list := range lists {
		for _, item := range list {
			w, ok := weights[item.Source]
			if !ok {
				w = DefaultWeights.Default
			}
			scores[item.ID] += item.Score * w
		}
	}
	return scores
}

// Concat simply concatenates the lists in order, preserving each item's
// original score with no renormalization.
func Concat(lists [][]RankedItem) []RankedItem {
	var out []RankedItem
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}

// None passes a single list through unchanged.
func None(list []RankedItem) []RankedItem {
	return list
}
