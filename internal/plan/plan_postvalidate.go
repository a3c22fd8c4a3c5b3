package plan

import (
	"math"

	"github.com/aleutian-labs/toolscout/internal/filter"
	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/schema"
)

// DefaultTopK holds the three recommended topK values used to inject
// missing primary/secondary vector sources. Kept independent of
// fusion.DefaultWeights per SPEC_FULL.md design note 2.
var DefaultTopK = struct {
	Primary   int
	Secondary int
	Other     int
}{Primary: 70, Secondary: 40, Other: 50}

const structuredSourceLimit = 100

// PostValidate implements SPEC_FULL.md §4.5 step 3: post-validation and
// enhancement of the raw, LLM-produced plan against the deterministic
// analysis, the schema, and C4's filters.
func PostValidate(s *schema.DomainSchema, analysis Analysis, rec *intent.Record, raw *QueryPlan) *QueryPlan {
	p := &QueryPlan{
		Strategy:            raw.Strategy,
		Reranker:            raw.Reranker,
		MaxRefinementCycles: raw.MaxRefinementCycles,
		Explanation:         raw.Explanation,
		Confidence:          raw.Confidence,
	}
	if p.Confidence <= 0 {
		p.Confidence = 0.5
	}
	if p.MaxRefinementCycles < 0 || p.MaxRefinementCycles > 5 {
		p.MaxRefinementCycles = 0
	}

	enabled := map[string]schema.VectorCollection{}
	for _, c := range s.EnabledVectorCollections() {
		enabled[c.Name] = c
	}

	// Drop vector sources whose collection is not enabled.
	present := map[string]bool{}
	for _, vs := range raw.VectorSources {
		if _, ok := enabled[vs.Collection]; !ok {
			continue
		}
		present[vs.Collection] = true
		p.VectorSources = append(p.VectorSources, vs)
	}

	// Inject primary/secondary collections missing from the model output.
	for _, name := range analysis.PrimaryCollections {
		if present[name] {
			continue
		}
		if _, ok := enabled[name]; !ok {
			continue
		}
		present[name] = true
		p.VectorSources = append(p.VectorSources, VectorSource{Collection: name, TopK: DefaultTopK.Primary})
	}
	for _, name := range analysis.SecondaryCollections {
		if present[name] {
			continue
		}
		if _, ok := enabled[name]; !ok {
			continue
		}
		present[name] = true
		p.VectorSources = append(p.VectorSources, VectorSource{Collection: name, TopK: DefaultTopK.Secondary})
	}

	// Assign embeddingField/queryVectorSource for every vector source.
	for i := range p.VectorSources {
		vs := &p.VectorSources[i]
		if c, ok := enabled[vs.Collection]; ok && vs.EmbeddingField == "" {
			vs.EmbeddingField = c.EmbeddingField
		}
		if vs.TopK <= 0 {
			vs.TopK = DefaultTopK.Other
		}
		if vs.TopK > 200 {
			vs.TopK = 200
		}
		if vs.QueryVectorSource == "" {
			if rec.ReferenceTool != "" {
				vs.QueryVectorSource = SourceReferenceToolEmbedding
			} else {
				vs.QueryVectorSource = SourceQueryText
			}
		}
	}

	// Replace structuredSources filters by invoking C4.
	preds, _ := filter.Build(s, rec)
	if len(preds) > 0 {
		p.StructuredSources = []StructuredSource{{
			Source:  s.StructuredDatabase.Collection,
			Filters: FilterSequence(preds),
			Limit:   structuredSourceLimit,
		}}
	}

	p.Fusion = chooseFusion(len(p.VectorSources))
	p.Strategy = chooseStrategy(len(p.VectorSources), len(p.StructuredSources), raw.Strategy)

	coverage := coverageRatio(analysis.PrimaryCollections, p.VectorSources)
	p.Confidence = blendConfidence(p.Confidence, coverage, p.Strategy, analysis)

	return p
}

func chooseFusion(numVectorSources int) FusionMethod {
	switch {
	case numVectorSources > 2:
		return FusionRRF
	case numVectorSources == 2:
		return FusionWeightedSum
	case numVectorSources == 1:
		return FusionNone
	default:
		return FusionConcat
	}
}

func chooseStrategy(numVectorSources, numStructuredSources int, modelStrategy Strategy) Strategy {
	switch {
	case numVectorSources > 2:
		return StrategyMultiVector
	case numVectorSources > 0 && numStructuredSources > 0:
		return StrategyHybrid
	case numVectorSources > 0:
		return StrategyMultiVector
	case validStrategies[modelStrategy]:
		return modelStrategy
	default:
		return StrategyMetadataOnly
	}
}

func coverageRatio(primary []string, actual []VectorSource) float64 {
	if len(primary) == 0 {
		return 1
	}
	actualSet := map[string]bool{}
	for _, vs := range actual {
		actualSet[vs.Collection] = true
	}
	hit := 0
	for _, name := range primary {
		if actualSet[name] {
			hit++
		}
	}
	return float64(hit) / float64(len(primary))
}

func analysisMatchesStrategy(strategy Strategy, analysis Analysis) bool {
	switch analysis.RecommendedStrategy {
	case AnalysisIdentityFocused, AnalysisCapabilityFocused, AnalysisUsecaseFocused, AnalysisTechnicalFocused:
		return strategy == StrategyHybrid || strategy == StrategyMultiVector
	case AnalysisMultiCollectionHybrid:
		return strategy == StrategyMultiVector || strategy == StrategyHybrid
	case AnalysisAdaptiveWeighted:
		return strategy == StrategyHybrid
	default:
		return false
	}
}

// blendConfidence implements the §4.5 step 3 confidence formula:
// c' = c * (0.7 + 0.3*coverage), +0.1 if the final strategy matches the
// recommended one (capped at 1.0), rounded to 2 decimals.
func blendConfidence(c, coverage float64, strategy Strategy, analysis Analysis) float64 {
	blended := c * (0.7 + 0.3*coverage)
	if analysisMatchesStrategy(strategy, analysis) {
		blended += 0.1
	}
	if blended > 1.0 {
		blended = 1.0
	}
	if blended < 0 {
		blended = 0
	}
	return math.Round(blended*100) / 100
}
