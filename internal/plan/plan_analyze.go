package plan

import "github.com/aleutian-labs/toolscout/internal/intent"

// AnalysisStrategy is the deterministic, pre-LLM classification of a query's
// shape, distinct from the QueryPlan.Strategy the planner ultimately emits.
type AnalysisStrategy string

const (
	AnalysisIdentityFocused       AnalysisStrategy = "identity-focused"
	AnalysisCapabilityFocused     AnalysisStrategy = "capability-focused"
	AnalysisUsecaseFocused        AnalysisStrategy = "usecase-focused"
	AnalysisTechnicalFocused      AnalysisStrategy = "technical-focused"
	AnalysisMultiCollectionHybrid AnalysisStrategy = "multi-collection-hybrid"
	AnalysisAdaptiveWeighted      AnalysisStrategy = "adaptive-weighted"
)

// Analysis is the deterministic step-1 output of SPEC_FULL.md §4.5.
type Analysis struct {
	RecommendedStrategy AnalysisStrategy
	PrimaryCollections   []string
	SecondaryCollections []string
}

// goal classification. The source spec's heuristic prose names example
// goals ("find, discover, search") drawn from a broader vocabulary than
// IntentRecord.primaryGoal's closed set; mapped onto the closed set here,
// recorded as a DESIGN.md decision rather than guessed silently per run.
var (
	identityGoals   = map[string]bool{"find": true}
	capabilityGoals = map[string]bool{"recommend": true}
	usecaseGoals    = map[string]bool{"explore": true}
	technicalGoals  = map[string]bool{"analyze": true}
)

// Analyze implements step 1: deterministic intent analysis, heuristics
// applied in order, first match wins.
func Analyze(rec *intent.Record) Analysis {
	hasReferenceTool := rec.ReferenceTool != ""
	hasFeatures := rec.FeatureCount() > 0

	switch {
	case hasReferenceTool || identityGoals[rec.PrimaryGoal]:
		return Analysis{
			RecommendedStrategy: AnalysisIdentityFocused,
			PrimaryCollections:   []string{"tools"},
			SecondaryCollections: []string{"functionality"},
		}

	case hasFeatures || capabilityGoals[rec.PrimaryGoal]:
		return Analysis{
			RecommendedStrategy: AnalysisCapabilityFocused,
			PrimaryCollections:   []string{"functionality"},
			SecondaryCollections: []string{"tools", "usecases"},
		}

	case usecaseGoals[rec.PrimaryGoal]:
		return Analysis{
			RecommendedStrategy: AnalysisUsecaseFocused,
			PrimaryCollections:   []string{"usecases"},
			SecondaryCollections: []string{"functionality", "tools"},
		}

	case technicalGoals[rec.PrimaryGoal]:
		return Analysis{
			RecommendedStrategy: AnalysisTechnicalFocused,
			PrimaryCollections:   []string{"interface"},
			SecondaryCollections: []string{"tools", "functionality"},
		}

	case rec.FeatureCount() >= 3 || len(rec.Constraints) >= 3 || (hasFeatures && len(rec.Constraints) > 0):
		return Analysis{
			RecommendedStrategy: AnalysisMultiCollectionHybrid,
			PrimaryCollections:   []string{"tools", "functionality"},
			SecondaryCollections: nil,
		}

	default:
		return Analysis{
			RecommendedStrategy: AnalysisAdaptiveWeighted,
			PrimaryCollections:   []string{"tools", "functionality"},
			SecondaryCollections: nil,
		}
	}
}
