// Package intent defines the IntentRecord produced by the Intent Extractor
// (C3) and the Extractor collaborator interface the Query Planner and
// pipeline composition root depend on.
package intent

// PriceRange is a closed or half-open numeric price range.
type PriceRange struct {
	Min           *float64 `json:"min"`
	Max           *float64 `json:"max"`
	Currency      string   `json:"currency,omitempty"`
	BillingPeriod string   `json:"billingPeriod,omitempty"`
}

// ComparisonOperator is the closed set of priceComparison operators.
type ComparisonOperator string

const (
	OpLessThan           ComparisonOperator = "less_than"
	OpLessThanOrEqual    ComparisonOperator = "less_than_or_equal"
	OpGreaterThan        ComparisonOperator = "greater_than"
	OpGreaterThanOrEqual ComparisonOperator = "greater_than_or_equal"
	OpEqual              ComparisonOperator = "equal"
	OpNotEqual           ComparisonOperator = "not_equal"
	OpAround             ComparisonOperator = "around"
	OpBetween            ComparisonOperator = "between"
)

// PriceComparison is a single-operator numeric price comparison.
type PriceComparison struct {
	Operator      ComparisonOperator `json:"operator"`
	Value         float64            `json:"value"`
	Currency      string             `json:"currency,omitempty"`
	BillingPeriod string             `json:"billingPeriod,omitempty"`
}

// Record is the structured intent C3 produces and C5/C4 consume.
type Record struct {
	PrimaryGoal     string           `json:"primaryGoal"`
	ReferenceTool   string           `json:"referenceTool,omitempty"`
	ComparisonMode  string           `json:"comparisonMode,omitempty"`
	Category        string           `json:"category,omitempty"`
	Categories      []string         `json:"categories,omitempty"`
	Interface       string           `json:"interface,omitempty"`
	Functionality   string           `json:"functionality,omitempty"`
	Deployment      string           `json:"deployment,omitempty"`
	Industry        string           `json:"industry,omitempty"`
	UserType        string           `json:"userType,omitempty"`
	PricingModel    string           `json:"pricingModel,omitempty"`
	BillingPeriod   string           `json:"billingPeriod,omitempty"`
	PriceRange      *PriceRange      `json:"priceRange,omitempty"`
	PriceComparison *PriceComparison `json:"priceComparison,omitempty"`
	SemanticVariants []string        `json:"semanticVariants,omitempty"`
	Constraints     []string         `json:"constraints,omitempty"`
	Confidence      float64          `json:"confidence"`
}

// FeatureCount approximates how many distinct preference axes the user
// expressed, used by the Query Planner's multi-collection-hybrid heuristic
// (SPEC_FULL.md §4.5 step 1).
func (r *Record) FeatureCount() int {
	n := 0
	for _, v := range []string{r.Category, r.Interface, r.Functionality, r.Deployment, r.Industry, r.UserType, r.PricingModel} {
		if v != "" {
			n++
		}
	}
	n += len(r.Categories)
	return n
}
