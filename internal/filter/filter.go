// Package filter implements the Filter Builder (C4): a pure, deterministic,
// total function from an intent record to an ordered sequence of typed
// filter predicates targeting the structured store.
package filter

import (
	"math"

	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/schema"
)

// Operator is the closed set of FilterPredicate operators.
type Operator string

const (
	OpIn        Operator = "in"
	OpEq        Operator = "="
	OpNeq       Operator = "!="
	OpLt        Operator = "<"
	OpLte       Operator = "<="
	OpGt        Operator = ">"
	OpGte       Operator = ">="
	OpElemMatch Operator = "elemMatch"
)

// Predicate is a single typed filter targeting the structured store.
type Predicate struct {
	Field    string
	Operator Operator
	Value    any
}

// Warning is a soft, non-fatal issue raised while building filters (e.g.
// an unknown priceComparison operator falling back to equality).
type Warning struct {
	Message string
}

// priceCondition is the inner elemMatch value shape used by both rule 1
// (priceRange) and rule 2 (priceComparison). Declared as a type alias (not
// a defined type) so a Predicate.Value built here still type-asserts
// cleanly to map[string]any at consumers like structuredstore.Mongo.
type priceCondition = map[string]any

// Build runs the four ordered rules of SPEC_FULL.md §4.4 against rec and
// returns the resulting predicate sequence plus any soft warnings raised
// along the way. Build never errors: it is total.
func Build(s *schema.DomainSchema, rec *intent.Record) ([]Predicate, []Warning) {
	var preds []Predicate
	var warns []Warning

	// Rule 1: priceRange.
	if rec.PriceRange != nil {
		preds = append(preds, buildPriceRangePredicate(rec.PriceRange))
	}

	// Rule 2: priceComparison.
	if rec.PriceComparison != nil && rec.PriceComparison.Operator != "" {
		p, w := buildPriceComparisonPredicate(rec.PriceComparison)
		preds = append(preds, p)
		if w != nil {
			warns = append(warns, *w)
		}
	}

	// Rule 3: scalar/array preference fields, in the documented order.
	preds = append(preds, buildPreferencePredicates(s, rec)...)

	return preds, warns
}

func sanitizeNonNegative(v float64) float64 {
	return math.Max(0, v)
}

func buildPriceRangePredicate(pr *intent.PriceRange) Predicate {
	cond := priceCondition{}
	var min, max *float64
	if pr.Min != nil {
		v := sanitizeNonNegative(*pr.Min)
		min = &v
	}
	if pr.Max != nil {
		v := sanitizeNonNegative(*pr.Max)
		max = &v
	}

	priceClause := map[string]any{}
	if min != nil {
		priceClause[">="] = *min
	}
	if max != nil {
		priceClause["<="] = *max
	}
	if len(priceClause) > 0 {
		cond["price"] = priceClause
	}
	if pr.BillingPeriod != "" {
		cond["billingPeriod"] = pr.BillingPeriod
	}

	return Predicate{Field: "pricing", Operator: OpElemMatch, Value: cond}
}

// roundHalfAwayFromZero rounds to the nearest integer, breaking ties away
// from zero (spec §4.4's "around" rule).
func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return math.Floor(v + 0.5)
	}
	return math.Ceil(v - 0.5)
}

func buildPriceComparisonPredicate(pc *intent.PriceComparison) (Predicate, *Warning) {
	value := sanitizeNonNegative(pc.Value)
	cond := priceCondition{}

	switch pc.Operator {
	case intent.OpLessThan:
		cond["price"] = map[string]any{"<": value}
	case intent.OpLessThanOrEqual:
		cond["price"] = map[string]any{"<=": value}
	case intent.OpGreaterThan:
		cond["price"] = map[string]any{">": value}
	case intent.OpGreaterThanOrEqual:
		cond["price"] = map[string]any{">=": value}
	case intent.OpEqual:
		cond["price"] = value
	case intent.OpNotEqual:
		cond["price"] = map[string]any{"!=": value}
	case intent.OpAround:
		lo := roundHalfAwayFromZero(value * 0.9)
		hi := roundHalfAwayFromZero(value * 1.1)
		cond["price"] = map[string]any{">=": lo, "<=": hi}
	case intent.OpBetween:
		// Documented fallback per SPEC_FULL.md design note 1: treated as
		// [0, value], not as a true two-sided range. See §9 open question.
		cond["price"] = map[string]any{">=": float64(0), "<=": value}
	default:
		cond["price"] = value
		warn := &Warning{Message: "unknown priceComparison operator, falling back to equality"}
		if pc.BillingPeriod != "" {
			cond["billingPeriod"] = pc.BillingPeriod
		}
		return Predicate{Field: "pricing", Operator: OpElemMatch, Value: cond}, warn
	}

	if pc.BillingPeriod != "" {
		cond["billingPeriod"] = pc.BillingPeriod
	}
	return Predicate{Field: "pricing", Operator: OpElemMatch, Value: cond}, nil
}

// buildPreferencePredicates implements rule 3: category(ies), interface,
// deployment, functionality, pricingModel, in that fixed order.
func buildPreferencePredicates(s *schema.DomainSchema, rec *intent.Record) []Predicate {
	var preds []Predicate

	categories := rec.Categories
	if len(categories) == 0 && rec.Category != "" {
		categories = []string{rec.Category}
	}
	if len(categories) > 0 {
		preds = append(preds, Predicate{Field: s.FilterField("category"), Operator: OpIn, Value: categories})
	}

	addScalar := func(axis, value string) {
		if value == "" {
			return
		}
		preds = append(preds, Predicate{Field: s.FilterField(axis), Operator: OpIn, Value: []string{value}})
	}
	addScalar("interface", rec.Interface)
	addScalar("deployment", rec.Deployment)
	addScalar("functionality", rec.Functionality)
	addScalar("pricingModel", rec.PricingModel)

	return preds
}
