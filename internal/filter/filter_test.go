package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/schema"
)

func testSchema(t *testing.T) *schema.DomainSchema {
	t.Helper()
	s, err := schema.LoadDefault()
	require.NoError(t, err)
	return s
}

func ptr(v float64) *float64 { return &v }

func TestBuild_S1_FreeCLITools(t *testing.T) {
	s := testSchema(t)
	rec := &intent.Record{PrimaryGoal: "find", PricingModel: "Free", Interface: "CLI", Confidence: 0.9}

	preds, warns := Build(s, rec)
	require.Empty(t, warns)
	require.Len(t, preds, 2)
	require.Equal(t, Predicate{Field: "interface", Operator: OpIn, Value: []string{"CLI"}}, preds[0])
	require.Equal(t, Predicate{Field: "pricingModel", Operator: OpIn, Value: []string{"Free"}}, preds[1])
}

func TestBuild_S2_UnderFiftyMonthly(t *testing.T) {
	s := testSchema(t)
	rec := &intent.Record{
		PrimaryGoal: "find",
		PriceComparison: &intent.PriceComparison{
			Operator:      intent.OpLessThan,
			Value:         50,
			BillingPeriod: "Monthly",
		},
	}

	preds, warns := Build(s, rec)
	require.Empty(t, warns)
	require.Len(t, preds, 1)
	require.Equal(t, Operator(OpElemMatch), preds[0].Operator)
	val := preds[0].Value.(priceCondition)
	require.Equal(t, "Monthly", val["billingPeriod"])
	require.Equal(t, map[string]any{"<": 50.0}, val["price"])
}

func TestBuild_S3_RangeAndCategory(t *testing.T) {
	s := testSchema(t)
	rec := &intent.Record{
		PrimaryGoal: "find",
		Category:    "Code Editor",
		PriceRange: &intent.PriceRange{
			Min:           ptr(20),
			Max:           ptr(100),
			BillingPeriod: "Monthly",
		},
	}

	preds, warns := Build(s, rec)
	require.Empty(t, warns)
	require.Len(t, preds, 2)

	rangePred := preds[0]
	require.Equal(t, "pricing", rangePred.Field)
	require.Equal(t, OpElemMatch, rangePred.Operator)
	cond := rangePred.Value.(priceCondition)
	require.Equal(t, "Monthly", cond["billingPeriod"])
	require.Equal(t, map[string]any{">=": 20.0, "<=": 100.0}, cond["price"])

	catPred := preds[1]
	require.Equal(t, "categories.primary", catPred.Field)
	require.Equal(t, OpIn, catPred.Operator)
	require.Equal(t, []string{"Code Editor"}, catPred.Value)
}

func TestBuild_S5_Around30(t *testing.T) {
	s := testSchema(t)
	rec := &intent.Record{
		PrimaryGoal: "find",
		PriceComparison: &intent.PriceComparison{
			Operator:      intent.OpAround,
			Value:         30,
			BillingPeriod: "Monthly",
		},
	}

	preds, _ := Build(s, rec)
	require.Len(t, preds, 1)
	cond := preds[0].Value.(priceCondition)
	require.Equal(t, map[string]any{">=": 27.0, "<=": 33.0}, cond["price"])
}

func TestBuild_Between_DocumentedFallback(t *testing.T) {
	s := testSchema(t)
	rec := &intent.Record{
		PrimaryGoal: "find",
		PriceComparison: &intent.PriceComparison{
			Operator: intent.OpBetween,
			Value:    80,
		},
	}

	preds, _ := Build(s, rec)
	cond := preds[0].Value.(priceCondition)
	require.Equal(t, map[string]any{">=": 0.0, "<=": 80.0}, cond["price"])
}

func TestBuild_UnknownOperator_EmitsWarningAndEquality(t *testing.T) {
	s := testSchema(t)
	rec := &intent.Record{
		PrimaryGoal: "find",
		PriceComparison: &intent.PriceComparison{
			Operator: intent.ComparisonOperator("weird"),
			Value:    10,
		},
	}

	preds, warns := Build(s, rec)
	require.Len(t, warns, 1)
	cond := preds[0].Value.(priceCondition)
	require.Equal(t, 10.0, cond["price"])
}

func TestBuild_EmptyArraysYieldNoPredicate(t *testing.T) {
	s := testSchema(t)
	rec := &intent.Record{PrimaryGoal: "find"}
	preds, warns := Build(s, rec)
	require.Empty(t, preds)
	require.Empty(t, warns)
}

func TestBuild_Deterministic(t *testing.T) {
	s := testSchema(t)
	rec := &intent.Record{PrimaryGoal: "find", PricingModel: "Free", Interface: "CLI"}

	p1, _ := Build(s, rec)
	p2, _ := Build(s, rec)
	require.Equal(t, p1, p2)
}
