package plan

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/aleutian-labs/toolscout/internal/pipelineerr"
	"github.com/aleutian-labs/toolscout/internal/schema"
)

// structValidate runs QueryPlan's struct tags as a second, declarative line
// of defense alongside the explicit rule checks below — the same
// belt-and-suspenders posture internal/schema's validator takes.
var structValidate = validator.New()

var validStrategies = map[Strategy]bool{
	StrategyHybrid: true, StrategyMultiVector: true, StrategyVectorOnly: true,
	StrategyMetadataOnly: true, StrategySemanticKG: true,
}

var validFusions = map[FusionMethod]bool{
	FusionRRF: true, FusionWeightedSum: true, FusionConcat: true, FusionNone: true,
}

var validOperators = map[string]bool{
	"in": true, "=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true, "elemMatch": true,
}

// Validate runs C6's structural checks against s, aggregating every
// violation it finds rather than stopping at the first one. A non-nil
// error is always plan-invalid and always fatal for the request.
func Validate(s *schema.DomainSchema, p *QueryPlan) error {
	var errs []*pipelineerr.Error

	if err := structValidate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fail(fmt.Sprintf("validator: %s", fe.Error())))
			}
		} else {
			errs = append(errs, fail(fmt.Sprintf("validator: %s", err.Error())))
		}
	}

	if !validStrategies[p.Strategy] {
		errs = append(errs, fail(fmt.Sprintf("unknown strategy %q", p.Strategy)))
	}
	if !validFusions[p.Fusion] {
		errs = append(errs, fail(fmt.Sprintf("unknown fusion %q", p.Fusion)))
	}
	if p.MaxRefinementCycles < 0 || p.MaxRefinementCycles > 5 {
		errs = append(errs, fail(fmt.Sprintf("maxRefinementCycles %d out of [0,5]", p.MaxRefinementCycles)))
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		errs = append(errs, fail(fmt.Sprintf("confidence %v out of [0,1]", p.Confidence)))
	}

	enabledCollections := map[string]bool{}
	for _, c := range s.VectorCollections {
		if c.Enabled {
			enabledCollections[c.Name] = true
		}
	}
	for _, vs := range p.VectorSources {
		if !enabledCollections[vs.Collection] {
			errs = append(errs, fail(fmt.Sprintf("vector source collection %q is not an enabled schema collection", vs.Collection)))
		}
		if vs.TopK < 1 || vs.TopK > 200 {
			errs = append(errs, fail(fmt.Sprintf("vector source %q topK %d out of [1,200]", vs.Collection, vs.TopK)))
		}
	}

	for _, ss := range p.StructuredSources {
		if ss.Limit < 1 || ss.Limit > 200 {
			errs = append(errs, fail(fmt.Sprintf("structured source %q limit %d out of [1,200]", ss.Source, ss.Limit)))
		}
		for _, f := range ss.Filters {
			if f.Field == "" {
				errs = append(errs, fail("filter missing field"))
				continue
			}
			if !s.IsFilterableField(f.Field) {
				errs = append(errs, fail(fmt.Sprintf("filter field %q is not in structuredDatabase.filterableFields", f.Field)))
			}
			if f.Operator == "" || !validOperators[string(f.Operator)] {
				errs = append(errs, fail(fmt.Sprintf("filter field %q has invalid operator %q", f.Field, f.Operator)))
			}
			if f.Value == nil {
				errs = append(errs, fail(fmt.Sprintf("filter field %q has undefined value", f.Field)))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &pipelineerr.AggregateError{Errors: toErrSlice(errs)}
}

func fail(msg string) *pipelineerr.Error {
	return pipelineerr.New("plan-validator", pipelineerr.KindPlanInvalid, msg, false)
}

func toErrSlice(errs []*pipelineerr.Error) []*pipelineerr.Error {
	return errs
}
