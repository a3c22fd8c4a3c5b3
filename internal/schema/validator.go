package schema

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ValidationResult mirrors the C1 "validate schema" operation contract:
// a boolean verdict plus two independent lists of well-defined-kind issues.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+`)

// structValidate runs the struct-tag pass (`validate:"required"` etc.) as a
// second, declarative line of defense alongside Validate's explicit rule
// checks below. One package-level validator, reused across calls, matching
// the library's own recommendation to cache it rather than construct one
// per validation.
var structValidate = validator.New()

// Validate runs the full set of C1 structural checks and returns every
// finding at once; it never stops at the first error.
func (s *DomainSchema) Validate() ValidationResult {
	var errs, warns []string

	if err := structValidate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("validator: %s", fe.Error()))
			}
		} else {
			errs = append(errs, fmt.Sprintf("validator: %s", err.Error()))
		}
	}

	if s.Name == "" {
		errs = append(errs, "name: must not be empty")
	}
	if !semverPattern.MatchString(s.Version) {
		warns = append(warns, fmt.Sprintf("version: %q is not semver-like", s.Version))
	}

	seenFieldNames := map[string]bool{}
	for _, f := range s.IntentFields {
		validateIntentField(f, "", seenFieldNames, &errs, &warns)
	}
	for _, required := range []string{"primaryGoal", "functionality", "confidence"} {
		if !seenFieldNames[required] {
			warns = append(warns, fmt.Sprintf("intentFields: recommended field %q is missing", required))
		}
	}

	for axis, values := range s.Vocabularies {
		if len(values) == 0 {
			warns = append(warns, fmt.Sprintf("vocabularies[%s]: empty vocabulary", axis))
			continue
		}
		seen := map[string]bool{}
		for _, v := range values {
			if v == "" {
				errs = append(errs, fmt.Sprintf("vocabularies[%s]: empty entry", axis))
				continue
			}
			if seen[v] {
				warns = append(warns, fmt.Sprintf("vocabularies[%s]: duplicate entry %q", axis, v))
			}
			seen[v] = true
		}
	}

	seenCollections := map[string]bool{}
	anyEnabled := false
	for _, c := range s.VectorCollections {
		if c.Name == "" {
			errs = append(errs, "vectorCollections: entry missing name")
		} else if seenCollections[c.Name] {
			errs = append(errs, fmt.Sprintf("vectorCollections[%s]: duplicate name", c.Name))
		}
		seenCollections[c.Name] = true
		if c.Dimension <= 0 {
			errs = append(errs, fmt.Sprintf("vectorCollections[%s]: dimension must be a positive integer, got %d", c.Name, c.Dimension))
		}
		if c.Enabled {
			anyEnabled = true
		}
	}
	if !anyEnabled {
		warns = append(warns, "vectorCollections: no collection is enabled")
	}

	if s.StructuredDatabase.Collection == "" {
		errs = append(errs, "structuredDatabase.collection: must not be empty")
	}
	validTypes := map[string]bool{"document": true, "relational": true, "key-value": true}
	if s.StructuredDatabase.Type != "" && !validTypes[s.StructuredDatabase.Type] {
		errs = append(errs, fmt.Sprintf("structuredDatabase.type: unknown type %q", s.StructuredDatabase.Type))
	}

	return ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warns,
	}
}

func validateIntentField(f IntentField, prefix string, seen map[string]bool, errs, warns *[]string) {
	path := f.Name
	if prefix != "" {
		path = prefix + "." + f.Name
	}

	if f.Name == "" {
		*errs = append(*errs, fmt.Sprintf("intentFields[%s]: missing name", prefix))
		return
	}
	if seen[path] {
		*errs = append(*errs, fmt.Sprintf("intentFields[%s]: duplicate name", path))
	}
	seen[path] = true

	if f.Type == FieldEnum && len(f.EnumValues) == 0 {
		*errs = append(*errs, fmt.Sprintf("intentFields[%s]: enum field must declare non-empty enumValues", path))
	}

	for _, child := range f.Children {
		validateIntentField(child, path, seen, errs, warns)
	}
}

// MustValidate panics with an aggregated message if the schema is invalid.
// Called once at process startup only — schema invalidity is always a
// fatal, not a recoverable, condition per the error handling design.
func (s *DomainSchema) MustValidate() {
	res := s.Validate()
	if !res.Valid {
		panic(fmt.Sprintf("domain schema %q is invalid: %v", s.Name, res.Errors))
	}
}
