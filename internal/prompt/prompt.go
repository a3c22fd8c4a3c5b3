// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt generates the intent-extraction and query-planning system
// prompts from a DomainSchema by deterministic text/template substitution.
// No network calls, no randomness: the same schema always yields the same
// prompt strings (C2's determinism property, SPEC_FULL.md §8 property 1).
package prompt

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/aleutian-labs/toolscout/internal/schema"
)

// Builder renders the two system prompts C3 and C5 depend on.
//
// Thread Safety: Builder is immutable after construction and safe for
// concurrent use; *template.Template.Execute is safe for concurrent calls.
type Builder struct {
	schema         *schema.DomainSchema
	intentTemplate *template.Template
	planTemplate   *template.Template
}

var funcMap = template.FuncMap{
	"join":       strings.Join,
	"quoteList":  quoteList,
	"upperFirst": upperFirst,
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

const intentPromptTemplate = `You are the intent extractor for {{.Schema.Name}} (schema v{{.Schema.Version}}).

Extract a structured intent record from the user's query. Populate only the
following fields, using EXACT values from the vocabularies listed below —
never invent a synonym, never change case, never combine values.

# Intent fields
{{range .Fields}}- {{.Name}} ({{.Type}}{{if .Required}}, required{{end}}): {{.Description}}{{if .EnumValues}} Allowed values: {{quoteList .EnumValues}}.{{end}}
{{end}}
# Controlled vocabularies (EXACT values only)
{{range $axis, $values := .Vocabularies}}- {{$axis}}: {{quoteList $values}}
{{end}}
# Price extraction rules
- priceRange captures an explicit numeric range ("between $20 and $100").
- priceComparison captures a single-operator comparison ("under $50", "around $30").
- Operators: less_than, less_than_or_equal, greater_than, greater_than_or_equal, equal, not_equal, around, between.
- Never fabricate a price the query does not state.

Respond with a single JSON object matching the intent fields above. Do not
include any prose before or after the JSON.
`

const planPromptTemplate = `You are the query planner for {{.Schema.Name}} (schema v{{.Schema.Version}}).

# Vector collections
{{range .Collections}}- {{.Name}} (embeddingField={{.EmbeddingField}}, dimension={{.Dimension}}{{if not .Enabled}}, DISABLED{{end}})
{{end}}
# Structured store
- collection: {{.Schema.StructuredDatabase.Collection}}
- filterable fields (EXACT values only): {{join .Schema.StructuredDatabase.FilterableFields ", "}}

# Strategy weighting hints
- Identity-focused queries (a named reference tool): primary collection "tools", supportive collection at reduced weight.
- Capability-focused queries: primary collection "functionality".
- Use-case-focused queries: primary collection "usecases".

# Filter contract
- structuredSources[].filters MUST be a JSON array of {field, operator, value} objects, never an object/map.
- Every field value bound to a vocabulary axis must be an EXACT vocabulary member.

# Fusion methods
- rrf: reciprocal rank fusion across 3+ ranked lists.
- weighted_sum: weighted blend of 2 ranked lists.
- concat: simple concatenation, used for a single vector source.
- none: a single source's results unchanged.

Respond with a single JSON object matching the QueryPlan shape. Do not
include any prose before or after the JSON.
`

type intentPromptData struct {
	Schema       *schema.DomainSchema
	Fields       []schema.IntentField
	Vocabularies map[string][]string
}

type planPromptData struct {
	Schema      *schema.DomainSchema
	Collections []schema.VectorCollection
}

// NewBuilder parses both templates once against s and returns a Builder
// ready to render deterministic prompts.
func NewBuilder(s *schema.DomainSchema) (*Builder, error) {
	it, err := template.New("intent").Funcs(funcMap).Parse(intentPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing intent prompt template: %w", err)
	}
	pt, err := template.New("plan").Funcs(funcMap).Parse(planPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing plan prompt template: %w", err)
	}
	return &Builder{schema: s, intentTemplate: it, planTemplate: pt}, nil
}

// BuildIntentSystemPrompt renders the C3 system prompt.
func (b *Builder) BuildIntentSystemPrompt() (string, error) {
	axes := make([]string, 0, len(b.schema.Vocabularies))
	for axis := range b.schema.Vocabularies {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	ordered := make(map[string][]string, len(axes))
	for _, a := range axes {
		ordered[a] = b.schema.Vocabularies[a]
	}

	var buf bytes.Buffer
	if err := b.intentTemplate.Execute(&buf, intentPromptData{
		Schema:       b.schema,
		Fields:       b.schema.IntentFields,
		Vocabularies: ordered,
	}); err != nil {
		return "", fmt.Errorf("rendering intent prompt: %w", err)
	}
	return buf.String(), nil
}

// BuildPlanSystemPrompt renders the C5 system prompt.
func (b *Builder) BuildPlanSystemPrompt() (string, error) {
	var buf bytes.Buffer
	if err := b.planTemplate.Execute(&buf, planPromptData{
		Schema:      b.schema,
		Collections: b.schema.VectorCollections,
	}); err != nil {
		return "", fmt.Errorf("rendering plan prompt: %w", err)
	}
	return buf.String(), nil
}

// BuildUserPrompt wraps a raw query as the user turn, matching the
// teacher's BuildUserPrompt convention of a thin, literal pass-through.
func (b *Builder) BuildUserPrompt(query string) string {
	return query
}
