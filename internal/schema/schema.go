// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema defines the DomainSchema type describing a searchable
// tools/technology directory: the closed vocabularies a query's intent must
// respect, the intent fields an extractor can populate, the vector
// collections available for semantic search, and the structured database's
// filterable fields.
package schema

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// FieldType enumerates the intent field primitive types.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
	FieldEnum    FieldType = "enum"
)

// IntentField describes one field an Intent Extractor may populate.
// Object-typed fields carry Children recursively validated the same way.
type IntentField struct {
	Name        string        `yaml:"name" validate:"required"`
	Type        FieldType     `yaml:"type"`
	Required    bool          `yaml:"required"`
	Description string        `yaml:"description"`
	EnumValues  []string      `yaml:"enumValues,omitempty"`
	Children    []IntentField `yaml:"children,omitempty" validate:"dive"`
}

// VectorCollection describes one semantic-search collection available to
// the Query Planner.
type VectorCollection struct {
	Name           string `yaml:"name" validate:"required"`
	EmbeddingField string `yaml:"embeddingField" validate:"required"`
	Dimension      int    `yaml:"dimension" validate:"required,gt=0"`
	Enabled        bool   `yaml:"enabled"`
}

// StructuredDatabase describes the single structured store collection and
// which of its fields may be searched or filtered.
type StructuredDatabase struct {
	Collection       string   `yaml:"collection" validate:"required"`
	SearchFields     []string `yaml:"searchFields"`
	FilterableFields []string `yaml:"filterableFields"`
	Type             string   `yaml:"type"`
}

// DomainSchema is the single source of truth for what a query's structured
// intent may contain and where the pipeline is allowed to search.
type DomainSchema struct {
	Name       string              `yaml:"name" validate:"required"`
	Version    string              `yaml:"version" validate:"required"`
	Vocabularies map[string][]string `yaml:"vocabularies"`

	// FilterFieldMapping resolves an intent axis (e.g. "categories") to the
	// structured database field it filters on (e.g. "categories.primary").
	// See SPEC_FULL.md design note 3: this mapping, not a hardcoded guess,
	// is the single source of truth for filterable field aliasing.
	FilterFieldMapping map[string]string `yaml:"filterFieldMapping"`

	IntentFields       []IntentField      `yaml:"intentFields" validate:"dive"`
	VectorCollections  []VectorCollection `yaml:"vectorCollections" validate:"dive"`
	StructuredDatabase StructuredDatabase `yaml:"structuredDatabase"`
}

// Vocabulary returns the closed set of allowed values for a named
// vocabulary axis, and whether that axis exists at all.
func (s *DomainSchema) Vocabulary(axis string) ([]string, bool) {
	v, ok := s.Vocabularies[axis]
	return v, ok
}

// InVocabulary reports whether value is one of axis's allowed values.
func (s *DomainSchema) InVocabulary(axis, value string) bool {
	values, ok := s.Vocabulary(axis)
	if !ok {
		return false
	}
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// FilterField resolves an intent axis to its structured database field
// name, falling back to the axis name itself when no mapping is declared.
func (s *DomainSchema) FilterField(axis string) string {
	if s.FilterFieldMapping != nil {
		if f, ok := s.FilterFieldMapping[axis]; ok {
			return f
		}
	}
	return axis
}

// IsFilterableField reports whether field is declared in the structured
// database's filterableFields list.
func (s *DomainSchema) IsFilterableField(field string) bool {
	for _, f := range s.StructuredDatabase.FilterableFields {
		if f == field {
			return true
		}
	}
	return false
}

// EnabledVectorCollections returns only the collections marked Enabled,
// preserving declaration order.
func (s *DomainSchema) EnabledVectorCollections() []VectorCollection {
	out := make([]VectorCollection, 0, len(s.VectorCollections))
	for _, c := range s.VectorCollections {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// VectorCollectionNames returns the Enabled collection names only.
func (s *DomainSchema) VectorCollectionNames() []string {
	cs := s.EnabledVectorCollections()
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}

//go:embed schema_default.yaml
var defaultSchemaFS embed.FS

var (
	defaultOnce   sync.Once
	defaultSchema *DomainSchema
	defaultErr    error
)

// LoadDefault returns the embedded reference tools/technology directory
// schema, parsed once and cached for the life of the process.
func LoadDefault() (*DomainSchema, error) {
	defaultOnce.Do(func() {
		raw, err := defaultSchemaFS.ReadFile("schema_default.yaml")
		if err != nil {
			defaultErr = fmt.Errorf("reading embedded default schema: %w", err)
			return
		}
		var s DomainSchema
		if err := yaml.Unmarshal(raw, &s); err != nil {
			defaultErr = fmt.Errorf("parsing embedded default schema: %w", err)
			return
		}
		defaultSchema = &s
	})
	return defaultSchema, defaultErr
}

// LoadFromYAML parses a DomainSchema from raw YAML bytes, e.g. read from an
// operator-supplied TOOLSCOUT_SCHEMA_PATH override.
func LoadFromYAML(raw []byte) (*DomainSchema, error) {
	var s DomainSchema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing domain schema yaml: %w", err)
	}
	return &s, nil
}
