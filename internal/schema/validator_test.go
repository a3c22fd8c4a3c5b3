package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultSchemaIsValid(t *testing.T) {
	s, err := LoadDefault()
	require.NoError(t, err)

	res := s.Validate()
	require.True(t, res.Valid, "errors: %v", res.Errors)
	require.Empty(t, res.Errors)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		schema  DomainSchema
		wantErr string
	}{
		{
			name:    "missing name",
			schema:  DomainSchema{Version: "1.0.0"},
			wantErr: "name: must not be empty",
		},
		{
			name: "duplicate intent field names",
			schema: DomainSchema{
				Name:    "x",
				Version: "1.0.0",
				IntentFields: []IntentField{
					{Name: "foo", Type: FieldString},
					{Name: "foo", Type: FieldString},
				},
			},
			wantErr: "duplicate name",
		},
		{
			name: "enum without enumValues",
			schema: DomainSchema{
				Name:    "x",
				Version: "1.0.0",
				IntentFields: []IntentField{
					{Name: "goal", Type: FieldEnum},
				},
			},
			wantErr: "enum field must declare non-empty enumValues",
		},
		{
			name: "non-positive vector dimension",
			schema: DomainSchema{
				Name:              "x",
				Version:           "1.0.0",
				VectorCollections: []VectorCollection{{Name: "tools", Dimension: 0}},
			},
			wantErr: "dimension must be a positive integer",
		},
		{
			name: "missing structured collection",
			schema: DomainSchema{
				Name:    "x",
				Version: "1.0.0",
			},
			wantErr: "structuredDatabase.collection: must not be empty",
		},
		{
			name: "unknown structured type",
			schema: DomainSchema{
				Name:               "x",
				Version:            "1.0.0",
				StructuredDatabase: StructuredDatabase{Collection: "c", Type: "graph"},
			},
			wantErr: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.schema.Validate()
			require.False(t, res.Valid)
			require.Contains(t, joinErrs(res.Errors), tt.wantErr)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	s := DomainSchema{
		Name:    "x",
		Version: "not-semver",
		StructuredDatabase: StructuredDatabase{
			Collection: "c",
		},
		Vocabularies: map[string][]string{
			"categories": {},
		},
	}
	res := s.Validate()
	require.True(t, res.Valid)
	require.NotEmpty(t, res.Warnings)
}

func TestMustValidate_PanicsOnInvalid(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
	}()
	(&DomainSchema{}).MustValidate()
}

func joinErrs(errs []string) string {
	out := ""
	for _, e := range errs {
		out += e + "\n"
	}
	return out
}
