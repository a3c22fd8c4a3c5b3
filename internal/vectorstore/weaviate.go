package vectorstore

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// WeaviateStore is the concrete VectorStore backed by a Weaviate cluster.
// Grounded on the teacher's declared dependency on weaviate-go-client/v5
// (present in go.mod, operational via its `weaviate` CLI subcommands) even
// though no Go usage site existed in the retrieved teacher source — this
// adapter is written from the client's published GraphQL Get/NearVector
// builder API, not adapted from a teacher file (see DESIGN.md).
type WeaviateStore struct {
	client *weaviate.Client
}

func NewWeaviateStore(host, scheme string) *WeaviateStore {
	return &WeaviateStore{client: weaviate.New(weaviate.Config{Host: host, Scheme: scheme})}
}

func (s *WeaviateStore) Search(ctx context.Context, collection string, vector []float32, topK int, where []WhereClause) ([]Hit, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
	}

	req := s.client.GraphQL().Get().
		WithClassName(collection).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK)

	if len(where) > 0 {
		req = req.WithWhere(buildWhereFilter(where))
	}

	resp, err := req.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search on %q: %w", collection, err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search on %q returned GraphQL errors: %v", collection, resp.Errors)
	}

	return parseGetResponse(resp, collection)
}

func buildWhereFilter(clauses []WhereClause) *filters.WhereBuilder {
	var builders []*filters.WhereBuilder
	for _, c := range clauses {
		wb := filters.Where().WithPath([]string{c.Field})
		switch c.Operator {
		case "=":
			wb = wb.WithOperator(filters.Equal).WithValueText(fmt.Sprintf("%v", c.Value))
		case "!=":
			wb = wb.WithOperator(filters.NotEqual).WithValueText(fmt.Sprintf("%v", c.Value))
		case "in":
			wb = wb.WithOperator(filters.ContainsAny).WithValueText(fmt.Sprintf("%v", c.Value))
		default:
			wb = wb.WithOperator(filters.Equal).WithValueText(fmt.Sprintf("%v", c.Value))
		}
		builders = append(builders, wb)
	}
	if len(builders) == 1 {
		return builders[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(builders)
}

// parseGetResponse extracts the generic GraphQL.Get response shape into
// Hits. The exact payload type returned by the client is a
// map[string]models.JSONObject keyed by class name; we navigate it
// defensively since schema-driven class payloads are caller-defined.
func parseGetResponse(resp *graphql.GraphQLResponse, collection string) ([]Hit, error) {
	data, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected GraphQL response shape for %q", collection)
	}
	rows, ok := data[collection].([]interface{})
	if !ok {
		return nil, nil
	}

	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		row, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		additional, _ := row["_additional"].(map[string]interface{})
		id, _ := additional["id"].(string)
		certainty, _ := additional["certainty"].(float64)

		// Certainty is already in [0,1]; convert to a [-1,1] cosine-style
		// value so the Executor's single Normalize((s+1)/2) path handles
		// every vector source uniformly.
		cosine := certainty*2 - 1

		payload := make(map[string]any, len(row))
		for k, v := range row {
			if k == "_additional" {
				continue
			}
			payload[k] = v
		}
		hits = append(hits, Hit{ID: id, Score: cosine, Payload: payload})
	}
	return hits, nil
}
