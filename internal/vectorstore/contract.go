// Package vectorstore defines the Vector Store collaborator contract
// (SPEC_FULL.md §6) and a concrete Weaviate-backed implementation.
package vectorstore

import "context"

// Hit is one ranked result from a vector search.
type Hit struct {
	ID      string
	Score   float64 // raw similarity, NOT yet normalized to [0,1]
	Payload map[string]any
}

// WhereClause is a minimal scalar filter a vector store may apply
// alongside a nearVector search (see DESIGN.md on why elemMatch-style
// priced-tier filtering is left to the structured store).
type WhereClause struct {
	Field    string
	Operator string // "=", "!=", "in"
	Value    any
}

// VectorStore is the contract the Executor's vector phase depends on.
//
// Thread Safety: implementations must be safe for concurrent use; the
// Executor issues one call per vector source concurrently.
type VectorStore interface {
	Search(ctx context.Context, collection string, vector []float32, topK int, where []WhereClause) ([]Hit, error)
}
