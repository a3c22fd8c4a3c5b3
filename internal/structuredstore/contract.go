// Package structuredstore defines the Structured Store collaborator
// contract (SPEC_FULL.md §6) and a concrete MongoDB-backed implementation.
package structuredstore

import (
	"context"

	"github.com/aleutian-labs/toolscout/internal/filter"
)

// Row is one document the structured store returns.
type Row struct {
	ID      string
	Payload map[string]any
}

// StructuredStore is the contract the Executor's structured phase depends
// on: a single query taking the closed operator set C4 emits.
//
// Thread Safety: implementations must be safe for concurrent use.
type StructuredStore interface {
	Query(ctx context.Context, collection string, filters []filter.Predicate, limit int) ([]Row, error)
}
