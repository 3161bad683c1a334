// Package store defines the read-only document store capability and its
// MongoDB implementation.
package store

import (
	"context"
)

// Document is one store document decoded into its JSON shape.
type Document = map[string]any

// QueryOptions narrows a Query call. A zero Limit means the store-side
// default; Filter, Projection and Sort may be nil.
type QueryOptions struct {
	Filter     map[string]any
	Projection map[string]any
	Sort       map[string]any
	Limit      int64
}

// Store is the document store capability consumed by the tool layer.
// All operations are reads; the agent never mutates data.
type Store interface {
	// Query returns documents from the named collection honoring the options.
	Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error)

	// Count returns the number of documents matching the filter.
	Count(ctx context.Context, collection string, filter map[string]any) (int64, error)

	// Aggregate runs the given pipeline and returns the result documents.
	Aggregate(ctx context.Context, collection string, stages []map[string]any) ([]Document, error)

	// Close releases the underlying client.
	Close(ctx context.Context) error
}
