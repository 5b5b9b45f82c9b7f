// Package warehouse loads accepted postings into the star-schema warehouse:
// three dimensions and an append-only fact table.
package warehouse

import (
	"context"
	"errors"

	"github.com/pegavagas/harvester/internal/job"
)

// ErrStorageInvariant signals a broken storage assumption, such as a
// duplicate surrogate key under the single-writer discipline. It marks a bug,
// not a retryable condition.
var ErrStorageInvariant = errors.New("storage invariant violated")

// Loaded reports what one record load touched.
type Loaded struct {
	FactKey     int64
	NewCompany  bool
	NewLocation bool
	NewTime     bool
}

// Store persists accepted postings.
type Store interface {
	EnsureSchema(ctx context.Context) error
	LoadRecord(ctx context.Context, rec *job.Record, confidence float64) (Loaded, error)
	Close()
}

// NoOp satisfies Store without touching storage. Used for dry runs.
type NoOp struct{}

// EnsureSchema implements Store.
func (NoOp) EnsureSchema(context.Context) error { return nil }

// LoadRecord implements Store.
func (NoOp) LoadRecord(context.Context, *job.Record, float64) (Loaded, error) {
	return Loaded{}, nil
}

// Close implements Store.
func (NoOp) Close() {}
