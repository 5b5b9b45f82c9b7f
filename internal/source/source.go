// Package source defines the listing adapters that harvest raw job postings
// from ATS APIs and listing pages, plus the pagination window and retry
// behavior they share.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrTransient marks failures worth retrying: network errors, 5xx responses,
// rate limiting.
var ErrTransient = errors.New("transient source error")

// ErrMalformed marks responses the adapter could not decode. Not retried.
var ErrMalformed = errors.New("malformed source response")

// RawListing is a job posting as harvested, before cleaning or extraction.
type RawListing struct {
	Source       string            `json:"source"`
	ExternalID   string            `json:"external_id"`
	Title        string            `json:"title"`
	Company      string            `json:"company"`
	LocationText string            `json:"location_text,omitempty"`
	Body         string            `json:"body,omitempty"`
	URL          string            `json:"url,omitempty"`
	PublishedAt  *time.Time        `json:"published_at,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Query scopes one harvest pass.
type Query struct {
	// Term is the search term, for adapters that support server-side search.
	Term string
	// Limit caps the number of listings returned. Zero means no cap.
	Limit int
	// Since bounds the incremental window. Listings older than Since are
	// dropped and pagination stops shortly after reaching them.
	Since *time.Time
}

// Adapter harvests listings from one platform. Implementations paginate
// internally and return what they collected; a partial slice alongside a nil
// error is valid when later pages failed non-fatally.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]RawListing, error)
}

// Registry holds the configured adapters by name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown source adapter %q", name)
	}
	return a, nil
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
