// Package archive keeps the harvested raw listings as JSON blobs, the
// unprocessed layer the pipeline can be replayed from.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pegavagas/harvester/internal/source"
)

// BlobStore writes one blob and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Store archives raw listings through a blob store.
type Store struct {
	blobs BlobStore
}

// New builds an archive over the given blob store.
func New(blobs BlobStore) *Store {
	return &Store{blobs: blobs}
}

// Put archives one listing under platform/date/id.json, keyed by publication
// date when known and collection date otherwise.
func (s *Store) Put(ctx context.Context, l source.RawListing, fallbackDate string) (string, error) {
	payload, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode raw listing: %w", err)
	}
	date := fallbackDate
	if l.PublishedAt != nil {
		date = l.PublishedAt.Format("2006-01-02")
	}
	path := fmt.Sprintf("%s/%s/%s.json", l.Source, date, sanitizeID(l.ExternalID))
	uri, err := s.blobs.PutObject(ctx, path, "application/json", strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("archive listing %s: %w", path, err)
	}
	return uri, nil
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

// NoOp satisfies BlobStore without storing anything.
type NoOp struct{}

// PutObject implements BlobStore.
func (NoOp) PutObject(_ context.Context, path string, _ string, _ io.Reader) (string, error) {
	return "noop://" + path, nil
}
