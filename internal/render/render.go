// Package render provides browser rendering for listing pages that only
// materialize their content through JavaScript.
package render

import (
	"context"
	"errors"
)

// ErrDisabled indicates rendering has been disabled via configuration.
var ErrDisabled = errors.New("renderer disabled")

// Renderer fetches a page with JavaScript executed and returns the resulting
// DOM as HTML.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
	Close(ctx context.Context) error
}

// NoOp is a Renderer that always reports rendering as disabled.
type NoOp struct{}

// Render implements Renderer.
func (NoOp) Render(context.Context, string) (string, error) { return "", ErrDisabled }

// Close implements Renderer.
func (NoOp) Close(context.Context) error { return nil }
