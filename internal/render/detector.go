package render

import (
	"bytes"
	"strings"
)

// Detector decides whether a statically fetched page needs a browser render
// before it is worth parsing.
type Detector struct {
	MinHTMLBytes int
	Keywords     []string
}

// NewDetector creates a detector. Zero threshold falls back to a default.
func NewDetector(minHTMLBytes int, keywords []string) *Detector {
	if minHTMLBytes == 0 {
		minHTMLBytes = 2048
	}
	if len(keywords) == 0 {
		keywords = []string{"__NEXT_DATA__", "data-reactroot", "ng-app", "window.__APOLLO_STATE__"}
	}
	return &Detector{MinHTMLBytes: minHTMLBytes, Keywords: keywords}
}

// NeedsRender reports whether the static body looks like an application shell
// rather than server-rendered content.
func (d *Detector) NeedsRender(body []byte) bool {
	if len(body) == 0 {
		return true
	}
	if len(body) < d.MinHTMLBytes && scriptDensityHigh(body) {
		return true
	}
	for _, kw := range d.Keywords {
		if bytes.Contains(body, []byte(kw)) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// Script tag never closes; count the rest.
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= 25
}
