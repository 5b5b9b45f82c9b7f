// Package listing normalizes the harvested batch before extraction.
package listing

import "github.com/pegavagas/harvester/internal/source"

// Dedupe collapses repeated (source, external id) pairs. The last occurrence
// wins because adapters emit pages oldest-overlap first, so a later duplicate
// is the fresher snapshot. First-appearance order is preserved.
func Dedupe(in []source.RawListing) []source.RawListing {
	type key struct {
		source string
		id     string
	}
	index := make(map[key]int, len(in))
	out := make([]source.RawListing, 0, len(in))
	for _, l := range in {
		k := key{l.Source, l.ExternalID}
		if pos, seen := index[k]; seen {
			out[pos] = l
			continue
		}
		index[k] = len(out)
		out = append(out, l)
	}
	return out
}
