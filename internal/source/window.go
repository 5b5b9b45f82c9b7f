package source

import "time"

// maxStalePages bounds how many pages an adapter keeps fetching after the
// first listing older than the incremental window. Platforms order listings
// only approximately by date, so a short overshoot catches stragglers.
const maxStalePages = 2

// window tracks pagination state for one fetch: which external IDs have been
// seen (loop detection) and how far past the incremental cutoff the adapter
// has paged.
type window struct {
	since      *time.Time
	limit      int
	seen       map[string]struct{}
	staleSeen  bool
	stalePages int
	collected  []RawListing
}

func newWindow(q Query) *window {
	return &window{
		since: q.Since,
		limit: q.Limit,
		seen:  make(map[string]struct{}),
	}
}

// Observe folds one page into the window and reports whether pagination
// should stop.
func (w *window) Observe(page []RawListing) (stop bool) {
	if len(page) == 0 {
		return true
	}

	fresh := 0
	pageHasStale := false
	for _, l := range page {
		if _, dup := w.seen[l.ExternalID]; dup {
			continue
		}
		w.seen[l.ExternalID] = struct{}{}
		fresh++

		if w.since != nil && l.PublishedAt != nil && l.PublishedAt.Before(*w.since) {
			pageHasStale = true
			continue
		}
		w.collected = append(w.collected, l)
		if w.limit > 0 && len(w.collected) >= w.limit {
			return true
		}
	}

	// A page of only repeated IDs means the platform is looping.
	if fresh == 0 {
		return true
	}

	if pageHasStale {
		w.staleSeen = true
	}
	if w.staleSeen {
		w.stalePages++
		if w.stalePages > maxStalePages {
			return true
		}
	}
	return false
}

// Listings returns everything collected inside the window so far.
func (w *window) Listings() []RawListing {
	return w.collected
}
