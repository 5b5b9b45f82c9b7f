package source

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func listing(id string, published *time.Time) RawListing {
	return RawListing{
		Source:      "test",
		ExternalID:  id,
		Title:       "Data Engineer " + id,
		Company:     "Acme",
		PublishedAt: published,
	}
}

func page(ids ...string) []RawListing {
	out := make([]RawListing, 0, len(ids))
	for _, id := range ids {
		out = append(out, listing(id, nil))
	}
	return out
}

func TestWindowStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	w := newWindow(Query{})
	assert.True(t, w.Observe(nil))
	assert.Empty(t, w.Listings())
}

func TestWindowStopsOnRepeatedPage(t *testing.T) {
	t.Parallel()

	w := newWindow(Query{})
	assert.False(t, w.Observe(page("1", "2")))
	// The platform served the same page again.
	assert.True(t, w.Observe(page("1", "2")))
	assert.Len(t, w.Listings(), 2)
}

func TestWindowSkipsDuplicateIDs(t *testing.T) {
	t.Parallel()

	w := newWindow(Query{})
	assert.False(t, w.Observe(page("1", "2")))
	assert.False(t, w.Observe(page("2", "3")))
	assert.Len(t, w.Listings(), 3)
}

func TestWindowStopsAtLimit(t *testing.T) {
	t.Parallel()

	w := newWindow(Query{Limit: 3})
	assert.False(t, w.Observe(page("1", "2")))
	assert.True(t, w.Observe(page("3", "4")))
	assert.Len(t, w.Listings(), 3)
}

func TestWindowExcludesStaleListings(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fresh := since.Add(24 * time.Hour)
	stale := since.Add(-24 * time.Hour)

	w := newWindow(Query{Since: &since})
	w.Observe([]RawListing{listing("1", &fresh), listing("2", &stale)})

	got := w.Listings()
	assert.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ExternalID)
}

func TestWindowStopsAfterStaleOvershoot(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stale := since.Add(-24 * time.Hour)

	w := newWindow(Query{Since: &since})
	next := 0
	stalePage := func() []RawListing {
		next++
		return []RawListing{listing(fmt.Sprintf("s%d", next), &stale)}
	}

	// Stragglers are tolerated for a couple of pages, then pagination stops.
	assert.False(t, w.Observe(stalePage()))
	assert.False(t, w.Observe(stalePage()))
	assert.True(t, w.Observe(stalePage()))
	assert.Empty(t, w.Listings())
}

func TestWindowUndatedListingsSurviveCutoff(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w := newWindow(Query{Since: &since})
	w.Observe(page("1"))

	assert.Len(t, w.Listings(), 1)
}
