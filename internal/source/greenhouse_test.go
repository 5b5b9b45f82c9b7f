package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func greenhouseBoardJSON(jobs ...string) string {
	return `{"jobs":[` + strings.Join(jobs, ",") + `]}`
}

func greenhouseJobJSON(id int, title string) string {
	return fmt.Sprintf(`{
		"id": %d,
		"title": %q,
		"absolute_url": "https://boards.greenhouse.io/acme/jobs/%d",
		"updated_at": "2026-03-05T10:00:00Z",
		"content": "Remote data role",
		"location": {"name": "Remote - Brazil"}
	}`, id, title, id)
}

func TestGreenhouseFetchFiltersByTerm(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/boards/acme/jobs", r.URL.Path)
		fmt.Fprint(w, greenhouseBoardJSON(
			greenhouseJobJSON(1, "Data Engineer"),
			greenhouseJobJSON(2, "Account Executive"),
		))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(gupyTestConfig(), srv.URL, []string{"acme"}, zap.NewNop())
	got, err := a.Fetch(context.Background(), Query{Term: "data"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "greenhouse", got[0].Source)
	assert.Equal(t, "1", got[0].ExternalID)
	assert.Equal(t, "acme", got[0].Company)
	assert.Equal(t, "Remote - Brazil", got[0].LocationText)
	assert.Equal(t, "acme", got[0].Metadata["board"])
	require.NotNil(t, got[0].PublishedAt)
}

func TestGreenhouseFetchSpansEmptyBoards(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/empty/") {
			fmt.Fprint(w, greenhouseBoardJSON())
			return
		}
		fmt.Fprint(w, greenhouseBoardJSON(greenhouseJobJSON(7, "Data Engineer")))
	}))
	defer srv.Close()

	// An empty first board must not end the company loop.
	a := NewGreenhouseAdapter(gupyTestConfig(), srv.URL, []string{"empty", "acme"}, zap.NewNop())
	got, err := a.Fetch(context.Background(), Query{Term: "data"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "7", got[0].ExternalID)
}

func TestGreenhouseFetchBoardError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/gone/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, greenhouseBoardJSON(greenhouseJobJSON(7, "Data Engineer")))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(gupyTestConfig(), srv.URL, []string{"acme", "gone"}, zap.NewNop())
	got, err := a.Fetch(context.Background(), Query{Term: "data"})

	require.Error(t, err)
	assert.Len(t, got, 1, "earlier boards are kept")
}
