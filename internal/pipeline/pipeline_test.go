package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/archive"
	"github.com/pegavagas/harvester/internal/archive/memory"
	"github.com/pegavagas/harvester/internal/content"
	"github.com/pegavagas/harvester/internal/cursor"
	"github.com/pegavagas/harvester/internal/gate"
	"github.com/pegavagas/harvester/internal/job"
	"github.com/pegavagas/harvester/internal/ledger"
	"github.com/pegavagas/harvester/internal/metrics"
	"github.com/pegavagas/harvester/internal/source"
	"github.com/pegavagas/harvester/internal/warehouse"
)

const (
	remoteBody = "Vaga 100% remoto de qualquer lugar do Brasil. Stack: Python, SQL e Airflow."
	hybridBody = "Vaga de engenheiro de dados, modelo híbrido em São Paulo. Python e SQL."
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeAdapter struct {
	name     string
	listings []source.RawListing
	err      error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(context.Context, source.Query) ([]source.RawListing, error) {
	return f.listings, f.err
}

// fakeExtractor produces one valid record per listing and fails on the IDs it
// is told to fail on.
type fakeExtractor struct {
	failIDs map[string]struct{}
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, raw source.RawListing, _ string) (*job.ExtractionResult, error) {
	f.calls++
	if _, fail := f.failIDs[raw.ExternalID]; fail {
		return nil, errors.New("model output never validated")
	}
	return &job.ExtractionResult{
		Job: job.Record{
			TitleOriginal: "Engenheiro de Dados",
			Company:       "Acme " + raw.ExternalID,
			WorkMode:      job.WorkModeRemote,
			SourceURL:     raw.URL,
			Platform:      raw.Source,
			CollectedAt:   time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC),
		},
		Confidence: 0.9,
	}, nil
}

type fakeStore struct {
	loaded    []job.Record
	companies map[string]struct{}
	loadErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{companies: make(map[string]struct{})}
}

func (f *fakeStore) EnsureSchema(context.Context) error { return nil }

func (f *fakeStore) LoadRecord(_ context.Context, rec *job.Record, _ float64) (warehouse.Loaded, error) {
	if f.loadErr != nil {
		return warehouse.Loaded{}, f.loadErr
	}
	_, known := f.companies[rec.Company]
	f.companies[rec.Company] = struct{}{}
	f.loaded = append(f.loaded, *rec)
	return warehouse.Loaded{
		FactKey:     int64(len(f.loaded)),
		NewCompany:  !known,
		NewLocation: len(f.loaded) == 1,
	}, nil
}

func (f *fakeStore) Close() {}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, rec *job.Record) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, rec.Company)
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

type testDeps struct {
	extractor  *fakeExtractor
	store      *fakeStore
	notifier   *fakeNotifier
	ledger     *ledger.File
	cursorPath string
	blobs      *memory.BlobStore
	now        time.Time
}

func newTestPipeline(t *testing.T, adapters []source.Adapter) (*Pipeline, *testDeps) {
	t.Helper()
	metrics.Init()

	dir := t.TempDir()
	led, err := ledger.NewFile(filepath.Join(dir, "delivered.json"))
	require.NoError(t, err)

	cursorPath := filepath.Join(dir, "cursor.json")
	cur, err := cursor.NewStore(cursorPath, 72*time.Hour)
	require.NoError(t, err)

	deps := &testDeps{
		extractor:  &fakeExtractor{failIDs: make(map[string]struct{})},
		store:      newFakeStore(),
		notifier:   &fakeNotifier{},
		ledger:     led,
		cursorPath: cursorPath,
		blobs:      memory.NewBlobStore(),
		now:        time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC),
	}
	g := gate.New(gate.Config{
		TargetRoles:  []string{"Data Engineer", "Data Scientist", "Data Analyst"},
		MinScore:     50,
		StrictRemote: true,
	})
	p := New(
		adapters,
		content.NewCleaner(0),
		deps.extractor,
		g,
		deps.store,
		led,
		cur,
		archive.New(deps.blobs),
		deps.notifier,
		fixedClock{deps.now},
		zap.NewNop(),
	)
	return p, deps
}

// harvestBatch builds the canonical scenario: 12 raw listings where one is an
// in-run duplicate, one never extracts, and two are hybrid postings.
func harvestBatch() []source.RawListing {
	listings := make([]source.RawListing, 0, 12)
	for i := 1; i <= 11; i++ {
		body := remoteBody
		if i == 3 || i == 4 {
			body = hybridBody
		}
		listings = append(listings, source.RawListing{
			Source:     "boards",
			ExternalID: fmt.Sprint(i),
			Title:      "Engenheiro de Dados",
			Company:    fmt.Sprintf("Acme %d", i),
			Body:       body,
			URL:        fmt.Sprintf("https://boards.example/job/%d", i),
		})
	}
	// The platform served listing 1 again on a later page.
	listings = append(listings, listings[0])
	return listings
}

func TestRunEndToEnd(t *testing.T) {
	adapter := &fakeAdapter{name: "boards", listings: harvestBatch()}
	p, deps := newTestPipeline(t, []source.Adapter{adapter})
	deps.extractor.failIDs["2"] = struct{}{}

	// Listing 5 went out in a previous run.
	identity, err := ledger.Identity("boards", "Acme 5", "Engenheiro de Dados")
	require.NoError(t, err)
	require.NoError(t, deps.ledger.MarkSeen(context.Background(), identity))

	summary, err := p.Run(context.Background(), Config{Terms: []string{"dados"}})
	require.NoError(t, err)

	assert.Equal(t, 12, summary.Fetched)
	assert.Equal(t, 1, summary.Deduped)
	assert.Equal(t, 1, summary.ExtractionFailures)
	assert.Equal(t, 2, summary.RejectedByReason[job.ReasonNotTrulyRemote])
	assert.Equal(t, 8, summary.Accepted)
	assert.Equal(t, 8, summary.FactsLoaded)
	assert.Equal(t, 1, summary.AlreadyDelivered)
	assert.Equal(t, 7, summary.NotificationsSent)
	assert.Equal(t, 1, summary.ItemErrors)
	assert.False(t, summary.FatalSourceError)

	assert.Len(t, deps.store.loaded, 8)
	assert.Len(t, deps.notifier.sent, 7)
	assert.NotContains(t, deps.notifier.sent, "Acme 5")
	assert.Equal(t, 11, deps.blobs.Len(), "every deduped listing is archived")

	// Normalization ran before loading.
	assert.Equal(t, "Data Engineer", deps.store.loaded[0].TitleCategory)

	// A clean run advances the cursor to the run start.
	cur, err := cursor.NewStore(deps.cursorPath, time.Hour)
	require.NoError(t, err)
	since, err := cur.Window(deps.now.Add(6 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, deps.now, since)

	// Delivered postings are remembered for the next run.
	seen, err := deps.ledger.Seen(context.Background(), mustIdentity(t, "boards", "Acme 6"))
	require.NoError(t, err)
	assert.True(t, seen)
}

func mustIdentity(t *testing.T, platform, company string) string {
	t.Helper()
	id, err := ledger.Identity(platform, company, "Engenheiro de Dados")
	require.NoError(t, err)
	return id
}

func TestRunKeepsCursorOnSourceFailure(t *testing.T) {
	healthy := &fakeAdapter{name: "boards", listings: harvestBatch()[:2]}
	broken := &fakeAdapter{name: "dead", err: errors.New("upstream down")}
	p, deps := newTestPipeline(t, []source.Adapter{healthy, broken})

	summary, err := p.Run(context.Background(), Config{})
	require.NoError(t, err)

	assert.True(t, summary.FatalSourceError)
	assert.Equal(t, 2, summary.Fetched, "partial results survive the failure")
	assert.Equal(t, 2, summary.NotificationsSent)

	_, statErr := os.Stat(deps.cursorPath)
	assert.True(t, os.IsNotExist(statErr), "cursor must not advance after a fatal source error")
}

func TestRunDryRun(t *testing.T) {
	adapter := &fakeAdapter{name: "boards", listings: harvestBatch()}
	p, deps := newTestPipeline(t, []source.Adapter{adapter})

	summary, err := p.Run(context.Background(), Config{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 9, summary.Accepted)
	assert.Equal(t, 0, summary.FactsLoaded)
	assert.Equal(t, 0, summary.NotificationsSent)
	assert.Empty(t, deps.store.loaded)
	assert.Empty(t, deps.notifier.sent)

	_, statErr := os.Stat(deps.cursorPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunAbortsOnStorageInvariant(t *testing.T) {
	adapter := &fakeAdapter{name: "boards", listings: harvestBatch()[:1]}
	p, deps := newTestPipeline(t, []source.Adapter{adapter})
	deps.store.loadErr = fmt.Errorf("insert fact: duplicate key: %w", warehouse.ErrStorageInvariant)

	_, err := p.Run(context.Background(), Config{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, warehouse.ErrStorageInvariant))
	assert.Empty(t, deps.notifier.sent)
}

func TestRunToleratesTransientLoadFailure(t *testing.T) {
	adapter := &fakeAdapter{name: "boards", listings: harvestBatch()[:1]}
	p, deps := newTestPipeline(t, []source.Adapter{adapter})
	deps.store.loadErr = errors.New("connection refused")

	summary, err := p.Run(context.Background(), Config{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 0, summary.FactsLoaded)
	assert.Equal(t, 1, summary.ItemErrors)
}

func TestRunCountsNewDimensions(t *testing.T) {
	adapter := &fakeAdapter{name: "boards", listings: harvestBatch()[4:7]}
	p, deps := newTestPipeline(t, []source.Adapter{adapter})

	summary, err := p.Run(context.Background(), Config{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.NewCompanies)
	assert.Equal(t, 1, summary.NewLocations)
	assert.Len(t, deps.store.loaded, 3)
}

func TestNotifyStageSkipsDelivered(t *testing.T) {
	p, deps := newTestPipeline(t, nil)

	records := []job.Record{
		{TitleOriginal: "Engenheiro de Dados", Company: "Acme 1", Platform: "boards"},
		{TitleOriginal: "Engenheiro de Dados", Company: "Acme 2", Platform: "boards"},
	}
	require.NoError(t, deps.ledger.MarkSeen(context.Background(), mustIdentity(t, "boards", "Acme 1")))

	summary, err := p.NotifyStage(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AlreadyDelivered)
	assert.Equal(t, 1, summary.NotificationsSent)
	assert.Equal(t, []string{"Acme 2"}, deps.notifier.sent)
}

func TestRunCanceledContext(t *testing.T) {
	adapter := &fakeAdapter{name: "boards", listings: harvestBatch()}
	p, _ := newTestPipeline(t, []source.Adapter{adapter})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
