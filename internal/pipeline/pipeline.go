// Package pipeline orchestrates one harvest run: fetch, dedupe, archive,
// clean, extract, normalize, gate, load, notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/archive"
	"github.com/pegavagas/harvester/internal/content"
	"github.com/pegavagas/harvester/internal/cursor"
	"github.com/pegavagas/harvester/internal/gate"
	"github.com/pegavagas/harvester/internal/job"
	"github.com/pegavagas/harvester/internal/ledger"
	"github.com/pegavagas/harvester/internal/listing"
	"github.com/pegavagas/harvester/internal/metrics"
	"github.com/pegavagas/harvester/internal/normalize"
	"github.com/pegavagas/harvester/internal/notify"
	"github.com/pegavagas/harvester/internal/source"
	"github.com/pegavagas/harvester/internal/warehouse"
)

// Clock supplies the run timestamp, so tests can pin it.
type Clock interface {
	Now() time.Time
}

// Extractor is the structured extraction stage.
type Extractor interface {
	Extract(ctx context.Context, raw source.RawListing, cleanedText string) (*job.ExtractionResult, error)
}

// Summary reports what one run did.
type Summary struct {
	RunID              string
	StartedAt          time.Time
	FinishedAt         time.Time
	Fetched            int
	Deduped            int
	ExtractionFailures int
	Accepted           int
	RejectedByReason   map[string]int
	NewCompanies       int
	NewLocations       int
	FactsLoaded        int
	AlreadyDelivered   int
	NotificationsSent  int
	ItemErrors         int
	FatalSourceError   bool
}

// Config scopes one run.
type Config struct {
	// Terms are the search terms fanned out to every adapter.
	Terms []string
	// Limit caps listings per adapter and term. Zero means no cap.
	Limit int
	// DryRun skips warehouse writes, notifications, ledger updates, and the
	// cursor commit.
	DryRun bool
}

// Pipeline wires the stages together.
type Pipeline struct {
	adapters  []source.Adapter
	cleaner   *content.Cleaner
	extractor Extractor
	gate      *gate.Gate
	store     warehouse.Store
	ledger    ledger.Ledger
	cursor    *cursor.Store
	archive   *archive.Store
	notifier  notify.Notifier
	clock     Clock
	logger    *zap.Logger
}

// New builds a pipeline. All dependencies are required; pass the no-op
// implementations to disable a concern.
func New(
	adapters []source.Adapter,
	cleaner *content.Cleaner,
	extractor Extractor,
	g *gate.Gate,
	store warehouse.Store,
	led ledger.Ledger,
	cur *cursor.Store,
	arch *archive.Store,
	notifier notify.Notifier,
	clock Clock,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		adapters:  adapters,
		cleaner:   cleaner,
		extractor: extractor,
		gate:      g,
		store:     store,
		ledger:    led,
		cursor:    cur,
		archive:   arch,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
	}
}

// Run executes one full harvest pass. Per-item failures are counted and
// logged; only storage invariant violations and context cancellation abort
// the run.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (*Summary, error) {
	now := p.clock.Now()
	summary := &Summary{
		RunID:            uuid.NewString(),
		StartedAt:        now,
		RejectedByReason: make(map[string]int),
	}
	logger := p.logger.With(zap.String("run_id", summary.RunID))

	since, err := p.cursor.Window(now)
	if err != nil {
		return summary, fmt.Errorf("resolve harvest window: %w", err)
	}
	logger.Info("harvest run starting",
		zap.Time("since", since),
		zap.Int("adapters", len(p.adapters)),
		zap.Strings("terms", cfg.Terms),
		zap.Bool("dry_run", cfg.DryRun))

	raw := p.harvest(ctx, cfg, since, summary, logger)
	summary.Fetched = len(raw)

	deduped := listing.Dedupe(raw)
	summary.Deduped = len(raw) - len(deduped)
	metrics.ObserveDeduped(summary.Deduped)

	runDate := now.Format("2006-01-02")
	for _, l := range deduped {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run canceled: %w", err)
		}
		if err := p.processListing(ctx, cfg, l, runDate, summary, logger); err != nil {
			return summary, err
		}
	}

	summary.FinishedAt = p.clock.Now()
	if !summary.FatalSourceError && !cfg.DryRun {
		if err := p.cursor.Commit(now); err != nil {
			return summary, fmt.Errorf("commit cursor: %w", err)
		}
	}
	p.logSummary(logger, summary)
	return summary, nil
}

// harvest fans the query out to every adapter and term, keeping partial
// results when an adapter fails.
func (p *Pipeline) harvest(ctx context.Context, cfg Config, since time.Time, summary *Summary, logger *zap.Logger) []source.RawListing {
	terms := cfg.Terms
	if len(terms) == 0 {
		terms = []string{""}
	}

	var all []source.RawListing
	for _, adapter := range p.adapters {
		for _, term := range terms {
			start := time.Now()
			listings, err := adapter.Fetch(ctx, source.Query{
				Term:  term,
				Limit: cfg.Limit,
				Since: &since,
			})
			metrics.ObserveFetchDuration(adapter.Name(), time.Since(start))
			metrics.ObserveFetched(adapter.Name(), len(listings))
			if err != nil {
				summary.FatalSourceError = true
				metrics.ObserveError("harvest")
				logger.Error("adapter fetch failed, keeping partial results",
					zap.String("source", adapter.Name()),
					zap.String("term", term),
					zap.Int("partial", len(listings)),
					zap.Error(err))
			}
			all = append(all, listings...)
		}
	}
	return all
}

func (p *Pipeline) processListing(ctx context.Context, cfg Config, l source.RawListing, runDate string, summary *Summary, logger *zap.Logger) error {
	itemLogger := logger.With(
		zap.String("source", l.Source),
		zap.String("external_id", l.ExternalID))

	if _, err := p.archive.Put(ctx, l, runDate); err != nil {
		// Archival is best effort.
		metrics.ObserveError("archive")
		itemLogger.Warn("raw listing archive failed", zap.Error(err))
	}

	text := p.cleanText(l, itemLogger)

	result, err := p.extractor.Extract(ctx, l, text)
	if err != nil {
		summary.ExtractionFailures++
		summary.ItemErrors++
		metrics.ObserveExtraction("failed")
		metrics.ObserveError("extract")
		itemLogger.Warn("extraction failed", zap.Error(err))
		return nil
	}
	metrics.ObserveExtraction("ok")

	rec := &result.Job
	p.normalizeRecord(rec, l)

	verdict := p.gate.Evaluate(rec, text)
	metrics.ObserveVerdict(verdict.Accepted, verdict.Reason)
	if !verdict.Accepted {
		summary.RejectedByReason[verdict.Reason]++
		itemLogger.Debug("listing rejected",
			zap.String("reason", verdict.Reason),
			zap.Int("score", verdict.Score),
			zap.Strings("flags", verdict.Flags))
		return nil
	}
	summary.Accepted++

	if !cfg.DryRun {
		loaded, err := p.store.LoadRecord(ctx, rec, result.Confidence)
		if err != nil {
			if errors.Is(err, warehouse.ErrStorageInvariant) {
				return fmt.Errorf("warehouse load %s/%s: %w", l.Source, l.ExternalID, err)
			}
			summary.ItemErrors++
			metrics.ObserveError("load")
			itemLogger.Error("warehouse load failed", zap.Error(err))
			return nil
		}
		summary.FactsLoaded++
		metrics.ObserveFactLoaded()
		if loaded.NewCompany {
			summary.NewCompanies++
		}
		if loaded.NewLocation {
			summary.NewLocations++
		}
	}

	return p.deliver(ctx, cfg, rec, summary, itemLogger)
}

// deliver sends the notification unless the ledger has already seen this
// posting. The ledger is written only after a successful send.
func (p *Pipeline) deliver(ctx context.Context, cfg Config, rec *job.Record, summary *Summary, itemLogger *zap.Logger) error {
	identity, err := ledger.Identity(rec.Platform, rec.Company, rec.TitleOriginal)
	if err != nil {
		summary.ItemErrors++
		metrics.ObserveError("ledger")
		itemLogger.Error("posting identity failed", zap.Error(err))
		return nil
	}
	seen, err := p.ledger.Seen(ctx, identity)
	if err != nil {
		summary.ItemErrors++
		metrics.ObserveError("ledger")
		itemLogger.Error("ledger lookup failed", zap.Error(err))
		return nil
	}
	if seen {
		summary.AlreadyDelivered++
		return nil
	}
	if cfg.DryRun {
		return nil
	}
	if err := p.notifier.Notify(ctx, rec); err != nil {
		summary.ItemErrors++
		metrics.ObserveError("notify")
		itemLogger.Warn("notification failed", zap.Error(err))
		return nil
	}
	summary.NotificationsSent++
	metrics.ObserveNotificationSent()
	if err := p.ledger.MarkSeen(ctx, identity); err != nil {
		summary.ItemErrors++
		metrics.ObserveError("ledger")
		itemLogger.Error("ledger record failed", zap.Error(err))
	}
	return nil
}

// cleanText prefers the listing body; short bodies skip the HTML cleaning
// pass. A listing with no body falls back to its envelope fields.
func (p *Pipeline) cleanText(l source.RawListing, itemLogger *zap.Logger) string {
	body := strings.TrimSpace(l.Body)
	if body == "" {
		return strings.TrimSpace(l.Title + "\n" + l.Company + "\n" + l.LocationText)
	}
	if !strings.Contains(body, "<") {
		return body
	}
	text, err := p.cleaner.Clean(body, l.URL)
	if err != nil {
		metrics.ObserveError("clean")
		itemLogger.Debug("content cleaning fell back to raw body", zap.Error(err))
		return body
	}
	return text
}

// normalizeRecord fills the derived fields the extractor does not produce.
func (p *Pipeline) normalizeRecord(rec *job.Record, l source.RawListing) {
	rec.TitleCategory = normalize.TitleCategory(rec.TitleOriginal)
	if rec.Seniority == "" || rec.Seniority == "Unspecified" {
		rec.Seniority = normalize.Seniority(rec.TitleOriginal, rec.YearsExperienceMin)
	}
	if rec.Location == (job.Location{}) && l.LocationText != "" {
		rec.Location = normalize.Location(l.LocationText)
	}
	if rec.Location.Remote && rec.WorkMode == job.WorkModeUnspecified {
		rec.WorkMode = job.WorkModeRemote
	}
}

func (p *Pipeline) logSummary(logger *zap.Logger, s *Summary) {
	logger.Info("harvest run finished",
		zap.Duration("duration", s.FinishedAt.Sub(s.StartedAt)),
		zap.Int("fetched", s.Fetched),
		zap.Int("deduped", s.Deduped),
		zap.Int("extraction_failures", s.ExtractionFailures),
		zap.Int("accepted", s.Accepted),
		zap.Any("rejected", s.RejectedByReason),
		zap.Int("new_companies", s.NewCompanies),
		zap.Int("new_locations", s.NewLocations),
		zap.Int("facts_loaded", s.FactsLoaded),
		zap.Int("already_delivered", s.AlreadyDelivered),
		zap.Int("notifications_sent", s.NotificationsSent),
		zap.Int("item_errors", s.ItemErrors),
		zap.Bool("fatal_source_error", s.FatalSourceError))
}
