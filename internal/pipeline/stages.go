package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/job"
	"github.com/pegavagas/harvester/internal/listing"
	"github.com/pegavagas/harvester/internal/metrics"
	"github.com/pegavagas/harvester/internal/source"
	"github.com/pegavagas/harvester/internal/warehouse"
)

// The stage entry points below run one pipeline stage in isolation, so the
// stages can be chained through files by the CLI instead of in memory.

// HarvestStage fetches, dedupes, and archives listings without extracting
// them. The cursor is committed under the same rule as a full run.
func (p *Pipeline) HarvestStage(ctx context.Context, cfg Config) ([]source.RawListing, *Summary, error) {
	now := p.clock.Now()
	summary := &Summary{StartedAt: now, RejectedByReason: make(map[string]int)}

	since, err := p.cursor.Window(now)
	if err != nil {
		return nil, summary, fmt.Errorf("resolve harvest window: %w", err)
	}
	raw := p.harvest(ctx, cfg, since, summary, p.logger)
	summary.Fetched = len(raw)

	deduped := listing.Dedupe(raw)
	summary.Deduped = len(raw) - len(deduped)
	metrics.ObserveDeduped(summary.Deduped)

	runDate := now.Format("2006-01-02")
	for _, l := range deduped {
		if _, err := p.archive.Put(ctx, l, runDate); err != nil {
			metrics.ObserveError("archive")
			p.logger.Warn("raw listing archive failed",
				zap.String("source", l.Source),
				zap.String("external_id", l.ExternalID),
				zap.Error(err))
		}
	}

	summary.FinishedAt = p.clock.Now()
	if !summary.FatalSourceError && !cfg.DryRun {
		if err := p.cursor.Commit(now); err != nil {
			return deduped, summary, fmt.Errorf("commit cursor: %w", err)
		}
	}
	return deduped, summary, nil
}

// ExtractStage cleans and extracts a harvested batch. Failed listings are
// skipped and counted.
func (p *Pipeline) ExtractStage(ctx context.Context, listings []source.RawListing) ([]job.ExtractionResult, *Summary, error) {
	summary := &Summary{StartedAt: p.clock.Now(), RejectedByReason: make(map[string]int)}

	results := make([]job.ExtractionResult, 0, len(listings))
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return results, summary, fmt.Errorf("extract canceled: %w", err)
		}
		text := p.cleanText(l, p.logger)
		result, err := p.extractor.Extract(ctx, l, text)
		if err != nil {
			summary.ExtractionFailures++
			summary.ItemErrors++
			metrics.ObserveExtraction("failed")
			p.logger.Warn("extraction failed",
				zap.String("source", l.Source),
				zap.String("external_id", l.ExternalID),
				zap.Error(err))
			continue
		}
		metrics.ObserveExtraction("ok")
		p.normalizeRecord(&result.Job, l)
		results = append(results, *result)
	}
	summary.FinishedAt = p.clock.Now()
	return results, summary, nil
}

// LoadStage gates extracted results and loads accepted records into the
// warehouse.
func (p *Pipeline) LoadStage(ctx context.Context, results []job.ExtractionResult) ([]job.Record, *Summary, error) {
	summary := &Summary{StartedAt: p.clock.Now(), RejectedByReason: make(map[string]int)}

	accepted := make([]job.Record, 0, len(results))
	for i := range results {
		rec := &results[i].Job
		verdict := p.gate.Evaluate(rec, rec.Summary)
		metrics.ObserveVerdict(verdict.Accepted, verdict.Reason)
		if !verdict.Accepted {
			summary.RejectedByReason[verdict.Reason]++
			continue
		}
		summary.Accepted++

		loaded, err := p.store.LoadRecord(ctx, rec, results[i].Confidence)
		if err != nil {
			if errors.Is(err, warehouse.ErrStorageInvariant) {
				return accepted, summary, fmt.Errorf("warehouse load: %w", err)
			}
			summary.ItemErrors++
			metrics.ObserveError("load")
			p.logger.Error("warehouse load failed",
				zap.String("company", rec.Company),
				zap.String("title", rec.TitleOriginal),
				zap.Error(err))
			continue
		}
		summary.FactsLoaded++
		metrics.ObserveFactLoaded()
		if loaded.NewCompany {
			summary.NewCompanies++
		}
		if loaded.NewLocation {
			summary.NewLocations++
		}
		accepted = append(accepted, *rec)
	}
	summary.FinishedAt = p.clock.Now()
	return accepted, summary, nil
}

// NotifyStage delivers records that the ledger has not seen yet.
func (p *Pipeline) NotifyStage(ctx context.Context, records []job.Record) (*Summary, error) {
	summary := &Summary{StartedAt: p.clock.Now(), RejectedByReason: make(map[string]int)}
	for i := range records {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("notify canceled: %w", err)
		}
		if err := p.deliver(ctx, Config{}, &records[i], summary, p.logger); err != nil {
			return summary, err
		}
	}
	summary.FinishedAt = p.clock.Now()
	return summary, nil
}
