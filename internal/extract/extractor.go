package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pegavagas/harvester/internal/job"
	"github.com/pegavagas/harvester/internal/source"
)

const systemPrompt = `You are a structured data extractor for job postings.
Read the posting text and produce the requested JSON object. Copy the title
exactly as posted. Never invent salary figures or skills that are not in the
text. Use the Unspecified value when the posting does not state a field.`

// ExtractionError reports exhaustion of all attempts, carrying the last
// validation failure.
type ExtractionError struct {
	Attempts int
	Last     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExtractionError) Unwrap() error { return e.Last }

// Extractor drives the model call, repairs, hint backfill and validation.
type Extractor struct {
	client      Client
	maxAttempts int
	logger      *zap.Logger
}

// New builds an extractor. maxAttempts <= 0 falls back to 3.
func New(client Client, maxAttempts int, logger *zap.Logger) *Extractor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Extractor{client: client, maxAttempts: maxAttempts, logger: logger}
}

// Extract produces a structured record from the cleaned text of one listing.
// The listing supplies backfill hints for fields the model leaves empty. The
// prompt never changes between attempts; model nondeterminism is the retry
// lever.
func (e *Extractor) Extract(ctx context.Context, raw source.RawListing, cleanedText string) (*job.ExtractionResult, error) {
	userPrompt := buildPrompt(raw, cleanedText)

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		payload, err := e.client.Complete(ctx, systemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			if !IsRetryable(err) {
				break
			}
			e.logger.Warn("extraction attempt failed",
				zap.Int("attempt", attempt),
				zap.String("listing", raw.Source+"/"+raw.ExternalID),
				zap.Error(err))
			continue
		}

		result, decodeErr := e.decode(payload, raw)
		if decodeErr != nil {
			lastErr = decodeErr
			e.logger.Warn("extraction payload invalid",
				zap.Int("attempt", attempt),
				zap.String("listing", raw.Source+"/"+raw.ExternalID),
				zap.Error(decodeErr))
			continue
		}
		return result, nil
	}
	return nil, &ExtractionError{Attempts: e.maxAttempts, Last: lastErr}
}

func (e *Extractor) decode(payload []byte, raw source.RawListing) (*job.ExtractionResult, error) {
	payload = repair(payload)

	var result job.ExtractionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode extraction payload: %w", err)
	}

	rec := &result.Job

	// Hint backfill from the listing envelope.
	if strings.TrimSpace(rec.TitleOriginal) == "" {
		rec.TitleOriginal = raw.Title
	}
	if strings.TrimSpace(rec.Company) == "" {
		rec.Company = raw.Company
	}
	if rec.Seniority == "" {
		rec.Seniority = "Unspecified"
	}
	if rec.WorkMode == "" {
		rec.WorkMode = job.WorkModeUnspecified
	}
	rec.SourceURL = raw.URL
	rec.Platform = raw.Source
	rec.CollectedAt = time.Now().UTC()

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("validate extraction: %w", err)
	}
	return &result, nil
}

func buildPrompt(raw source.RawListing, cleanedText string) string {
	var b strings.Builder
	b.WriteString("Job posting metadata:\n")
	fmt.Fprintf(&b, "- Platform: %s\n", raw.Source)
	fmt.Fprintf(&b, "- Title hint: %s\n", raw.Title)
	fmt.Fprintf(&b, "- Company hint: %s\n", raw.Company)
	if raw.LocationText != "" {
		fmt.Fprintf(&b, "- Location hint: %s\n", raw.LocationText)
	}
	b.WriteString("\nPosting text:\n")
	b.WriteString(cleanedText)
	return b.String()
}
