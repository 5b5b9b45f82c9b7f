// Package job defines the domain records that flow through the pipeline:
// the structured posting produced by extraction and the verdict produced
// by the quality gate.
package job

import (
	"fmt"
	"strings"
	"time"
)

// Work modes as reported by the structured extractor.
const (
	WorkModeRemote      = "Remote"
	WorkModeHybrid      = "Hybrid"
	WorkModeOnSite      = "On-site"
	WorkModeUnspecified = "Unspecified"
)

// Salary is a compensation range. Nil bounds mean the posting did not state
// them.
type Salary struct {
	Min      *float64 `json:"min,omitempty" jsonschema:"description=Lower salary bound if stated"`
	Max      *float64 `json:"max,omitempty" jsonschema:"description=Upper salary bound if stated"`
	Currency string   `json:"currency,omitempty" jsonschema:"description=ISO currency code such as BRL or USD"`
}

// Location holds the normalized place of work. Empty strings mean unknown and
// are stored as NULL by the warehouse loader.
type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	Remote  bool   `json:"remote,omitempty"`
}

// Record is a single structured job posting.
type Record struct {
	TitleOriginal      string    `json:"title_original" jsonschema:"description=Job title exactly as posted"`
	TitleCategory      string    `json:"title_category,omitempty"`
	Seniority          string    `json:"seniority,omitempty" jsonschema:"description=Seniority level such as Junior or Senior"`
	Company            string    `json:"company" jsonschema:"description=Hiring company name"`
	Sector             string    `json:"sector,omitempty" jsonschema:"description=Company industry sector if stated"`
	Location           Location  `json:"location"`
	WorkMode           string    `json:"work_mode" jsonschema:"description=One of Remote Hybrid On-site Unspecified"`
	Salary             Salary    `json:"salary"`
	Skills             []string  `json:"skills" jsonschema:"description=Technologies and skills required"`
	Benefits           []string  `json:"benefits,omitempty"`
	YearsExperienceMin *int      `json:"years_experience_min,omitempty"`
	Summary            string    `json:"summary,omitempty" jsonschema:"description=One-paragraph summary of the role"`
	SourceURL          string    `json:"source_url,omitempty"`
	Platform           string    `json:"platform,omitempty"`
	CollectedAt        time.Time `json:"collected_at,omitzero"`
}

// Validate reports whether the record carries the minimum fields the rest of
// the pipeline relies on.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.TitleOriginal) == "" {
		return fmt.Errorf("title_original is required")
	}
	if strings.TrimSpace(r.Company) == "" {
		return fmt.Errorf("company is required")
	}
	if r.Salary.Min != nil && r.Salary.Max != nil && *r.Salary.Min > *r.Salary.Max {
		return fmt.Errorf("salary min %.2f exceeds max %.2f", *r.Salary.Min, *r.Salary.Max)
	}
	switch r.WorkMode {
	case WorkModeRemote, WorkModeHybrid, WorkModeOnSite, WorkModeUnspecified, "":
	default:
		return fmt.Errorf("unknown work mode %q", r.WorkMode)
	}
	return nil
}

// ExtractionResult is the envelope the extractor asks the model to produce.
type ExtractionResult struct {
	Job             Record   `json:"job"`
	Confidence      float64  `json:"confidence" jsonschema:"description=Extraction confidence between 0 and 1"`
	UncertainFields []string `json:"uncertain_fields,omitempty" jsonschema:"description=Field names the model was unsure about"`
}

// Reject reasons emitted by the quality gate.
const (
	ReasonMissingRequiredFields = "MISSING_REQUIRED_FIELDS"
	ReasonNotTrulyRemote        = "NOT_TRULY_REMOTE"
	ReasonInvalidLocation       = "INVALID_LOCATION"
	ReasonLowRelevance          = "LOW_RELEVANCE"
)

// Verdict is the quality gate outcome for one record.
type Verdict struct {
	Accepted bool
	Score    int
	Reason   string
	Flags    []string
}
