package warehouse

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dim_company (
		company_sk      BIGINT PRIMARY KEY,
		name            TEXT NOT NULL,
		normalized_name TEXT NOT NULL UNIQUE,
		sector          TEXT,
		first_seen_date TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dim_location (
		location_sk BIGINT PRIMARY KEY,
		city        TEXT,
		state       TEXT,
		country     TEXT,
		region      TEXT,
		is_remote   BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS dim_location_identity
		ON dim_location (
			COALESCE(city, ''), COALESCE(state, ''),
			COALESCE(country, ''), is_remote
		)`,
	`CREATE TABLE IF NOT EXISTS dim_time (
		time_sk      BIGINT PRIMARY KEY,
		date         DATE NOT NULL,
		year         INT NOT NULL,
		quarter      INT NOT NULL,
		month        INT NOT NULL,
		week         INT NOT NULL,
		weekday      INT NOT NULL,
		weekday_name TEXT NOT NULL,
		is_weekend   BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fact_job_postings (
		fact_sk         BIGINT PRIMARY KEY,
		company_sk      BIGINT NOT NULL REFERENCES dim_company (company_sk),
		location_sk     BIGINT NOT NULL REFERENCES dim_location (location_sk),
		time_sk         BIGINT NOT NULL REFERENCES dim_time (time_sk),
		title_original  TEXT NOT NULL,
		title_category  TEXT NOT NULL,
		seniority       TEXT NOT NULL,
		work_mode       TEXT NOT NULL,
		salary_min      DOUBLE PRECISION,
		salary_max      DOUBLE PRECISION,
		salary_currency TEXT,
		skills          TEXT[],
		source_url      TEXT,
		platform        TEXT NOT NULL,
		confidence      DOUBLE PRECISION NOT NULL,
		loaded_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the star-schema tables when missing.
func (l *Loader) EnsureSchema(ctx context.Context) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("warehouse loader is not configured")
	}
	for _, stmt := range schemaStatements {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure warehouse schema: %w", err)
		}
	}
	return nil
}
