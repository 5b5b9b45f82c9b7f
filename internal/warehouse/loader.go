package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pegavagas/harvester/internal/job"
	"github.com/pegavagas/harvester/internal/normalize"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Loader writes dimensions and facts into Postgres. It assumes a single
// writer per warehouse; surrogate keys are assigned max+1 without locking.
type Loader struct {
	pool querier
}

// NewLoader connects a pool from config.
func NewLoader(ctx context.Context, cfg Config) (*Loader, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("warehouse.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse warehouse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	return &Loader{pool: pool}, nil
}

// NewLoaderWithPool constructs a loader from an existing pool (primarily for
// testing).
func NewLoaderWithPool(pool querier) (*Loader, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Loader{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (l *Loader) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// LoadRecord resolves the record's dimensions and appends one fact row.
func (l *Loader) LoadRecord(ctx context.Context, rec *job.Record, confidence float64) (Loaded, error) {
	if l == nil || l.pool == nil {
		return Loaded{}, fmt.Errorf("warehouse loader is not configured")
	}
	var out Loaded

	companySK, created, err := l.companyKey(ctx, rec.Company, rec.Sector, rec.CollectedAt)
	if err != nil {
		return out, err
	}
	out.NewCompany = created

	locationSK, created, err := l.locationKey(ctx, rec.Location)
	if err != nil {
		return out, err
	}
	out.NewLocation = created

	timeSK, created, err := l.timeKey(ctx, rec.CollectedAt)
	if err != nil {
		return out, err
	}
	out.NewTime = created

	factSK, err := l.insertFact(ctx, rec, confidence, companySK, locationSK, timeSK)
	if err != nil {
		return out, err
	}
	out.FactKey = factSK
	return out, nil
}

// companyKey resolves or creates the company dimension row, backfilling the
// sector when a previously unknown one arrives.
func (l *Loader) companyKey(ctx context.Context, name, sector string, firstSeen time.Time) (int64, bool, error) {
	normalized := normalize.CompanyKey(name)

	var (
		sk           int64
		storedSector *string
	)
	err := l.pool.QueryRow(ctx,
		`SELECT company_sk, sector FROM dim_company WHERE normalized_name = $1`,
		normalized,
	).Scan(&sk, &storedSector)
	switch {
	case err == nil:
		if (storedSector == nil || *storedSector == "") && sector != "" {
			if _, err := l.pool.Exec(ctx,
				`UPDATE dim_company SET sector = $1 WHERE company_sk = $2`,
				sector, sk,
			); err != nil {
				return 0, false, fmt.Errorf("backfill company sector: %w", err)
			}
		}
		return sk, false, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return 0, false, fmt.Errorf("select company: %w", err)
	}

	if err := l.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(company_sk), 0) + 1 FROM dim_company`,
	).Scan(&sk); err != nil {
		return 0, false, fmt.Errorf("next company key: %w", err)
	}
	if _, err := l.pool.Exec(ctx,
		`INSERT INTO dim_company (company_sk, name, normalized_name, sector, first_seen_date)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		sk, name, normalized, sector, firstSeen,
	); err != nil {
		return 0, false, classifyInsertErr("insert company", err)
	}
	return sk, true, nil
}

// locationKey resolves or creates the location dimension row. Equality is
// NULL-aware so two postings with an unknown city land on the same row.
func (l *Loader) locationKey(ctx context.Context, loc job.Location) (int64, bool, error) {
	var sk int64
	err := l.pool.QueryRow(ctx,
		`SELECT location_sk FROM dim_location
		 WHERE city IS NOT DISTINCT FROM NULLIF($1, '')
		   AND state IS NOT DISTINCT FROM NULLIF($2, '')
		   AND country IS NOT DISTINCT FROM NULLIF($3, '')
		   AND is_remote = $4`,
		loc.City, loc.State, loc.Country, loc.Remote,
	).Scan(&sk)
	switch {
	case err == nil:
		return sk, false, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return 0, false, fmt.Errorf("select location: %w", err)
	}

	if err := l.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(location_sk), 0) + 1 FROM dim_location`,
	).Scan(&sk); err != nil {
		return 0, false, fmt.Errorf("next location key: %w", err)
	}
	if _, err := l.pool.Exec(ctx,
		`INSERT INTO dim_location (location_sk, city, state, country, region, is_remote)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)`,
		sk, loc.City, loc.State, loc.Country, loc.Region, loc.Remote,
	); err != nil {
		return 0, false, classifyInsertErr("insert location", err)
	}
	return sk, true, nil
}

// timeKey resolves or creates the time dimension row keyed YYYYMMDD.
func (l *Loader) timeKey(ctx context.Context, t time.Time) (int64, bool, error) {
	t = t.UTC()
	sk := int64(t.Year()*10000 + int(t.Month())*100 + t.Day())

	var existing int64
	err := l.pool.QueryRow(ctx,
		`SELECT time_sk FROM dim_time WHERE time_sk = $1`, sk,
	).Scan(&existing)
	switch {
	case err == nil:
		return sk, false, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return 0, false, fmt.Errorf("select time bucket: %w", err)
	}

	_, week := t.ISOWeek()
	weekday := t.Weekday()
	if _, err := l.pool.Exec(ctx,
		`INSERT INTO dim_time (time_sk, date, year, quarter, month, week, weekday, weekday_name, is_weekend)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sk,
		t.Truncate(24*time.Hour),
		t.Year(),
		(int(t.Month())-1)/3+1,
		int(t.Month()),
		week,
		int(weekday),
		weekday.String(),
		weekday == time.Saturday || weekday == time.Sunday,
	); err != nil {
		return 0, false, classifyInsertErr("insert time bucket", err)
	}
	return sk, true, nil
}

func (l *Loader) insertFact(ctx context.Context, rec *job.Record, confidence float64, companySK, locationSK, timeSK int64) (int64, error) {
	var sk int64
	if err := l.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(fact_sk), 0) + 1 FROM fact_job_postings`,
	).Scan(&sk); err != nil {
		return 0, fmt.Errorf("next fact key: %w", err)
	}
	if _, err := l.pool.Exec(ctx,
		`INSERT INTO fact_job_postings (
			fact_sk, company_sk, location_sk, time_sk,
			title_original, title_category, seniority, work_mode,
			salary_min, salary_max, salary_currency,
			skills, source_url, platform, confidence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14, $15)`,
		sk, companySK, locationSK, timeSK,
		rec.TitleOriginal, rec.TitleCategory, rec.Seniority, rec.WorkMode,
		rec.Salary.Min, rec.Salary.Max, rec.Salary.Currency,
		rec.Skills, rec.SourceURL, rec.Platform, confidence,
	); err != nil {
		return 0, classifyInsertErr("insert fact", err)
	}
	return sk, nil
}

// classifyInsertErr maps unique violations onto ErrStorageInvariant: under
// the single-writer discipline a duplicate key means a bug, not contention.
func classifyInsertErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: duplicate key: %w", op, ErrStorageInvariant)
	}
	return fmt.Errorf("%s: %w", op, err)
}
