package warehouse

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegavagas/harvester/internal/job"
)

func strPtr(s string) *string { return &s }

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func testRecord() *job.Record {
	return &job.Record{
		TitleOriginal: "Engenheiro de Dados Sênior",
		TitleCategory: "Data Engineer",
		Company:       "Acme Tecnologia",
		Seniority:     "Senior",
		WorkMode:      job.WorkModeRemote,
		Location:      job.Location{Remote: true, Country: "Brazil"},
		Skills:        []string{"python", "sql"},
		SourceURL:     "https://example.com/jobs/1",
		Platform:      "gupy",
		CollectedAt:   time.Date(2026, 3, 7, 12, 30, 0, 0, time.UTC),
	}
}

func newMockLoader(t *testing.T) (*Loader, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	loader, err := NewLoaderWithPool(mock)
	require.NoError(t, err)
	return loader, mock
}

func TestLoadRecordCreatesDimensions(t *testing.T) {
	t.Parallel()

	loader, mock := newMockLoader(t)
	rec := testRecord()

	mock.ExpectQuery(`SELECT company_sk, sector FROM dim_company`).
		WithArgs("acme tecnologia").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(company_sk), 0) + 1 FROM dim_company`)).
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO dim_company`).
		WithArgs(int64(1), rec.Company, "acme tecnologia", "", rec.CollectedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectQuery(`SELECT location_sk FROM dim_location`).
		WithArgs("", "", "Brazil", true).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(location_sk), 0) + 1 FROM dim_location`)).
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO dim_location`).
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectQuery(`SELECT time_sk FROM dim_time WHERE time_sk = \$1`).
		WithArgs(int64(20260307)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO dim_time`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(fact_sk), 0) + 1 FROM fact_job_postings`)).
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO fact_job_postings`).
		WithArgs(anyArgs(15)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	loaded, err := loader.LoadRecord(context.Background(), rec, 0.92)

	require.NoError(t, err)
	assert.Equal(t, Loaded{FactKey: 1, NewCompany: true, NewLocation: true, NewTime: true}, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRecordReusesDimensions(t *testing.T) {
	t.Parallel()

	loader, mock := newMockLoader(t)
	rec := testRecord()

	mock.ExpectQuery(`SELECT company_sk, sector FROM dim_company`).
		WithArgs("acme tecnologia").
		WillReturnRows(pgxmock.NewRows([]string{"company_sk", "sector"}).AddRow(int64(7), strPtr("Tech")))
	mock.ExpectQuery(`SELECT location_sk FROM dim_location`).
		WithArgs("", "", "Brazil", true).
		WillReturnRows(pgxmock.NewRows([]string{"location_sk"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT time_sk FROM dim_time`).
		WithArgs(int64(20260307)).
		WillReturnRows(pgxmock.NewRows([]string{"time_sk"}).AddRow(int64(20260307)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(fact_sk), 0) + 1 FROM fact_job_postings`)).
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(int64(42)))
	mock.ExpectExec(`INSERT INTO fact_job_postings`).
		WithArgs(anyArgs(15)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	loaded, err := loader.LoadRecord(context.Background(), rec, 0.8)

	require.NoError(t, err)
	assert.Equal(t, Loaded{FactKey: 42}, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRecordBackfillsCompanySector(t *testing.T) {
	t.Parallel()

	loader, mock := newMockLoader(t)
	rec := testRecord()
	rec.Sector = "Fintech"

	mock.ExpectQuery(`SELECT company_sk, sector FROM dim_company`).
		WithArgs("acme tecnologia").
		WillReturnRows(pgxmock.NewRows([]string{"company_sk", "sector"}).AddRow(int64(7), nil))
	mock.ExpectExec(`UPDATE dim_company SET sector`).
		WithArgs("Fintech", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT location_sk FROM dim_location`).
		WithArgs(anyArgs(4)...).
		WillReturnRows(pgxmock.NewRows([]string{"location_sk"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT time_sk FROM dim_time`).
		WithArgs(anyArgs(1)...).
		WillReturnRows(pgxmock.NewRows([]string{"time_sk"}).AddRow(int64(20260307)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(fact_sk), 0) + 1 FROM fact_job_postings`)).
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(int64(8)))
	mock.ExpectExec(`INSERT INTO fact_job_postings`).
		WithArgs(anyArgs(15)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := loader.LoadRecord(context.Background(), rec, 0.8)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRecordDuplicateKeyIsStorageInvariant(t *testing.T) {
	t.Parallel()

	loader, mock := newMockLoader(t)
	rec := testRecord()

	mock.ExpectQuery(`SELECT company_sk, sector FROM dim_company`).
		WithArgs(anyArgs(1)...).
		WillReturnRows(pgxmock.NewRows([]string{"company_sk", "sector"}).AddRow(int64(7), nil))
	mock.ExpectQuery(`SELECT location_sk FROM dim_location`).
		WithArgs(anyArgs(4)...).
		WillReturnRows(pgxmock.NewRows([]string{"location_sk"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT time_sk FROM dim_time`).
		WithArgs(anyArgs(1)...).
		WillReturnRows(pgxmock.NewRows([]string{"time_sk"}).AddRow(int64(20260307)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(fact_sk), 0) + 1 FROM fact_job_postings`)).
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(int64(9)))
	mock.ExpectExec(`INSERT INTO fact_job_postings`).
		WithArgs(anyArgs(15)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := loader.LoadRecord(context.Background(), rec, 0.8)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageInvariant))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	loader, mock := newMockLoader(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS dim_company`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS dim_location`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE UNIQUE INDEX IF NOT EXISTS dim_location_identity`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS dim_time`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS fact_job_postings`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, loader.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
