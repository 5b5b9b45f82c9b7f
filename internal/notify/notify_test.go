package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pegavagas/harvester/internal/job"
)

func floatPtr(v float64) *float64 { return &v }

func TestUnconfiguredNotifierFailsSends(t *testing.T) {
	t.Parallel()

	n := Unconfigured{}
	err := n.Notify(context.Background(), &job.Record{})

	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.NoError(t, n.Close())
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	rec := &job.Record{
		TitleOriginal: "Engenheiro de Dados Sênior",
		Company:       "Acme Tecnologia",
		WorkMode:      job.WorkModeRemote,
		Location:      job.Location{Remote: true, Country: "Brazil"},
		Salary:        job.Salary{Min: floatPtr(12000), Max: floatPtr(16000)},
		Skills:        []string{"python", "sql", "airflow", "spark", "dbt", "kafka"},
		SourceURL:     "https://acme.gupy.io/job/42",
	}

	msg := FormatMessage(rec)

	assert.Contains(t, msg, "🏠 *Engenheiro de Dados Sênior*")
	assert.Contains(t, msg, "🏛 Acme Tecnologia")
	assert.Contains(t, msg, "📍 Remoto")
	assert.Contains(t, msg, "💰 BRL 12000 - 16000")
	assert.Contains(t, msg, "🛠 python, sql, airflow, spark, dbt")
	assert.NotContains(t, msg, "kafka", "skill list is capped at five")
	assert.Contains(t, msg, "[Ver vaga](https://acme.gupy.io/job/42)")
}

func TestFormatMessageMinimalRecord(t *testing.T) {
	t.Parallel()

	rec := &job.Record{
		TitleOriginal: "Analista de Dados",
		Company:       "Acme",
		WorkMode:      job.WorkModeHybrid,
		Location:      job.Location{City: "Campinas", State: "SP"},
	}

	msg := FormatMessage(rec)

	assert.Contains(t, msg, "🔄 *Analista de Dados*")
	assert.Contains(t, msg, "📍 Campinas - SP")
	assert.NotContains(t, msg, "💰")
	assert.NotContains(t, msg, "🛠")
	assert.NotContains(t, msg, "[Ver vaga]")
}

func TestFormatMessageEscapesMarkdown(t *testing.T) {
	t.Parallel()

	rec := &job.Record{
		TitleOriginal: "Data_Engineer [Remote]",
		Company:       "Acme*Corp",
		WorkMode:      job.WorkModeRemote,
	}

	msg := FormatMessage(rec)

	assert.Contains(t, msg, `Data\_Engineer \[Remote]`)
	assert.Contains(t, msg, `Acme\*Corp`)
}

func TestFormatSalary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", formatSalary(job.Salary{}))
	assert.Equal(t, "BRL 8000+", formatSalary(job.Salary{Min: floatPtr(8000)}))
	assert.Equal(t, "até BRL 9000", formatSalary(job.Salary{Max: floatPtr(9000)}))
	assert.Equal(t, "USD 5000 - 7000", formatSalary(job.Salary{Min: floatPtr(5000), Max: floatPtr(7000), Currency: "USD"}))
}

func TestWorkModeEmoji(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "🏠", workModeEmoji(job.WorkModeRemote))
	assert.Equal(t, "🔄", workModeEmoji(job.WorkModeHybrid))
	assert.Equal(t, "🏢", workModeEmoji(job.WorkModeOnSite))
	assert.Equal(t, "💼", workModeEmoji(job.WorkModeUnspecified))
}
