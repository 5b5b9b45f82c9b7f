package content

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postingHTML = `<!DOCTYPE html>
<html>
<head><title>Engenheiro de Dados</title><style>body { color: red; }</style></head>
<body>
<nav><a href="/">Home</a><a href="/vagas">Vagas</a></nav>
<script>window.tracker = "analytics-blob";</script>
<article>
<h1>Engenheiro de Dados Sênior</h1>
<p>Buscamos uma pessoa engenheira de dados para atuar 100% remoto, de qualquer
lugar do Brasil, construindo pipelines com Python, Airflow e Spark.</p>
<p>Você vai trabalhar com times de produto e dados, mantendo nosso lakehouse e
os contratos de dados que alimentam os dashboards da empresa.</p>
<p>Requisitos: experiência com SQL, modelagem dimensional e orquestração de
workflows. Desejável: dbt, Kafka e Databricks.</p>
</article>
<footer>Acme Tecnologia LTDA</footer>
</body>
</html>`

func TestCleanExtractsReadableText(t *testing.T) {
	t.Parallel()

	c := NewCleaner(0)
	text, err := c.Clean(postingHTML, "https://acme.gupy.io/job/1")

	require.NoError(t, err)
	assert.Contains(t, text, "100% remoto")
	assert.Contains(t, text, "Airflow")
	assert.NotContains(t, text, "<p>")
	assert.NotContains(t, text, "analytics-blob")
	assert.NotContains(t, text, "color: red")
}

func TestCleanStripFallback(t *testing.T) {
	t.Parallel()

	// Too little prose for article extraction; the strip pass still yields text.
	html := `<div><script>var x = 1;</script><span>Vaga remota de dados</span></div>`

	c := NewCleaner(0)
	text, err := c.Clean(html, "")

	require.NoError(t, err)
	assert.Contains(t, text, "Vaga remota de dados")
	assert.NotContains(t, text, "var x")
}

func TestCleanRejectsEmptyDocument(t *testing.T) {
	t.Parallel()

	c := NewCleaner(0)
	_, err := c.Clean("   ", "")
	assert.Error(t, err)
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b\n\nc", collapseWhitespace("a \t b\n\n\n\nc  "))
	assert.Equal(t, "", collapseWhitespace(" \n \t "))
}

func TestTruncatePrefersSentenceBoundary(t *testing.T) {
	t.Parallel()

	c := &Cleaner{MaxChars: 40}
	text := "Primeira frase completa aqui. Segunda frase que nao cabe inteira no limite."

	got := c.truncate(text)
	assert.Equal(t, "Primeira frase completa aqui.", got)
}

func TestTruncateFallsBackToWordBoundary(t *testing.T) {
	t.Parallel()

	c := &Cleaner{MaxChars: 30}
	text := "palavras soltas sem pontuacao nenhuma aqui nesse texto"

	got := c.truncate(text)
	assert.LessOrEqual(t, len(got), 30)
	assert.False(t, strings.HasSuffix(got, " "))
	assert.NotContains(t, got, "pontuacao nenhuma")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	// No sentence end or space anywhere, and the byte limit lands in the
	// middle of a two-byte rune.
	c := &Cleaner{MaxChars: 9}
	text := strings.Repeat("ã", 10)

	got := c.truncate(text)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("ã", 4), got)
}

func TestTruncateShortTextUntouched(t *testing.T) {
	t.Parallel()

	c := &Cleaner{MaxChars: 100}
	assert.Equal(t, "curto", c.truncate("curto"))
}
