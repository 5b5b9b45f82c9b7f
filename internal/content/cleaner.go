// Package content turns raw posting HTML into bounded plain text suitable for
// structured extraction.
package content

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// DefaultMaxChars bounds cleaned text so extraction prompts stay inside model
// context limits.
const DefaultMaxChars = 15000

// Cleaner extracts readable text from HTML.
type Cleaner struct {
	MaxChars int
}

// NewCleaner builds a cleaner. Zero maxChars falls back to DefaultMaxChars.
func NewCleaner(maxChars int) *Cleaner {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Cleaner{MaxChars: maxChars}
}

// Clean extracts the main text content of the document. Readability runs
// first; when it yields nothing useful a goquery strip pass takes over.
// The result is truncated to MaxChars at a sentence or word boundary.
func (c *Cleaner) Clean(html string, pageURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("empty document")
	}

	text := c.readabilityText(html, pageURL)
	if text == "" {
		var err error
		text, err = c.stripText(html)
		if err != nil {
			return "", err
		}
	}
	text = collapseWhitespace(text)
	if text == "" {
		return "", fmt.Errorf("no readable content")
	}
	return c.truncate(text), nil
}

func (c *Cleaner) readabilityText(html string, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || pageURL == "" {
		parsed = &url.URL{Scheme: "https", Host: "localhost"}
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func (c *Cleaner) stripText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	doc.Find("script, style, nav, header, footer, aside, noscript, iframe").Remove()
	return doc.Text(), nil
}

// truncate cuts text to MaxChars, preferring to break after a sentence, then
// after a word. The cut point backs up to a rune boundary first so a
// multi-byte character is never split when no better boundary exists.
func (c *Cleaner) truncate(text string) string {
	if len(text) <= c.MaxChars {
		return text
	}
	limit := c.MaxChars
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	cut := text[:limit]
	if idx := lastSentenceEnd(cut); idx > c.MaxChars/2 {
		return strings.TrimSpace(cut[:idx+1])
	}
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > c.MaxChars/2 {
		return strings.TrimSpace(cut[:idx])
	}
	return strings.TrimSpace(cut)
}

func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	lastNewline := 0
	for _, r := range s {
		switch {
		case r == '\n':
			if lastNewline < 2 {
				b.WriteRune('\n')
				lastNewline++
			}
			lastSpace = true
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
		default:
			b.WriteRune(r)
			lastSpace = false
			lastNewline = 0
		}
	}
	return strings.TrimSpace(b.String())
}
