// Package notify delivers accepted postings to subscribers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pegavagas/harvester/internal/job"
)

// ErrNotConfigured signals missing notifier credentials. It is fatal to the
// notify stage only; the rest of the pipeline proceeds.
var ErrNotConfigured = errors.New("notifier not configured")

// Notifier sends one message per accepted posting.
type Notifier interface {
	Notify(ctx context.Context, rec *job.Record) error
	Close() error
}

// NoOp discards notifications.
type NoOp struct{}

// Notify implements Notifier.
func (NoOp) Notify(context.Context, *job.Record) error { return nil }

// Close implements Notifier.
func (NoOp) Close() error { return nil }

// Unconfigured fails every send with ErrNotConfigured. It stands in for a
// notifier whose credentials are missing so the other stages still run.
type Unconfigured struct{}

// Notify implements Notifier.
func (Unconfigured) Notify(context.Context, *job.Record) error { return ErrNotConfigured }

// Close implements Notifier.
func (Unconfigured) Close() error { return nil }

// workModeEmoji maps work modes to their message markers.
func workModeEmoji(mode string) string {
	switch mode {
	case job.WorkModeRemote:
		return "🏠"
	case job.WorkModeHybrid:
		return "🔄"
	case job.WorkModeOnSite:
		return "🏢"
	default:
		return "💼"
	}
}

// FormatMessage renders the Markdown message body for one posting.
func FormatMessage(rec *job.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n", workModeEmoji(rec.WorkMode), escapeMarkdown(rec.TitleOriginal))
	fmt.Fprintf(&b, "🏛 %s\n", escapeMarkdown(rec.Company))

	if loc := formatLocation(rec.Location); loc != "" {
		fmt.Fprintf(&b, "📍 %s\n", escapeMarkdown(loc))
	}
	if sal := formatSalary(rec.Salary); sal != "" {
		fmt.Fprintf(&b, "💰 %s\n", sal)
	}
	if len(rec.Skills) > 0 {
		top := rec.Skills
		if len(top) > 5 {
			top = top[:5]
		}
		fmt.Fprintf(&b, "🛠 %s\n", escapeMarkdown(strings.Join(top, ", ")))
	}
	if rec.SourceURL != "" {
		fmt.Fprintf(&b, "\n[Ver vaga](%s)", rec.SourceURL)
	}
	return b.String()
}

func formatLocation(loc job.Location) string {
	if loc.Remote {
		return "Remoto"
	}
	parts := make([]string, 0, 3)
	if loc.City != "" {
		parts = append(parts, loc.City)
	}
	if loc.State != "" {
		parts = append(parts, loc.State)
	}
	if len(parts) == 0 && loc.Country != "" {
		parts = append(parts, loc.Country)
	}
	return strings.Join(parts, " - ")
}

func formatSalary(s job.Salary) string {
	currency := s.Currency
	if currency == "" {
		currency = "BRL"
	}
	switch {
	case s.Min != nil && s.Max != nil:
		return fmt.Sprintf("%s %.0f - %.0f", currency, *s.Min, *s.Max)
	case s.Min != nil:
		return fmt.Sprintf("%s %.0f+", currency, *s.Min)
	case s.Max != nil:
		return fmt.Sprintf("até %s %.0f", currency, *s.Max)
	default:
		return ""
	}
}

// escapeMarkdown escapes the characters Telegram's Markdown parser treats
// specially in free text.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`")
	return replacer.Replace(s)
}
