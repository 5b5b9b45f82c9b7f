package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const vagasDefaultBaseURL = "https://www.vagas.com.br"

// VagasAdapter harvests postings from the Vagas.com.br listing pages. The
// site is server-rendered, so a plain colly crawl is enough.
type VagasAdapter struct {
	cfg           Config
	baseURL       string
	baseCollector *colly.Collector
	policy        *ExponentialRetryPolicy
	pacer         *rate.Limiter
	logger        *zap.Logger
}

// NewVagasAdapter builds the adapter. baseURL overrides the site root for
// tests.
func NewVagasAdapter(cfg Config, baseURL string, logger *zap.Logger) *VagasAdapter {
	cfg = cfg.withDefaults()
	if baseURL == "" {
		baseURL = vagasDefaultBaseURL
	}
	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.IgnoreRobotsTxt = false
	c.SetRequestTimeout(cfg.RequestTimeout)

	return &VagasAdapter{
		cfg:           cfg,
		baseURL:       strings.TrimRight(baseURL, "/"),
		baseCollector: c,
		policy:        NewExponentialRetryPolicy(),
		pacer:         rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		logger:        logger,
	}
}

// Name implements Adapter.
func (a *VagasAdapter) Name() string { return "vagas" }

// Fetch implements Adapter using ?pagina=N pagination.
func (a *VagasAdapter) Fetch(ctx context.Context, q Query) ([]RawListing, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchDeadline)
	defer cancel()

	w := newWindow(q)
	for page := 1; page <= a.cfg.MaxPages; page++ {
		if page > 1 {
			if err := a.pacer.Wait(ctx); err != nil {
				return w.Listings(), fmt.Errorf("page delay: %w", err)
			}
		}

		var listings []RawListing
		err := fetchPage(ctx, a.policy, func() error {
			var pageErr error
			listings, pageErr = a.crawlPage(ctx, q.Term, page)
			return pageErr
		})
		if err != nil {
			a.logger.Warn("vagas page crawl failed",
				zap.Int("page", page),
				zap.String("term", q.Term),
				zap.Error(err))
			return w.Listings(), fmt.Errorf("vagas page %d: %w", page, err)
		}
		if w.Observe(listings) {
			break
		}
	}
	return w.Listings(), nil
}

func (a *VagasAdapter) crawlPage(ctx context.Context, term string, page int) ([]RawListing, error) {
	slug := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(term)), " ", "-")
	target := fmt.Sprintf("%s/vagas-de-%s?pagina=%d", a.baseURL, url.PathEscape(slug), page)

	var (
		listings []RawListing
		fetchErr error
	)
	collector := a.baseCollector.Clone()
	collector.UserAgent = a.cfg.UserAgent
	collector.SetRequestTimeout(a.cfg.RequestTimeout)

	collector.OnHTML("li.vaga", func(e *colly.HTMLElement) {
		href := e.ChildAttr("h2.cargo a", "href")
		id := e.Attr("data-id")
		if id == "" {
			// Fall back to the numeric suffix of the posting path.
			if idx := strings.LastIndex(strings.TrimRight(href, "/"), "/"); idx >= 0 {
				id = strings.TrimRight(href, "/")[idx+1:]
			}
		}
		if id == "" {
			return
		}
		listings = append(listings, RawListing{
			Source:       a.Name(),
			ExternalID:   id,
			Title:        strings.TrimSpace(e.ChildText("h2.cargo a")),
			Company:      strings.TrimSpace(e.ChildText("span.emprVaga")),
			LocationText: strings.TrimSpace(e.ChildText("span.vaga-local")),
			Body:         strings.TrimSpace(e.ChildText("div.detalhes")),
			URL:          e.Request.AbsoluteURL(href),
		})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && (r.StatusCode == 429 || r.StatusCode >= 500) {
			fetchErr = fmt.Errorf("vagas status %d: %w", r.StatusCode, ErrTransient)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("vagas crawl canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("vagas visit: %w: %w", err, ErrTransient)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("vagas response: %w", fetchErr)
		}
	}
	return listings, nil
}
