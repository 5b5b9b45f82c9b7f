package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pegavagas/harvester/internal/render"
)

const linkedinDefaultBaseURL = "https://www.linkedin.com"

// LinkedInAdapter harvests postings from the LinkedIn guest job search. The
// guest endpoint usually returns server-rendered card fragments; when the
// response looks like an application shell the adapter escalates to the
// browser renderer.
type LinkedInAdapter struct {
	cfg      Config
	baseURL  string
	client   *http.Client
	renderer render.Renderer
	detector *render.Detector
	policy   *ExponentialRetryPolicy
	pacer    *rate.Limiter
	logger   *zap.Logger
}

// NewLinkedInAdapter builds the adapter. The renderer may be render.NoOp when
// browser rendering is disabled.
func NewLinkedInAdapter(cfg Config, baseURL string, renderer render.Renderer, detector *render.Detector, logger *zap.Logger) *LinkedInAdapter {
	cfg = cfg.withDefaults()
	if baseURL == "" {
		baseURL = linkedinDefaultBaseURL
	}
	if detector == nil {
		detector = render.NewDetector(0, nil)
	}
	return &LinkedInAdapter{
		cfg:      cfg,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		renderer: renderer,
		detector: detector,
		policy:   NewExponentialRetryPolicy(),
		pacer:    rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		logger:   logger,
	}
}

// Name implements Adapter.
func (a *LinkedInAdapter) Name() string { return "linkedin" }

// Fetch implements Adapter using start-offset pagination over guest search
// fragments.
func (a *LinkedInAdapter) Fetch(ctx context.Context, q Query) ([]RawListing, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchDeadline)
	defer cancel()

	w := newWindow(q)
	for page := 0; page < a.cfg.MaxPages; page++ {
		if page > 0 {
			if err := a.pacer.Wait(ctx); err != nil {
				return w.Listings(), fmt.Errorf("page delay: %w", err)
			}
		}

		var listings []RawListing
		err := fetchPage(ctx, a.policy, func() error {
			var pageErr error
			listings, pageErr = a.fetchFragment(ctx, q.Term, page*a.cfg.PageSize)
			return pageErr
		})
		if err != nil {
			a.logger.Warn("linkedin fragment fetch failed",
				zap.Int("page", page),
				zap.String("term", q.Term),
				zap.Error(err))
			return w.Listings(), fmt.Errorf("linkedin page %d: %w", page, err)
		}
		if w.Observe(listings) {
			break
		}
	}
	return w.Listings(), nil
}

func (a *LinkedInAdapter) fetchFragment(ctx context.Context, term string, start int) ([]RawListing, error) {
	params := url.Values{}
	params.Set("keywords", term)
	params.Set("location", "Brazil")
	params.Set("start", strconv.Itoa(start))
	target := a.baseURL + "/jobs-guest/jobs/api/seeMoreJobPostings/search?" + params.Encode()

	body, err := a.staticGet(ctx, target)
	if err != nil {
		return nil, err
	}
	if a.detector.NeedsRender(body) {
		html, renderErr := a.renderer.Render(ctx, target)
		switch {
		case renderErr == nil:
			body = []byte(html)
		case errors.Is(renderErr, render.ErrDisabled):
			a.logger.Debug("linkedin page needs rendering but renderer is disabled",
				zap.String("url", target))
		default:
			return nil, fmt.Errorf("linkedin render: %w: %w", renderErr, ErrTransient)
		}
	}
	return a.parseCards(body)
}

func (a *LinkedInAdapter) staticGet(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("linkedin request: %w: %w", err, ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("linkedin status %d: %w", resp.StatusCode, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("linkedin status %d: %w", resp.StatusCode, ErrMalformed)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read linkedin body: %w: %w", err, ErrTransient)
	}
	return body, nil
}

func (a *LinkedInAdapter) parseCards(body []byte) ([]RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse linkedin fragment: %w: %w", err, ErrMalformed)
	}

	var listings []RawListing
	doc.Find("div.base-card, li div.base-search-card").Each(func(_ int, s *goquery.Selection) {
		urn, _ := s.Attr("data-entity-urn")
		id := urn
		if idx := strings.LastIndex(urn, ":"); idx >= 0 {
			id = urn[idx+1:]
		}
		if id == "" {
			return
		}
		link, _ := s.Find("a.base-card__full-link").Attr("href")
		var published *time.Time
		if dt, ok := s.Find("time").Attr("datetime"); ok {
			if t, parseErr := time.Parse("2006-01-02", dt); parseErr == nil {
				utc := t.UTC()
				published = &utc
			}
		}
		listings = append(listings, RawListing{
			Source:       a.Name(),
			ExternalID:   id,
			Title:        strings.TrimSpace(s.Find("h3.base-search-card__title").Text()),
			Company:      strings.TrimSpace(s.Find("h4.base-search-card__subtitle").Text()),
			LocationText: strings.TrimSpace(s.Find("span.job-search-card__location").Text()),
			URL:          link,
			PublishedAt:  published,
		})
	})
	return listings, nil
}
