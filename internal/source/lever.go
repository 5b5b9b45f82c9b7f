package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const leverDefaultBaseURL = "https://api.lever.co"

// LeverAdapter harvests postings from the public Lever postings API, one
// request per configured company.
type LeverAdapter struct {
	cfg       Config
	baseURL   string
	companies []string
	client    *http.Client
	policy    *ExponentialRetryPolicy
	pacer     *rate.Limiter
	logger    *zap.Logger
}

// NewLeverAdapter builds the adapter for the given company slugs.
func NewLeverAdapter(cfg Config, baseURL string, companies []string, logger *zap.Logger) *LeverAdapter {
	cfg = cfg.withDefaults()
	if baseURL == "" {
		baseURL = leverDefaultBaseURL
	}
	return &LeverAdapter{
		cfg:       cfg,
		baseURL:   strings.TrimRight(baseURL, "/"),
		companies: companies,
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		policy:    NewExponentialRetryPolicy(),
		pacer:     rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		logger:    logger,
	}
}

// Name implements Adapter.
func (a *LeverAdapter) Name() string { return "lever" }

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"`
	DescriptionPlain string `json:"descriptionPlain"`
	WorkplaceType    string `json:"workplaceType"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
}

// Fetch implements Adapter.
func (a *LeverAdapter) Fetch(ctx context.Context, q Query) ([]RawListing, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchDeadline)
	defer cancel()

	w := newWindow(q)
	for i, company := range a.companies {
		if i > 0 {
			if err := a.pacer.Wait(ctx); err != nil {
				return w.Listings(), fmt.Errorf("page delay: %w", err)
			}
		}

		var postings []leverPosting
		err := fetchPage(ctx, a.policy, func() error {
			var pageErr error
			postings, pageErr = a.fetchPostings(ctx, company)
			return pageErr
		})
		if err != nil {
			a.logger.Warn("lever postings fetch failed",
				zap.String("company", company),
				zap.Error(err))
			return w.Listings(), fmt.Errorf("lever postings %s: %w", company, err)
		}

		listings := make([]RawListing, 0, len(postings))
		for _, p := range postings {
			if !a.matches(p, q.Term) {
				continue
			}
			listings = append(listings, a.toRawListing(company, p))
		}
		if len(listings) > 0 && w.Observe(listings) {
			break
		}
	}
	return w.Listings(), nil
}

func (a *LeverAdapter) fetchPostings(ctx context.Context, company string) ([]leverPosting, error) {
	endpoint := fmt.Sprintf("%s/v0/postings/%s?mode=json", a.baseURL, company)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lever request: %w: %w", err, ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("lever status %d: %w", resp.StatusCode, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("lever status %d: %w", resp.StatusCode, ErrMalformed)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read lever body: %w: %w", err, ErrTransient)
	}
	var postings []leverPosting
	if err := json.Unmarshal(body, &postings); err != nil {
		return nil, fmt.Errorf("decode lever postings: %w: %w", err, ErrMalformed)
	}
	return postings, nil
}

func (a *LeverAdapter) matches(p leverPosting, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(p.Text), term) ||
		strings.Contains(strings.ToLower(p.DescriptionPlain), term)
}

func (a *LeverAdapter) toRawListing(company string, p leverPosting) RawListing {
	var published *time.Time
	if p.CreatedAt > 0 {
		t := time.UnixMilli(p.CreatedAt).UTC()
		published = &t
	}
	return RawListing{
		Source:       a.Name(),
		ExternalID:   p.ID,
		Title:        p.Text,
		Company:      company,
		LocationText: p.Categories.Location,
		Body:         p.DescriptionPlain,
		URL:          p.HostedURL,
		PublishedAt:  published,
		Metadata: map[string]string{
			"workplace_type": p.WorkplaceType,
			"team":           p.Categories.Team,
			"commitment":     p.Categories.Commitment,
		},
	}
}
