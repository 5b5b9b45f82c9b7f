package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const gupyDefaultBaseURL = "https://portal.api.gupy.io"

// GupyAdapter harvests postings from the Gupy portal search API using offset
// pagination.
type GupyAdapter struct {
	cfg     Config
	baseURL string
	client  *http.Client
	policy  *ExponentialRetryPolicy
	pacer   *rate.Limiter
	logger  *zap.Logger

	// The portal intermittently rejects the jobName parameter with a 400.
	// Once that happens the adapter switches to searchTerm for the rest of
	// the run.
	useSearchTerm bool
}

// NewGupyAdapter builds the adapter. baseURL overrides the portal endpoint,
// mainly for tests; pass "" for the real portal.
func NewGupyAdapter(cfg Config, baseURL string, logger *zap.Logger) *GupyAdapter {
	cfg = cfg.withDefaults()
	if baseURL == "" {
		baseURL = gupyDefaultBaseURL
	}
	return &GupyAdapter{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		policy:  NewExponentialRetryPolicy(),
		pacer:   rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		logger:  logger,
	}
}

// Name implements Adapter.
func (a *GupyAdapter) Name() string { return "gupy" }

// gupyJob mirrors one entry of the portal search response.
type gupyJob struct {
	ID             json.Number `json:"id"`
	Name           string      `json:"name"`
	CareerPageName string      `json:"careerPageName"`
	CareerPageURL  string      `json:"careerPageUrl"`
	JobURL         string      `json:"jobUrl"`
	City           string      `json:"city"`
	State          string      `json:"state"`
	Country        string      `json:"country"`
	WorkplaceType  string      `json:"workplaceType"`
	Description    string      `json:"description"`
	PublishedDate  string      `json:"publishedDate"`
}

type gupyPage struct {
	Data []gupyJob `json:"data"`
}

// Fetch implements Adapter.
func (a *GupyAdapter) Fetch(ctx context.Context, q Query) ([]RawListing, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchDeadline)
	defer cancel()

	w := newWindow(q)
	for page := 0; page < a.cfg.MaxPages; page++ {
		if page > 0 {
			if err := a.pacer.Wait(ctx); err != nil {
				return w.Listings(), fmt.Errorf("page delay: %w", err)
			}
		}

		var jobs []gupyJob
		err := fetchPage(ctx, a.policy, func() error {
			var pageErr error
			jobs, pageErr = a.fetchOffset(ctx, q.Term, page*a.cfg.PageSize)
			return pageErr
		})
		if err != nil {
			// Keep what earlier pages yielded.
			a.logger.Warn("gupy page fetch failed",
				zap.Int("page", page),
				zap.String("term", q.Term),
				zap.Error(err))
			return w.Listings(), fmt.Errorf("gupy page %d: %w", page, err)
		}

		listings := make([]RawListing, 0, len(jobs))
		for _, j := range jobs {
			listings = append(listings, a.toRawListing(j))
		}
		if w.Observe(listings) {
			break
		}
	}
	return w.Listings(), nil
}

func (a *GupyAdapter) fetchOffset(ctx context.Context, term string, offset int) ([]gupyJob, error) {
	endpoint := a.baseURL + "/api/v1/jobs"
	params := url.Values{}
	if a.useSearchTerm {
		params.Set("searchTerm", term)
	} else {
		params.Set("jobName", term)
	}
	params.Set("limit", strconv.Itoa(a.cfg.PageSize))
	params.Set("offset", strconv.Itoa(offset))

	body, status, err := a.get(ctx, endpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest && !a.useSearchTerm {
		// Retry this offset with the alternate search parameter.
		a.useSearchTerm = true
		a.logger.Info("gupy rejected jobName parameter, switching to searchTerm")
		return a.fetchOffset(ctx, term, offset)
	}
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gupy status %d: %w", status, ErrTransient)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("gupy status %d: %w", status, ErrMalformed)
	}

	var page gupyPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode gupy page: %w: %w", err, ErrMalformed)
	}
	return page.Data, nil
}

func (a *GupyAdapter) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("gupy request: %w: %w", err, ErrTransient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read gupy body: %w: %w", err, ErrTransient)
	}
	return body, resp.StatusCode, nil
}

func (a *GupyAdapter) toRawListing(j gupyJob) RawListing {
	id := j.ID.String()
	jobURL := j.JobURL
	if jobURL == "" && j.CareerPageURL != "" {
		jobURL = strings.TrimRight(j.CareerPageURL, "/") + "/job/" + id
	}
	var published *time.Time
	if j.PublishedDate != "" {
		if t, err := time.Parse(time.RFC3339, j.PublishedDate); err == nil {
			utc := t.UTC()
			published = &utc
		}
	}
	loc := j.City
	if j.State != "" {
		if loc != "" {
			loc += " - "
		}
		loc += j.State
	}
	return RawListing{
		Source:       a.Name(),
		ExternalID:   id,
		Title:        j.Name,
		Company:      j.CareerPageName,
		LocationText: loc,
		Body:         j.Description,
		URL:          jobURL,
		PublishedAt:  published,
		Metadata: map[string]string{
			"workplace_type": j.WorkplaceType,
			"country":        j.Country,
		},
	}
}
