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

const greenhouseDefaultBaseURL = "https://boards-api.greenhouse.io"

// GreenhouseAdapter harvests postings from the Greenhouse job boards API.
// The API has no server-side search, so the query term is matched client-side
// against title and content.
type GreenhouseAdapter struct {
	cfg       Config
	baseURL   string
	companies []string
	client    *http.Client
	policy    *ExponentialRetryPolicy
	pacer     *rate.Limiter
	logger    *zap.Logger
}

// NewGreenhouseAdapter builds the adapter for the given board tokens.
func NewGreenhouseAdapter(cfg Config, baseURL string, companies []string, logger *zap.Logger) *GreenhouseAdapter {
	cfg = cfg.withDefaults()
	if baseURL == "" {
		baseURL = greenhouseDefaultBaseURL
	}
	return &GreenhouseAdapter{
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
func (a *GreenhouseAdapter) Name() string { return "greenhouse" }

type greenhouseJob struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	AbsoluteURL string      `json:"absolute_url"`
	UpdatedAt   string      `json:"updated_at"`
	Content     string      `json:"content"`
	CompanyName string      `json:"company_name"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
}

type greenhouseBoard struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// Fetch implements Adapter. Each configured company board is a single page.
func (a *GreenhouseAdapter) Fetch(ctx context.Context, q Query) ([]RawListing, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchDeadline)
	defer cancel()

	w := newWindow(q)
	for i, company := range a.companies {
		if i > 0 {
			if err := a.pacer.Wait(ctx); err != nil {
				return w.Listings(), fmt.Errorf("page delay: %w", err)
			}
		}

		var board greenhouseBoard
		err := fetchPage(ctx, a.policy, func() error {
			var pageErr error
			board, pageErr = a.fetchBoard(ctx, company)
			return pageErr
		})
		if err != nil {
			a.logger.Warn("greenhouse board fetch failed",
				zap.String("company", company),
				zap.Error(err))
			return w.Listings(), fmt.Errorf("greenhouse board %s: %w", company, err)
		}

		listings := make([]RawListing, 0, len(board.Jobs))
		for _, j := range board.Jobs {
			if !a.matches(j, q.Term) {
				continue
			}
			listings = append(listings, a.toRawListing(company, j))
		}
		if len(listings) > 0 && w.Observe(listings) {
			break
		}
	}
	return w.Listings(), nil
}

func (a *GreenhouseAdapter) fetchBoard(ctx context.Context, company string) (greenhouseBoard, error) {
	endpoint := fmt.Sprintf("%s/v1/boards/%s/jobs?content=true", a.baseURL, company)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return greenhouseBoard{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return greenhouseBoard{}, fmt.Errorf("greenhouse request: %w: %w", err, ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return greenhouseBoard{}, fmt.Errorf("greenhouse status %d: %w", resp.StatusCode, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return greenhouseBoard{}, fmt.Errorf("greenhouse status %d: %w", resp.StatusCode, ErrMalformed)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return greenhouseBoard{}, fmt.Errorf("read greenhouse body: %w: %w", err, ErrTransient)
	}
	var board greenhouseBoard
	if err := json.Unmarshal(body, &board); err != nil {
		return greenhouseBoard{}, fmt.Errorf("decode greenhouse board: %w: %w", err, ErrMalformed)
	}
	return board, nil
}

func (a *GreenhouseAdapter) matches(j greenhouseJob, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(j.Title), term) ||
		strings.Contains(strings.ToLower(j.Content), term)
}

func (a *GreenhouseAdapter) toRawListing(company string, j greenhouseJob) RawListing {
	name := j.CompanyName
	if name == "" {
		name = company
	}
	var published *time.Time
	if j.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339, j.UpdatedAt); err == nil {
			utc := t.UTC()
			published = &utc
		}
	}
	return RawListing{
		Source:       a.Name(),
		ExternalID:   j.ID.String(),
		Title:        j.Title,
		Company:      name,
		LocationText: j.Location.Name,
		Body:         j.Content,
		URL:          j.AbsoluteURL,
		PublishedAt:  published,
		Metadata:     map[string]string{"board": company},
	}
}
