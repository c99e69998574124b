// Package scrape implements the paginated top-repository search fan-out,
// per-repository commit paging, and result aggregation described for the
// scrape orchestrator.
package scrape

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	perr "ghsnapshot/internal/platform/errors"

	"ghsnapshot/internal/domain"
	"ghsnapshot/internal/platform/logger"
)

const (
	resourceSearch  = "search/repositories"
	resourceCommits = "repos/commits"

	minQty   = 1
	maxQty   = 1000
	minLimit = 1
	maxLimit = 100

	defaultMaxCommitPages = 100
)

// Requester is the subset of *github.Client the orchestrator depends on,
// narrowed for testability.
type Requester interface {
	RequestWithRetry(ctx context.Context, endpoint, resource, method string, params url.Values, cached bool) ([]byte, error)
}

// Scraper sequences the search fan-out and commit enrichment described in
// §4.4 against a Requester, defaulting to Europe/Moscow for the commit
// "since" cutoff.
type Scraper struct {
	client   Requester
	log      logger.Logger
	location *time.Location

	maxCommitPages int
	now            func() time.Time
}

// New builds a Scraper. A nil location defaults to Europe/Moscow.
func New(client Requester, location *time.Location) *Scraper {
	if location == nil {
		if loc, err := time.LoadLocation("Europe/Moscow"); err == nil {
			location = loc
		} else {
			location = time.UTC
		}
	}
	return &Scraper{
		client:         client,
		log:            *logger.Named("scrape"),
		location:       location,
		maxCommitPages: defaultMaxCommitPages,
		now:            time.Now,
	}
}

// Close is a no-op: the underlying client's lifecycle is owned by its
// constructor, not by the orchestrator.
func (s *Scraper) Close(_ context.Context) error { return nil }

// clamp enforces qty ∈ [1,1000], limit ∈ [1,100] per §4.4: negative values
// are a caller error, over-max values are clamped with a warning.
func (s *Scraper) clamp(qty, limit int) (int, int, error) {
	if qty < 0 || limit < 0 {
		return 0, 0, invalidArgument("qty and limit must be non-negative")
	}
	if qty < minQty {
		qty = minQty
	}
	if qty > maxQty {
		s.log.Warn().Int("qty", qty).Int("max_qty", maxQty).Msg("scrape.clamp qty")
		qty = maxQty
	}
	if limit < minLimit {
		limit = minLimit
	}
	if limit > maxLimit {
		s.log.Warn().Int("limit", limit).Int("max_limit", maxLimit).Msg("scrape.clamp limit")
		limit = maxLimit
	}
	return qty, limit, nil
}

// GetRepositories issues the paginated top-repository search, tolerating
// per-page failures, then enriches every surviving Repository with today's
// per-author commit counts, tolerating per-repo failures.
func (s *Scraper) GetRepositories(ctx context.Context, qty, limit int) ([]domain.Repository, error) {
	qty, limit, err := s.clamp(qty, limit)
	if err != nil {
		return nil, err
	}

	pages := int(math.Ceil(float64(qty) / float64(limit)))
	pageResults := make([][]domain.Repository, pages)

	// A plain errgroup.Group (no WithContext) is used deliberately: page
	// failures are tolerated rather than cancelling the remaining pages,
	// so callbacks always return nil and log their own failures.
	var g errgroup.Group
	for p := 1; p <= pages; p++ {
		page := p
		perPage := limit
		if remaining := qty - (page-1)*limit; remaining < perPage {
			perPage = remaining
		}
		g.Go(func() error {
			repos, err := s.searchPage(ctx, page, perPage)
			if err != nil {
				s.log.Warn().Err(err).Int("page", page).Msg("scrape.search_page failed, dropping page")
				return nil
			}
			pageResults[page-1] = repos
			return nil
		})
	}
	_ = g.Wait() // the page callbacks never return a non-nil error to the group; this cannot fail

	var repos []domain.Repository
	for _, page := range pageResults {
		repos = append(repos, page...)
	}

	enriched := make([]domain.Repository, len(repos))
	copy(enriched, repos)

	var eg errgroup.Group
	for i := range enriched {
		idx := i
		eg.Go(func() error {
			repo := enriched[idx]
			commits, err := s.GetRepositoryCommits(ctx, repo.Owner, repo.Name)
			if err != nil {
				s.log.Warn().Err(err).Str("owner", repo.Owner).Str("name", repo.Name).Msg("scrape.commits failed, enriching with none")
				return nil
			}
			enriched[idx].AddCommits(commits)
			return nil
		})
	}
	_ = eg.Wait()

	return enriched, nil
}

type searchResponse struct {
	Items []struct {
		Name      string `json:"name"`
		Owner     struct {
			Login string `json:"login"`
		} `json:"owner"`
		Stargazers int    `json:"stargazers_count"`
		Watchers   int    `json:"watchers_count"`
		Forks      int    `json:"forks_count"`
		Language   string `json:"language"`
	} `json:"items"`
}

func (s *Scraper) searchPage(ctx context.Context, page, perPage int) ([]domain.Repository, error) {
	params := url.Values{
		"q":        {"stars:>1"},
		"sort":     {"stars"},
		"order":    {"desc"},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	raw, err := s.client.RequestWithRetry(ctx, "/search/repositories", resourceSearch, "GET", params, true)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "scrape: decode search response")
	}
	repos := make([]domain.Repository, 0, len(resp.Items))
	for i, item := range resp.Items {
		lang := item.Language
		if lang == "" {
			lang = "Unknown"
		}
		repos = append(repos, domain.Repository{
			Name:     item.Name,
			Owner:    item.Owner.Login,
			Position: i,
			Stars:    item.Stargazers,
			Watchers: item.Watchers,
			Forks:    item.Forks,
			Language: lang,
		})
	}
	return repos, nil
}
