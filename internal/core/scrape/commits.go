package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/samber/lo"

	"ghsnapshot/internal/domain"
)

type commitEntry struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commit"`
}

// GetRepositoryCommits pages through today's commits for owner/name,
// stopping on an empty page or any error, and returns per-author commit
// counts aggregated over every page fetched (§4.4).
func (s *Scraper) GetRepositoryCommits(ctx context.Context, owner, name string) ([]domain.RepositoryAuthorCommits, error) {
	since := startOfTodayUTC(s.now(), s.location)

	var authors []string

	for page := 1; page <= s.maxCommitPages; page++ {
		params := url.Values{
			"per_page": {"100"},
			"page":     {strconv.Itoa(page)},
			"since":    {since},
		}
		endpoint := fmt.Sprintf("/repos/%s/%s/commits", owner, name)
		raw, err := s.client.RequestWithRetry(ctx, endpoint, resourceCommits, "GET", params, true)
		if err != nil {
			s.log.Warn().Err(err).Str("owner", owner).Str("name", name).Int("page", page).Msg("scrape.commits page failed, stopping")
			break
		}

		var entries []commitEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			s.log.Warn().Err(err).Str("owner", owner).Str("name", name).Msg("scrape.commits decode failed, stopping")
			break
		}
		if len(entries) == 0 {
			break
		}

		for _, e := range entries {
			if e.Commit.Author.Name == "" {
				s.log.Warn().Str("sha", e.SHA).Msg("scrape.commits skipping commit with missing author")
				continue
			}
			authors = append(authors, e.Commit.Author.Name)
		}
	}

	counts := lo.CountValues(authors)
	order := lo.Uniq(authors)
	result := lo.Map(order, func(author string, _ int) domain.RepositoryAuthorCommits {
		return domain.RepositoryAuthorCommits{Author: author, Commits: counts[author]}
	})
	return result, nil
}
