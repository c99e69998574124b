// Package domain holds the shared types and port interfaces for the
// GitHub snapshot pipeline. It sits at the bottom of the dependency graph so
// the scrape orchestrator and the use-case driver can depend on the same
// contracts without importing each other.
package domain

import "context"

// RepositoryAuthorCommits is a single author's commit count for a repository
// on the day of the scrape.
type RepositoryAuthorCommits struct {
	Author  string
	Commits int
}

// Repository is a GitHub repository enriched with today's commit activity
// and the position it held within its search-result page.
type Repository struct {
	Name                string
	Owner               string
	Position            int
	Stars               int
	Watchers            int
	Forks               int
	Language            string
	AuthorsCommitsToday []RepositoryAuthorCommits
}

// AddCommits merges commits into the repository's per-author totals,
// summing counts for authors already present and appending new ones.
// Calling it with an empty slice is a no-op. Authors are merged by name:
// calling it twice with the same input doubles each author's count, matching
// the reference implementation's merge semantics.
func (r *Repository) AddCommits(commits []RepositoryAuthorCommits) {
	if len(commits) == 0 {
		return
	}
	index := make(map[string]int, len(r.AuthorsCommitsToday))
	for i, existing := range r.AuthorsCommitsToday {
		index[existing.Author] = i
	}
	for _, c := range commits {
		if i, ok := index[c.Author]; ok {
			r.AuthorsCommitsToday[i].Commits += c.Commits
			continue
		}
		index[c.Author] = len(r.AuthorsCommitsToday)
		r.AuthorsCommitsToday = append(r.AuthorsCommitsToday, c)
	}
}

// Scraper produces the ranked repository snapshot for a single run.
type Scraper interface {
	GetRepositories(ctx context.Context, qty, limit int) ([]Repository, error)
	Close(ctx context.Context) error
}

// Writer persists a snapshot's repositories, author commits, and positions.
type Writer interface {
	Init(ctx context.Context) error
	SaveRepositoriesCommitsPositions(ctx context.Context, repos []Repository) error
	Close(ctx context.Context) error
}

// Cache is the narrow contract the client needs for idempotent GET caching.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttl *int)
	Close(ctx context.Context) error
}
