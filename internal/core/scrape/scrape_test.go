package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	perr "ghsnapshot/internal/platform/errors"
)

// fakeRequester stubs RequestWithRetry with a handler, recording every
// call's (endpoint, params) pair for assertions.
type fakeRequester struct {
	mu      sync.Mutex
	calls   []string
	handler func(endpoint string, params url.Values) ([]byte, error)
}

func (f *fakeRequester) RequestWithRetry(_ context.Context, endpoint, _, _ string, params url.Values, _ bool) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%s?%s", endpoint, params.Encode()))
	f.mu.Unlock()
	return f.handler(endpoint, params)
}

func searchPageJSON(n int) []byte {
	type item struct {
		Name   string `json:"name"`
		Owner  struct {
			Login string `json:"login"`
		} `json:"owner"`
		Stars int `json:"stargazers_count"`
	}
	items := make([]item, n)
	for i := range items {
		items[i].Name = fmt.Sprintf("repo-%d", i)
		items[i].Owner.Login = "acme"
		items[i].Stars = 1000 - i
	}
	b, _ := json.Marshal(struct {
		Items any `json:"items"`
	}{Items: items})
	return b
}

func TestGetRepositoriesPaginatesAndAssignsPerPagePosition(t *testing.T) {
	fr := &fakeRequester{
		handler: func(endpoint string, params url.Values) ([]byte, error) {
			if endpoint == "/search/repositories" {
				perPage := params.Get("per_page")
				n := 100
				if perPage == "50" {
					n = 50
				}
				return searchPageJSON(n), nil
			}
			return []byte(`[]`), nil
		},
	}
	s := New(fr, nil)
	repos, err := s.GetRepositories(context.Background(), 250, 100)
	require.NoError(t, err)
	require.LessOrEqual(t, len(repos), 250)
	require.Equal(t, 250, len(repos))

	// Each page's positions start at 0 again: scanning the known page
	// boundaries (0-99, 100-199, 200-249) confirms per-page indexing.
	require.Equal(t, 0, repos[0].Position)
	require.Equal(t, 0, repos[100].Position)
	require.Equal(t, 0, repos[200].Position)
	require.Equal(t, 49, repos[249].Position)
}

func TestGetRepositoriesTreatsPageErrorsAsTolerable(t *testing.T) {
	fr := &fakeRequester{
		handler: func(endpoint string, params url.Values) ([]byte, error) {
			if endpoint == "/search/repositories" {
				if params.Get("page") == "1" {
					return nil, perr.Newf(perr.ErrorCodeUnavailable, "boom")
				}
				return searchPageJSON(50), nil
			}
			return []byte(`[]`), nil
		},
	}
	s := New(fr, nil)
	repos, err := s.GetRepositories(context.Background(), 150, 50)
	require.NoError(t, err)
	require.Equal(t, 100, len(repos)) // page 1 dropped, pages 2 and 3 survive
}

func TestClampRejectsNegative(t *testing.T) {
	s := New(&fakeRequester{handler: func(string, url.Values) ([]byte, error) { return []byte(`{}`), nil }}, nil)
	_, err := s.GetRepositories(context.Background(), -1, 10)
	require.Error(t, err)
}

func TestClampCapsOverMax(t *testing.T) {
	s := New(&fakeRequester{handler: func(string, url.Values) ([]byte, error) { return []byte(`{}`), nil }}, nil)
	qty, limit, err := s.clamp(5000, 500)
	require.NoError(t, err)
	require.Equal(t, maxQty, qty)
	require.Equal(t, maxLimit, limit)
}

func commitsPageJSON(authors ...string) []byte {
	type commit struct {
		SHA    string `json:"sha"`
		Commit struct {
			Author struct {
				Name string `json:"name"`
			} `json:"author"`
		} `json:"commit"`
	}
	entries := make([]commit, len(authors))
	for i, a := range authors {
		entries[i].SHA = fmt.Sprintf("sha-%d", i)
		entries[i].Commit.Author.Name = a
	}
	b, _ := json.Marshal(entries)
	return b
}

func TestGetRepositoryCommitsAggregatesAcrossPagesAndStopsOnEmpty(t *testing.T) {
	fr := &fakeRequester{
		handler: func(endpoint string, params url.Values) ([]byte, error) {
			switch params.Get("page") {
			case "1":
				return commitsPageJSON("alice", "bob", "alice"), nil
			case "2":
				return commitsPageJSON("bob"), nil
			default:
				return []byte(`[]`), nil
			}
		},
	}
	s := New(fr, nil)
	commits, err := s.GetRepositoryCommits(context.Background(), "acme", "repo")
	require.NoError(t, err)

	byAuthor := map[string]int{}
	for _, c := range commits {
		byAuthor[c.Author] = c.Commits
	}
	require.Equal(t, 2, byAuthor["alice"])
	require.Equal(t, 2, byAuthor["bob"])
}

func TestGetRepositoryCommitsSkipsMissingAuthor(t *testing.T) {
	fr := &fakeRequester{
		handler: func(endpoint string, params url.Values) ([]byte, error) {
			if params.Get("page") == "1" {
				return commitsPageJSON("alice", ""), nil
			}
			return []byte(`[]`), nil
		},
	}
	s := New(fr, nil)
	commits, err := s.GetRepositoryCommits(context.Background(), "acme", "repo")
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.Equal(t, "alice", commits[0].Author)
}
