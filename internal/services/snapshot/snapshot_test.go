package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ghsnapshot/internal/domain"
)

type fakeScraper struct {
	repos     []domain.Repository
	getErr    error
	closeErr  error
	closed    bool
	gotQty    int
	gotLimit  int
}

func (f *fakeScraper) GetRepositories(_ context.Context, qty, limit int) ([]domain.Repository, error) {
	f.gotQty, f.gotLimit = qty, limit
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.repos, nil
}

func (f *fakeScraper) Close(context.Context) error {
	f.closed = true
	return f.closeErr
}

type fakeWriter struct {
	initErr  error
	saveErr  error
	closeErr error
	closed   bool
	saved    []domain.Repository
}

func (f *fakeWriter) Init(context.Context) error { return f.initErr }

func (f *fakeWriter) SaveRepositoriesCommitsPositions(_ context.Context, repos []domain.Repository) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = repos
	return nil
}

func (f *fakeWriter) Close(context.Context) error {
	f.closed = true
	return f.closeErr
}

type fakeCache struct {
	closeErr error
	closed   bool
}

func (f *fakeCache) Get(context.Context, string) (any, bool) { return nil, false }
func (f *fakeCache) Set(context.Context, string, any, *int)  {}

func (f *fakeCache) Close(context.Context) error {
	f.closed = true
	return f.closeErr
}

func TestRunScrapesThenSaves(t *testing.T) {
	scraper := &fakeScraper{repos: []domain.Repository{{Name: "a"}, {Name: "b"}}}
	writer := &fakeWriter{}
	s := New(scraper, writer, &fakeCache{}, Config{Qty: 10, Limit: 5})

	err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, scraper.gotQty)
	require.Equal(t, 5, scraper.gotLimit)
	require.Equal(t, scraper.repos, writer.saved)
}

func TestRunPropagatesScrapeError(t *testing.T) {
	scraper := &fakeScraper{getErr: errors.New("boom")}
	writer := &fakeWriter{}
	s := New(scraper, writer, &fakeCache{}, Config{Qty: 1, Limit: 1})

	err := s.Run(context.Background())
	require.Error(t, err)
	require.Nil(t, writer.saved)
}

func TestRunPropagatesSaveError(t *testing.T) {
	scraper := &fakeScraper{repos: []domain.Repository{{Name: "a"}}}
	writer := &fakeWriter{saveErr: errors.New("write failed")}
	s := New(scraper, writer, &fakeCache{}, Config{Qty: 1, Limit: 1})

	err := s.Run(context.Background())
	require.Error(t, err)
}

func TestRunFailsWithoutWriterOrScraper(t *testing.T) {
	s := New(nil, &fakeWriter{}, &fakeCache{}, Config{})
	require.Error(t, s.Run(context.Background()))

	s2 := New(&fakeScraper{}, nil, &fakeCache{}, Config{})
	require.Error(t, s2.Run(context.Background()))
}

func TestCloseIsNilSafeAndClosesAll(t *testing.T) {
	scraper := &fakeScraper{}
	writer := &fakeWriter{}
	cache := &fakeCache{}
	s := New(scraper, writer, cache, Config{})

	require.NoError(t, s.Close(context.Background()))
	require.True(t, scraper.closed)
	require.True(t, cache.closed)
	require.True(t, writer.closed)

	s2 := New(nil, nil, nil, Config{})
	require.NoError(t, s2.Close(context.Background()))
}

func TestCloseAttemptsAllEvenWhenOneFails(t *testing.T) {
	scraper := &fakeScraper{closeErr: errors.New("scraper close failed")}
	writer := &fakeWriter{}
	cache := &fakeCache{closeErr: errors.New("cache close failed")}
	s := New(scraper, writer, cache, Config{})

	err := s.Close(context.Background())
	require.Error(t, err)
	require.True(t, cache.closed)
	require.True(t, writer.closed)
}
