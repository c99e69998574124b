// Package analytics implements the batched ClickHouse writer (§4.5) and
// the hourly-views read path (§6).
package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	perr "ghsnapshot/internal/platform/errors"
	"ghsnapshot/internal/platform/logger"
	"ghsnapshot/internal/platform/store"

	"ghsnapshot/internal/domain"
)

const defaultBatchSize = 1000

const (
	tableRepositories  = "repositories"
	tableAuthorCommits = "repositories_authors_commits"
	tablePositions     = "repositories_positions"
)

var (
	columnsRepositories  = []string{"name", "owner", "stars", "watchers", "forks", "language", "updated"}
	columnsAuthorCommits = []string{"repository", "author", "commits"}
	columnsPositions     = []string{"repository", "position", "language"}
)

// Writer persists a run's repositories across three related tables,
// batching each and saving all three concurrently.
type Writer struct {
	ch        store.Clickhouse
	log       logger.Logger
	batchSize int
	location  *time.Location
	now       func() time.Time
}

// New builds a Writer over an already-open store.Clickhouse. A nil
// location defaults to Europe/Moscow; batchSize <= 0 defaults to 1000.
func New(ch store.Clickhouse, location *time.Location, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if location == nil {
		if loc, err := time.LoadLocation("Europe/Moscow"); err == nil {
			location = loc
		} else {
			location = time.UTC
		}
	}
	return &Writer{
		ch:        ch,
		log:       *logger.Named("analytics"),
		batchSize: batchSize,
		location:  location,
		now:       time.Now,
	}
}

// Init verifies the underlying connection is reachable. Per §4.6's open
// question about unconditional shutdown, callers must null-check the
// Writer before calling Init or Close if construction itself failed.
func (w *Writer) Init(ctx context.Context) error {
	if w.ch == nil {
		return perr.NotInitializedf("analytics: writer has no clickhouse client")
	}
	return w.ch.Ping(ctx)
}

// Close releases the underlying connection.
func (w *Writer) Close(_ context.Context) error {
	if w.ch == nil {
		return nil
	}
	return w.ch.Close()
}

// SaveRepositoriesCommitsPositions persists repos across all three tables
// concurrently. All three saves are awaited; any error among them is
// logged, and the first is re-raised to the caller (§4.5).
func (w *Writer) SaveRepositoriesCommitsPositions(ctx context.Context, repos []domain.Repository) error {
	updated := w.now().In(w.location)

	var g errgroup.Group
	g.Go(func() error { return w.saveRepositories(ctx, repos, updated) })
	g.Go(func() error { return w.saveAuthorCommits(ctx, repos) })
	g.Go(func() error { return w.savePositions(ctx, repos) })
	return g.Wait()
}

func (w *Writer) saveRepositories(ctx context.Context, repos []domain.Repository, updated time.Time) error {
	rows := make([][]any, 0, len(repos))
	for _, r := range repos {
		rows = append(rows, []any{r.Name, r.Owner, r.Stars, r.Watchers, r.Forks, r.Language, updated})
	}
	return w.flushBatched(ctx, tableRepositories, columnsRepositories, rows)
}

func (w *Writer) saveAuthorCommits(ctx context.Context, repos []domain.Repository) error {
	var rows [][]any
	for _, r := range repos {
		for _, ac := range r.AuthorsCommitsToday {
			rows = append(rows, []any{r.Name, ac.Author, ac.Commits})
		}
	}
	return w.flushBatched(ctx, tableAuthorCommits, columnsAuthorCommits, rows)
}

func (w *Writer) savePositions(ctx context.Context, repos []domain.Repository) error {
	rows := make([][]any, 0, len(repos))
	for _, r := range repos {
		rows = append(rows, []any{r.Name, r.Position, r.Language})
	}
	return w.flushBatched(ctx, tablePositions, columnsPositions, rows)
}

// flushBatched accumulates rows into batches of w.batchSize, inserting
// each full batch and the residual, one insert call per batch.
func (w *Writer) flushBatched(ctx context.Context, table string, columns []string, rows [][]any) error {
	for start := 0; start < len(rows); start += w.batchSize {
		end := min(start+w.batchSize, len(rows))
		batch := rows[start:end]
		if err := w.ch.InsertRows(ctx, table, columns, batch); err != nil {
			w.log.Error().Err(err).Str("table", table).Int("rows", len(batch)).Msg("analytics.insert failed")
			return perr.Wrapf(err, perr.ErrorCodeDB, "analytics: insert into %s", table)
		}
	}
	return nil
}
