// Package snapshot implements the use-case driver (C6): it sequences the
// scrape orchestrator against the analytical store writer for a single
// run, and owns the unconditional, nil-safe shutdown of its collaborators.
package snapshot

import (
	"context"

	perr "ghsnapshot/internal/platform/errors"
	"ghsnapshot/internal/platform/logger"

	"ghsnapshot/internal/domain"
)

// Config carries the per-run parameters the reference implementation's
// main.py hardcodes (qty, limit), exposed here so operators can
// retune without recompiling.
type Config struct {
	Qty   int
	Limit int
}

// Service drives one snapshot run: scrape, then persist.
type Service struct {
	scraper domain.Scraper
	writer  domain.Writer
	cache   domain.Cache
	log     logger.Logger
	cfg     Config
}

// New builds a Service over an already-constructed Scraper, Writer, and
// Cache. Any of the three may be nil; Close is nil-safe per the open
// question this preserves verbatim from the reference implementation's
// shutdown path, which closes the scraper session, cache, and writer
// unconditionally.
func New(scraper domain.Scraper, writer domain.Writer, cache domain.Cache, cfg Config) *Service {
	return &Service{
		scraper: scraper,
		writer:  writer,
		cache:   cache,
		log:     *logger.Named("snapshot"),
		cfg:     cfg,
	}
}

// Run executes one snapshot: scrape the configured qty/limit, enrich with
// commits, and persist across all three analytical tables. A terminal
// failure in either stage is logged and re-raised to the caller. Run does
// not call Close itself; the caller defers Close so it runs on every exit
// path.
func (s *Service) Run(ctx context.Context) error {
	if s.writer != nil {
		if err := s.writer.Init(ctx); err != nil {
			s.log.Error().Err(err).Msg("snapshot.writer_init failed")
			return perr.Wrapf(err, perr.ErrorCodeNotInitialized, "snapshot: writer init")
		}
	}

	if s.scraper == nil {
		return perr.NotInitializedf("snapshot: no scraper configured")
	}
	repos, err := s.scraper.GetRepositories(ctx, s.cfg.Qty, s.cfg.Limit)
	if err != nil {
		s.log.Error().Err(err).Msg("snapshot.scrape failed")
		return err
	}
	s.log.Info().Int("repos", len(repos)).Msg("snapshot.scrape complete")

	if s.writer == nil {
		return perr.NotInitializedf("snapshot: no writer configured")
	}
	if err := s.writer.SaveRepositoriesCommitsPositions(ctx, repos); err != nil {
		s.log.Error().Err(err).Msg("snapshot.save failed")
		return err
	}
	s.log.Info().Int("repos", len(repos)).Msg("snapshot.save complete")
	return nil
}

// Close releases the scraper session, cache, and writer, skipping whichever
// is nil. All three are attempted even if one fails, and the first error
// encountered is returned.
func (s *Service) Close(ctx context.Context) error {
	var first error
	if s.scraper != nil {
		if err := s.scraper.Close(ctx); err != nil {
			s.log.Warn().Err(err).Msg("snapshot.scraper_close failed")
			first = err
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(ctx); err != nil {
			s.log.Warn().Err(err).Msg("snapshot.cache_close failed")
			if first == nil {
				first = err
			}
		}
	}
	if s.writer != nil {
		if err := s.writer.Close(ctx); err != nil {
			s.log.Warn().Err(err).Msg("snapshot.writer_close failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
