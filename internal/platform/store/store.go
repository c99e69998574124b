// Package store provides the facade over the ClickHouse analytics backend.
package store

import (
	"context"
	"errors"
	"fmt"

	"ghsnapshot/internal/platform/logger"
)

// Store is the facade over the configured backend. The zero value is safe
// but does nothing — CH is nil until Open enables it.
type Store struct {
	// Log is the logger used by subclients; zero means a no-op zerolog logger.
	Log logger.Logger

	// CH is the ClickHouse seam, nil when disabled.
	CH Clickhouse
}

// Rows exposes the minimal iteration and scan surface a result set needs.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// Clickhouse is the seam for batched columnar writes and parameterized reads.
type Clickhouse interface {
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// Pinger is any seam that can report readiness.
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backend. CH stays nil when
// cfg.CH.Enabled is false.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.Log = s.Log.With().Logger() // own context copy; a zero logger stays a no-op

	if cfg.CH.Enabled {
		chClient, err := openCH(ctx, cfg.CH, s)
		if err != nil {
			return nil, err
		}
		s.CH = chClient
	}

	return s, nil
}

// Guard verifies every configured seam the Store knows about.
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if s.CH != nil {
		if err := s.CH.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ch: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close closes the configured backend gracefully; a nil backend is ignored.
func (s *Store) Close(_ context.Context) error {
	if s.CH == nil {
		return nil
	}
	return s.CH.Close()
}
