package store

import "ghsnapshot/internal/platform/logger"

// Option customizes a Store at construction time.
type Option func(*Store) error

// WithLogger sets the logger used by the Store and the backends it opens.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) error {
		s.Log = l
		return nil
	}
}
