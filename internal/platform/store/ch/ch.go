// Package ch provides a clickhouse-go/v2-backed client for batched
// columnar inserts and parameterized reads.
package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures the underlying clickhouse-go/v2 connection.
type Config struct {
	Addrs    []string
	Protocol clickhouse.Protocol
	TLS      *tls.Config
	Auth     clickhouse.Auth
	Dialer   func(ctx context.Context, addr string) (net.Conn, error)
	Settings clickhouse.Settings

	ClientInfo  clickhouse.ClientInfo
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Compression *clickhouse.Compression

	// InsertChunk caps how many rows PrepareBatch+Send handles per call;
	// callers (the analytics writer) still do their own batching, this is
	// a defensive ceiling against accidental oversized single batches.
	InsertChunk int
	MaxRetries  int
	RetryBase   time.Duration

	Tracer *Tracer
}

// Rows is the minimal result-set iteration surface ch exposes to callers.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// CH wraps a driver.Conn with the batched-insert and query operations the
// analytics writer and read path need.
type CH struct {
	conn   chdriver.Conn
	cfg    Config
	tracer *Tracer
}

// Open dials ClickHouse using cfg and returns a ready CH.
func Open(ctx context.Context, cfg Config) (*CH, error) {
	opts := &clickhouse.Options{
		Addr:        cfg.Addrs,
		Protocol:    cfg.Protocol,
		TLS:         cfg.TLS,
		Auth:        cfg.Auth,
		Settings:    cfg.Settings,
		ClientInfo:  cfg.ClientInfo,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
		Compression: cfg.Compression,
	}
	if cfg.Dialer != nil {
		opts.DialContext = cfg.Dialer
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ch: ping: %w", err)
	}
	return &CH{conn: conn, cfg: cfg, tracer: cfg.Tracer}, nil
}

// InsertRows inserts rows into table with the given fixed column order,
// sending them in batches of at most cfg.InsertChunk rows (one batch for
// all rows when InsertChunk is not positive). A failed batch stops the
// call; batches already sent stay written. Callers that need finer
// control chunk rows themselves (the analytics writer does, via its own
// batch_size).
func (c *CH) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	chunk := c.cfg.InsertChunk
	if chunk <= 0 {
		chunk = len(rows)
	}
	start := time.Now()
	query := fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(columns, ", "))
	for from := 0; from < len(rows); from += chunk {
		batch, err := c.conn.PrepareBatch(ctx, query)
		if err != nil {
			return fmt.Errorf("ch: prepare batch for %s: %w", table, err)
		}
		for _, row := range rows[from:min(from+chunk, len(rows))] {
			if err := batch.Append(row...); err != nil {
				return fmt.Errorf("ch: append row for %s: %w", table, err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("ch: send batch for %s: %w", table, err)
		}
	}
	c.tracer.logInsert(table, len(rows), time.Since(start))
	return nil
}

// Query runs a parameterized SELECT and returns Rows.
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rows, err := c.conn.Query(ctx, sql, args...)
	c.tracer.logQuery(sql, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("ch: query: %w", err)
	}
	return rows, nil
}

// Ping verifies connectivity.
func (c *CH) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

// Close releases the underlying connection.
func (c *CH) Close() error { return c.conn.Close() }
