package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ghsnapshot/internal/platform/store/ch"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// openCH parses the DSN in CHConfig and opens a ClickHouse client using
// ch.Config. Tracing is enabled when c.LogSQL is true.
func openCH(ctx context.Context, c CHConfig, s *Store) (Clickhouse, error) {
	if !c.Enabled {
		return nil, nil
	}
	ccfg, err := parseCHConfig(c)
	if err != nil {
		return nil, err
	}
	if c.LogSQL && s != nil {
		ccfg.Tracer = ch.NewTracer(s.Log)
	}

	client, err := ch.Open(ctx, ccfg)
	if err != nil {
		return nil, err
	}
	return newCHAdapter(client), nil
}

// parseCHConfig turns the DSN-shaped CHConfig into a ch.Config, without
// dialing — the part of openCH that is safe to unit test in isolation.
func parseCHConfig(c CHConfig) (ch.Config, error) {
	if strings.TrimSpace(c.URL) == "" {
		return ch.Config{}, fmt.Errorf("ch: empty URL")
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return ch.Config{}, fmt.Errorf("ch: parse url: %w", err)
	}
	qs := u.Query()

	proto := clickhouse.Native
	if u.Scheme == "http" || u.Scheme == "https" {
		proto = clickhouse.HTTP
	}

	secure := u.Scheme == "https" || qs.Get("secure") == "true"
	skipVerify := qs.Get("skip_verify") == "1" || qs.Get("skip_verify") == "true"
	var tlsCfg *tls.Config
	if secure {
		tlsCfg = &tls.Config{InsecureSkipVerify: skipVerify}
	}

	user, pass := "", ""
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	if user == "" {
		if v := qs.Get("username"); v != "" {
			user = v
		} else if v := qs.Get("user"); v != "" {
			user = v
		}
	}
	if pass == "" {
		if v := qs.Get("password"); v != "" {
			pass = v
		} else if v := qs.Get("key"); v != "" {
			pass = v
		}
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		db = qs.Get("database")
	}

	dialTO := 5 * time.Second
	if v := qs.Get("dial_timeout"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dialTO = d
		}
	}
	readTO := time.Duration(0)
	if v := qs.Get("read_timeout"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			readTO = d
		}
	}

	settings := clickhouse.Settings{}
	maxQuerySize := uint64(16 << 20) // 16 MiB default
	if v := qs.Get("max_query_size"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			maxQuerySize = n
		}
	}
	settings["max_query_size"] = maxQuerySize

	maxDepth := uint64(10000)
	if v := qs.Get("max_parser_depth"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			maxDepth = n
		}
	}
	settings["max_parser_depth"] = maxDepth
	settings["max_insert_block_size"] = 10000
	settings["max_execution_time"] = 0

	d := &net.Dialer{Timeout: dialTO}
	dialFn := func(ctx context.Context, addr string) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	}

	ccfg := ch.Config{
		Addrs:      []string{u.Host},
		Protocol:   proto,
		TLS:        tlsCfg,
		Auth:       clickhouse.Auth{Database: db, Username: user, Password: pass},
		Dialer:     dialFn,
		Settings:   settings,
		ClientInfo: ch.BuildClientInfo(c.ClientName, c.ClientTag),

		DialTimeout: dialTO,
		ReadTimeout: readTO,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},

		InsertChunk: c.InsertChunk,
		MaxRetries:  c.MaxRetries,
		RetryBase:   time.Duration(c.RetryBaseMs) * time.Millisecond,
	}

	return ccfg, nil
}
