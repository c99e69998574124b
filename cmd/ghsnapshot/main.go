package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"ghsnapshot/internal/adapters/analytics"
	"ghsnapshot/internal/adapters/github"
	"ghsnapshot/internal/core/scrape"
	"ghsnapshot/internal/platform/apicache"
	"ghsnapshot/internal/platform/config"
	"ghsnapshot/internal/platform/logger"
	"ghsnapshot/internal/platform/ratelimit"
	"ghsnapshot/internal/platform/store"
	"ghsnapshot/internal/services/snapshot"
)

func main() {
	_ = godotenv.Load() // optional .env, mirrors the reference implementation's env_file loading

	root := config.New()
	ghCfg := root.Prefix("GITHUB_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	runCfg := root.Prefix("SNAPSHOT_")

	l := logger.Get()

	// exitCode is applied after every deferred Close below has run, so a
	// failed run still shuts its collaborators down before the process exits.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	location, err := time.LoadLocation(runCfg.MayString("TIMEZONE", "Europe/Moscow"))
	if err != nil {
		l.Warn().Err(err).Msg("main: unknown timezone, falling back to UTC")
		location = time.UTC
	}

	st, err := store.Open(context.Background(), store.Config{
		AppName: "ghsnapshot",
		CH: store.CHConfig{
			Enabled:     true,
			URL:         chCfg.MustString("DBURL"),
			LogSQL:      chCfg.MayBool("LOG_SQL", false),
			ClientName:  "ghsnapshot",
			ClientTag:   "snapshot",
			InsertChunk: runCfg.MayInt("BATCH_SIZE", 1000),
			MaxRetries:  chCfg.MayInt("MAX_RETRIES", 3),
			RetryBaseMs: chCfg.MayInt("RETRY_BASE_MS", 200),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("main: store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("main: failed to close store")
		}
	}()

	rlMetrics := ratelimit.NewMetrics(prometheus.DefaultRegisterer, "github")

	maxConcurrent := runCfg.MayInt("MAX_CONCURRENT", 50)
	limiter, err := ratelimit.NewResourceExtended(*l,
		ratelimit.RateLimit{
			MaxConcurrent:      &maxConcurrent,
			MaxRequestsPerTime: runCfg.MayInt("MAX_REQUESTS_PER_TIME", 4500),
			TimeWindowSeconds:  runCfg.MayInt("TIME_WINDOW_SECONDS", 3600),
		},
		map[string][]ratelimit.RateLimit{
			"search/repositories": {{
				MaxRequestsPerTime: runCfg.MayInt("SEARCH_MAX_REQUESTS", 20),
				TimeWindowSeconds:  runCfg.MayInt("SEARCH_WINDOW_SECONDS", 60),
			}},
		},
		ratelimit.WithMetrics(rlMetrics),
	)
	if err != nil {
		l.Fatal().Err(err).Msg("main: ratelimit configuration invalid")
	}

	cache := apicache.New(runCfg.MayInt("CACHE_SIZE", 1000))

	client := github.NewClient(github.Options{
		Token:          ghCfg.MustString("TOKEN"),
		ConnectTimeout: runCfg.MayDuration("CONNECT_TIMEOUT", 10*time.Second),
		Timeout:        runCfg.MayDuration("SEND_RECEIVE_TIMEOUT", 30*time.Second),
	}, cache, limiter)

	scraper := scrape.New(client, location)
	writer := analytics.New(st.CH, location, runCfg.MayInt("BATCH_SIZE", 1000))

	svc := snapshot.New(scraper, writer, cache, snapshot.Config{
		Qty:   runCfg.MayInt("QTY", 1000),
		Limit: runCfg.MayInt("LIMIT", 100),
	})
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("main: failed to close snapshot service")
		}
	}()

	if err := svc.Run(context.Background()); err != nil {
		l.Error().Err(err).Msg("main: snapshot run failed")
		exitCode = 1
	}
}
