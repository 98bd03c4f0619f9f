// Command searchetl runs the daily search-events batch pipeline for a single
// processing date.
//
// Usage:
//
//	searchetl -config configs/pipelines/search_events.json -date 2026-01-15
//
// Flags fall back to environment variables (loaded from .env when present)
// and then to built-in defaults. The date defaults to yesterday in UTC, the
// usual schedule for a daily batch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"searchetl/internal/config"
	"searchetl/internal/metrics"
	"searchetl/internal/metrics/prompush"
	"searchetl/internal/observability"
	"searchetl/internal/pipeline"
	_ "searchetl/internal/storage/all"
)

const dateLayout = "2006-01-02"

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var (
		configPath     = flag.String("config", envOr("SEARCHETL_CONFIG", "configs/pipelines/search_events.json"), "path to the pipeline config file")
		dateStr        = flag.String("date", envOr("SEARCHETL_DATE", ""), "processing date (YYYY-MM-DD); defaults to yesterday UTC")
		metricsBackend = flag.String("metrics-backend", envOr("SEARCHETL_METRICS_BACKEND", "none"), "metrics backend: pushgateway or none")
		pushgatewayURL = flag.String("pushgateway-url", envOr("SEARCHETL_PUSHGATEWAY_URL", ""), "Prometheus Pushgateway base URL")
		validateOnly   = flag.Bool("validate", false, "validate the config and exit")
		verbose        = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	observability.InitLogger("searchetl", os.Getenv("APP_ENV"))
	observability.SetVerbose(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Str("path", *configPath).Msg("failed to load config")
		os.Exit(1)
	}

	issues := config.ValidatePipeline(cfg)
	hasErrors := false
	for _, issue := range issues {
		switch issue.Severity {
		case config.SeverityError:
			hasErrors = true
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		default:
			log.Warn().Str("path", issue.Path).Msg(issue.Message)
		}
	}
	if hasErrors {
		os.Exit(1)
	}
	if *validateOnly {
		fmt.Printf("%s: ok (%d warnings)\n", *configPath, len(issues))
		return
	}

	date, err := resolveDate(*dateStr, time.Now)
	if err != nil {
		log.Error().Err(err).Msg("invalid -date")
		os.Exit(1)
	}

	if err := initMetrics(cfg.Job, *metricsBackend, *pushgatewayURL); err != nil {
		log.Error().Err(err).Msg("failed to init metrics backend")
		os.Exit(1)
	}
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("failed to push metrics")
		}
	}()

	runID := uuid.NewString()
	ctx := context.Background()

	res, err := pipeline.Run(ctx, pipeline.Options{
		Config: cfg,
		Date:   date,
		RunID:  runID,
	})
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("pipeline run failed")
		os.Exit(1)
	}

	log.Info().
		Str("run_id", runID).
		Int64("loaded", res.Counters.Loaded).
		Int("metric_rows", res.Counters.MetricRows).
		Msg("pipeline run complete")
}

// resolveDate parses the -date flag; empty means yesterday UTC.
func resolveDate(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		return now().UTC().AddDate(0, 0, -1), nil
	}
	d, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

func initMetrics(job, backend, gatewayURL string) error {
	switch backend {
	case "", "none":
		return nil
	case "pushgateway":
		b, err := prompush.NewBackend(job, gatewayURL)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
		return nil
	default:
		return fmt.Errorf("unknown metrics backend %q", backend)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
