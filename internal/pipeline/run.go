// Package pipeline executes the daily batch run: extract, dedupe, enrich,
// load, attribute/aggregate, then validate, strictly in that order, each
// stage consuming the previous stage's output.
//
// The processing date is an explicit parameter threaded through every stage;
// no stage reads the clock to decide what data to touch, which keeps runs
// deterministic and replayable. Re-running a date is always safe because
// every write goes through the repository's atomic partition replacement.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"searchetl/internal/attribution"
	"searchetl/internal/config"
	"searchetl/internal/datasource/file"
	"searchetl/internal/dedupe"
	"searchetl/internal/enrich"
	"searchetl/internal/extract"
	"searchetl/internal/ga4"
	"searchetl/internal/metrics"
	"searchetl/internal/quality"
	"searchetl/internal/storage"
	"searchetl/internal/warehouse"
)

// ErrChecksFailed is returned (only in strict mode) when at least one
// post-load check fails. The partition stays published either way.
var ErrChecksFailed = errors.New("post-load checks failed")

// newRepositoryFn is a test seam; production code resolves backends through
// the storage factory.
var newRepositoryFn = storage.New

// Counters aggregates row-level statistics for one run.
type Counters struct {
	Extracted         int   // flattened search events (source-side count)
	ParseErrors       int   // undecodable landing lines
	Filtered          int   // events outside the target category
	DroppedMissingID  int   // rows lacking timestamp or user id
	Duplicates        int   // exact duplicates collapsed
	MalformedClickPos int   // click events with unparseable position
	Loaded            int64 // rows written to the fact partition
	AttributionRows   int
	MetricRows        int
	ZeroResultTerms   int
}

// Options parameterizes one run.
type Options struct {
	Config config.Pipeline
	Date   time.Time // processing date; normalized to midnight UTC
	RunID  string
	Now    func() time.Time // wall clock seam; defaults to time.Now
}

// Result is what a completed run reports.
type Result struct {
	Counters Counters
	Verdicts []quality.Verdict
}

// Run executes the full pipeline for one processing date.
func Run(ctx context.Context, opts Options) (Result, error) {
	var res Result

	cfg := opts.Config
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	date := midnightUTC(opts.Date)

	logger := log.With().
		Str("job", cfg.Job).
		Str("run_id", opts.RunID).
		Str("date", date.Format("2006-01-02")).
		Logger()

	step := func(name string, fn func() error) error {
		start := now()
		err := fn()
		d := now().Sub(start)
		metrics.RecordStep(cfg.Job, name, err, d)
		if err != nil {
			logger.Error().Err(err).Str("step", name).Dur("took", d).Msg("stage failed")
			return fmt.Errorf("%s: %w", name, err)
		}
		logger.Debug().Str("step", name).Dur("took", d).Msg("stage done")
		return nil
	}

	regions, err := enrich.LoadRegionMap(cfg.Enrich.RegionsPath)
	if err != nil {
		return res, err
	}

	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:             cfg.Storage.Kind,
		DSN:              cfg.Storage.DB.DSN,
		FactTable:        cfg.Storage.DB.FactTable,
		OrdersTable:      cfg.Storage.DB.OrdersTable,
		AttributionTable: cfg.Storage.DB.AttributionTable,
		MetricsTable:     cfg.Storage.DB.MetricsTable,
		TermsTable:       cfg.Storage.DB.TermsTable,
	})
	if err != nil {
		return res, fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	if cfg.Storage.DB.AutoCreateSchema {
		if err := step("ensure_schema", func() error {
			return repo.EnsureSchema(ctx)
		}); err != nil {
			return res, err
		}
	}

	// 1) Extract.
	parseSample := newErrSample(3)
	var events []ga4.SearchEvent
	if err := step("extract", func() error {
		x := &extract.Extractor{
			Source:   file.NewPartitionSource(cfg.Landing.Root),
			Category: cfg.Landing.Category,
			OnParseErr: func(line int, err error) {
				parseSample.add(err.Error())
			},
		}
		evs, stats, err := x.Extract(ctx, date)
		if err != nil {
			return err
		}
		events = evs
		res.Counters.Extracted = stats.Extracted
		res.Counters.ParseErrors = stats.ParseErrs
		res.Counters.Filtered = stats.Filtered
		return nil
	}); err != nil {
		return res, err
	}
	parseSample.log(&logger, "parse errors")

	// 2) Dedupe.
	var deduped []ga4.SearchEvent
	if err := step("dedupe", func() error {
		out, stats := dedupe.Dedupe(events)
		deduped = out
		res.Counters.DroppedMissingID = stats.DroppedMissingID
		res.Counters.Duplicates = stats.Duplicates
		return nil
	}); err != nil {
		return res, err
	}

	// 3) Enrich.
	var facts []warehouse.FactRow
	if err := step("enrich", func() error {
		enricher := &enrich.Enricher{
			Regions:     regions,
			ProcessedAt: now().UTC(),
			DataDate:    date,
			OnMalformed: func(ev *ga4.SearchEvent, reason string) {
				logger.Warn().
					Str("user", ev.UserPseudoID).
					Int64("ts", ev.EventTimestamp).
					Str("label", ev.EventLabel).
					Str("reason", reason).
					Msg("malformed click position")
			},
		}
		out, stats := enricher.Enrich(deduped)
		facts = out
		res.Counters.MalformedClickPos = stats.MalformedClickPos
		return nil
	}); err != nil {
		return res, err
	}

	// 4) Load.
	if err := step("load", func() error {
		n, err := repo.ReplaceFactPartition(ctx, date, facts)
		if err != nil {
			return err
		}
		res.Counters.Loaded = n
		return nil
	}); err != nil {
		return res, err
	}

	// 5) Attribute and aggregate.
	if err := step("attribute", func() error {
		users := distinctUsers(facts)
		windowEnd := date.AddDate(0, 0, cfg.Attribution.WindowDays)
		orders, err := repo.OrdersInWindow(ctx, users, date, windowEnd)
		if err != nil {
			return err
		}

		attrib := attribution.Attribute(facts, orders, cfg.Attribution.WindowDays)
		if err := repo.ReplaceAttribution(ctx, date, attrib); err != nil {
			return err
		}
		res.Counters.AttributionRows = len(attrib)

		daily := attribution.AggregateDaily(facts, attrib)
		if err := repo.ReplaceDailyMetrics(ctx, date, daily); err != nil {
			return err
		}
		res.Counters.MetricRows = len(daily)

		terms := attribution.ZeroResultTerms(facts, date, cfg.Attribution.TopZeroResultTerms)
		if err := repo.ReplaceZeroResultTerms(ctx, date, terms); err != nil {
			return err
		}
		res.Counters.ZeroResultTerms = len(terms)
		return nil
	}); err != nil {
		return res, err
	}

	// 6) Validate (advisory unless strict).
	if err := step("validate", func() error {
		vs, err := quality.Run(ctx, repo, quality.Input{
			Date:           date,
			ExtractedCount: int64(res.Counters.Extracted),
			Tolerance:      int64(cfg.Validation.RecordCountTolerance),
		})
		if err != nil {
			return err
		}
		res.Verdicts = vs
		return nil
	}); err != nil {
		return res, err
	}

	for _, v := range res.Verdicts {
		metrics.RecordCheck(cfg.Job, v.Name, v.Pass)
		evt := logger.Info()
		if !v.Pass {
			evt = logger.Warn()
		}
		evt.Str("check", v.Name).Bool("pass", v.Pass).Str("detail", v.Detail).Msg("post-load check")
	}

	recordRowCounters(cfg.Job, &res.Counters)
	logSummary(&logger, &res.Counters)

	if failed := quality.Failed(res.Verdicts); len(failed) > 0 && cfg.Validation.Strict {
		return res, fmt.Errorf("%w: %s", ErrChecksFailed, strings.Join(failed, ", "))
	}
	return res, nil
}

func recordRowCounters(job string, c *Counters) {
	metrics.RecordRows(job, "extracted", int64(c.Extracted))
	metrics.RecordRows(job, "parse_errors", int64(c.ParseErrors))
	metrics.RecordRows(job, "filtered", int64(c.Filtered))
	metrics.RecordRows(job, "dropped_missing_id", int64(c.DroppedMissingID))
	metrics.RecordRows(job, "duplicates", int64(c.Duplicates))
	metrics.RecordRows(job, "malformed_click_position", int64(c.MalformedClickPos))
	metrics.RecordRows(job, "loaded", c.Loaded)
}

// logSummary prints final aggregated statistics for the run.
//
// Invariant for landing lines: extracted + parse_errors + filtered equals the
// lines read, and extracted == loaded + dropped_missing_id + duplicates.
func logSummary(logger *zerolog.Logger, c *Counters) {
	logger.Info().
		Int("extracted", c.Extracted).
		Int("parse_errors", c.ParseErrors).
		Int("filtered", c.Filtered).
		Int("dropped_missing_id", c.DroppedMissingID).
		Int("duplicates", c.Duplicates).
		Int("malformed_click_position", c.MalformedClickPos).
		Int64("loaded", c.Loaded).
		Int("attribution_rows", c.AttributionRows).
		Int("metric_rows", c.MetricRows).
		Int("zero_result_terms", c.ZeroResultTerms).
		Msg("run summary")

	accounted := int64(c.DroppedMissingID) + int64(c.Duplicates) + c.Loaded
	if accounted != int64(c.Extracted) {
		logger.Warn().
			Int("extracted", c.Extracted).
			Int64("accounted", accounted).
			Msg("row accounting mismatch")
	}
}

// distinctUsers collects the unique user ids of the day's facts, preserving
// first-seen order for deterministic query parameters.
func distinctUsers(facts []warehouse.FactRow) []string {
	seen := make(map[string]struct{}, len(facts))
	users := make([]string, 0, len(facts))
	for i := range facts {
		id := facts[i].UserPseudoID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}
	return users
}

// errSample keeps the first few distinct error messages so a noisy partition
// does not flood the log.
type errSample struct {
	max   int
	total int
	msgs  []string
}

func newErrSample(max int) *errSample {
	return &errSample{max: max}
}

func (s *errSample) add(msg string) {
	s.total++
	if len(s.msgs) < s.max {
		s.msgs = append(s.msgs, msg)
	}
}

func (s *errSample) log(logger *zerolog.Logger, what string) {
	if s.total == 0 {
		return
	}
	logger.Warn().
		Int("total", s.total).
		Strs("sample", s.msgs).
		Msg(what)
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
