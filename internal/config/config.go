// Package config defines the canonical, JSON-serializable configuration
// model for the pipeline. It is intentionally small, explicit, and
// dependency-free so pipeline files can be loaded from disk and passed
// through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Go field names mirror the JSON structure used in pipeline
//     files under configs/pipelines/*.json.
//  3. Minimalism: no third-party config libraries; decoding is performed by
//     the standard library. Environment-level settings (.env) are handled by
//     the CLI layer, not here.
//
// Example (trimmed):
//
//	{
//	  "job": "search_events_daily",
//	  "landing": { "root": "data/landing", "category": "global search" },
//	  "enrich":  { "regions_path": "configs/regions.json" },
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgresql://..." } },
//	  "attribution": { "window_days": 30 },
//	  "validation":  { "record_count_tolerance": 100 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the pipeline for metrics labeling and run identification.
	Job string `json:"job"`

	// Landing describes the raw-event landing store.
	Landing Landing `json:"landing"`

	// Enrich configures the enrichment stage.
	Enrich Enrich `json:"enrich"`

	// Storage selects and parameterizes the warehouse backend.
	Storage Storage `json:"storage"`

	// Attribution configures the order join and daily rollup.
	Attribution Attribution `json:"attribution"`

	// Validation configures the post-load checks.
	Validation Validation `json:"validation"`
}

// Landing locates the day-partitioned raw-event store.
type Landing struct {
	// Root is the directory holding events_YYYYMMDD.ndjson partitions.
	Root string `json:"root"`

	// Category filters raw events; defaults to "global search".
	Category string `json:"category"`
}

// Enrich configures the enrichment stage.
type Enrich struct {
	// RegionsPath points at the external country→region mapping file.
	RegionsPath string `json:"regions_path"`
}

// Storage selects the warehouse backend.
type Storage struct {
	// Kind selects the backend implementation ("postgres", "sqlite").
	Kind string `json:"kind"`

	// DB carries the backend connection and table configuration.
	DB DBConfig `json:"db"`
}

// DBConfig configures the warehouse connection and table names.
type DBConfig struct {
	// DSN is the backend connection string.
	DSN string `json:"dsn"`

	// Table names; empty values take the defaults below. The orders table is
	// external and read-only.
	FactTable        string `json:"fact_table"`
	OrdersTable      string `json:"orders_table"`
	AttributionTable string `json:"attribution_table"`
	MetricsTable     string `json:"metrics_table"`
	TermsTable       string `json:"zero_result_terms_table"`

	// AutoCreateSchema creates the output tables on first use.
	AutoCreateSchema bool `json:"auto_create_schema"`
}

// Attribution configures the order join and reporting rollup.
type Attribution struct {
	// WindowDays is the forward attribution window; defaults to 30.
	WindowDays int `json:"window_days"`

	// TopZeroResultTerms caps the daily content-gap report; defaults to 20.
	TopZeroResultTerms int `json:"top_zero_result_terms"`
}

// Validation configures the post-load checks.
type Validation struct {
	// RecordCountTolerance is the allowed |loaded - extracted| difference;
	// defaults to 100.
	RecordCountTolerance int `json:"record_count_tolerance"`

	// Strict makes a failing check fail the run. Default (false) keeps the
	// checks advisory: the partition is already published when they execute.
	Strict bool `json:"strict"`
}

// Default table names.
const (
	DefaultFactTable        = "search_events_fact"
	DefaultOrdersTable      = "orders"
	DefaultAttributionTable = "search_order_attribution"
	DefaultMetricsTable     = "search_metrics_daily"
	DefaultTermsTable       = "zero_result_terms_daily"
)

// Load reads and decodes a pipeline file and applies defaults.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode config %s: %w", path, err)
	}
	p.ApplyDefaults()
	return p, nil
}

// ApplyDefaults fills unset optional fields in place.
func (p *Pipeline) ApplyDefaults() {
	if p.Storage.DB.FactTable == "" {
		p.Storage.DB.FactTable = DefaultFactTable
	}
	if p.Storage.DB.OrdersTable == "" {
		p.Storage.DB.OrdersTable = DefaultOrdersTable
	}
	if p.Storage.DB.AttributionTable == "" {
		p.Storage.DB.AttributionTable = DefaultAttributionTable
	}
	if p.Storage.DB.MetricsTable == "" {
		p.Storage.DB.MetricsTable = DefaultMetricsTable
	}
	if p.Storage.DB.TermsTable == "" {
		p.Storage.DB.TermsTable = DefaultTermsTable
	}
	if p.Attribution.WindowDays == 0 {
		p.Attribution.WindowDays = 30
	}
	if p.Attribution.TopZeroResultTerms == 0 {
		p.Attribution.TopZeroResultTerms = 20
	}
	if p.Validation.RecordCountTolerance == 0 {
		p.Validation.RecordCountTolerance = 100
	}
}
