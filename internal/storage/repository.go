// Package storage contains the storage-agnostic warehouse contract and the
// backend factory. Concrete backends (postgres, sqlite) register themselves
// at init time; the rest of the application depends only on the Repository
// interface and never imports a database driver directly.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"searchetl/internal/warehouse"
)

// Repository is the warehouse surface used by the pipeline.
//
// The Replace* operations are the idempotency boundary: each one atomically
// removes the target date's rows and inserts the replacements inside a single
// transaction, so re-running a date can never duplicate rows or leave a
// half-loaded partition behind.
type Repository interface {
	// EnsureSchema creates the output tables if they do not exist. The order
	// ledger is external and is never created or written.
	EnsureSchema(ctx context.Context) error

	// ReplaceFactPartition atomically replaces the fact partition for date
	// and returns the number of rows written.
	ReplaceFactPartition(ctx context.Context, date time.Time, rows []warehouse.FactRow) (int64, error)

	// FactPartition reads back the loaded partition for date.
	FactPartition(ctx context.Context, date time.Time) ([]warehouse.FactRow, error)

	// OrdersInWindow returns ledger rows for the given users whose order date
	// lies in [from, to] inclusive.
	OrdersInWindow(ctx context.Context, users []string, from, to time.Time) ([]warehouse.Order, error)

	// ReplaceAttribution atomically replaces attribution rows for date.
	ReplaceAttribution(ctx context.Context, date time.Time, rows []warehouse.AttributionRow) error

	// ReplaceDailyMetrics atomically replaces the daily aggregate for date.
	ReplaceDailyMetrics(ctx context.Context, date time.Time, rows []warehouse.DailyMetrics) error

	// ReplaceZeroResultTerms atomically replaces the zero-result term report
	// for date.
	ReplaceZeroResultTerms(ctx context.Context, date time.Time, rows []warehouse.ZeroResultTerm) error

	// PartitionStats summarizes the loaded fact partition for the post-load
	// checks.
	PartitionStats(ctx context.Context, date time.Time) (warehouse.PartitionStats, error)

	Close()
}

// Config selects and parameterizes a backend. Table names are configurable
// so several environments can share one database.
type Config struct {
	Kind             string // registered backend kind, e.g. "postgres"
	DSN              string
	FactTable        string
	OrdersTable      string
	AttributionTable string
	MetricsTable     string
	TermsTable       string
}

// Factory constructs a Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) a backend factory for the given kind. It
// is typically called from backend packages' init() functions.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New constructs the Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
