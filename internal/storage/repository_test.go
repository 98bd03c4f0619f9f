package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchetl/internal/warehouse"
)

type stubRepo struct{ kind string }

func (stubRepo) EnsureSchema(context.Context) error { return nil }
func (stubRepo) ReplaceFactPartition(context.Context, time.Time, []warehouse.FactRow) (int64, error) {
	return 0, nil
}
func (stubRepo) FactPartition(context.Context, time.Time) ([]warehouse.FactRow, error) {
	return nil, nil
}
func (stubRepo) OrdersInWindow(context.Context, []string, time.Time, time.Time) ([]warehouse.Order, error) {
	return nil, nil
}
func (stubRepo) ReplaceAttribution(context.Context, time.Time, []warehouse.AttributionRow) error {
	return nil
}
func (stubRepo) ReplaceDailyMetrics(context.Context, time.Time, []warehouse.DailyMetrics) error {
	return nil
}
func (stubRepo) ReplaceZeroResultTerms(context.Context, time.Time, []warehouse.ZeroResultTerm) error {
	return nil
}
func (stubRepo) PartitionStats(context.Context, time.Time) (warehouse.PartitionStats, error) {
	return warehouse.PartitionStats{}, nil
}
func (stubRepo) Close() {}

func TestRegisterAndNew(t *testing.T) {
	Register("stub-a", func(ctx context.Context, cfg Config) (Repository, error) {
		return stubRepo{kind: "stub-a"}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "stub-a"})
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, "stub-a", repo.(stubRepo).kind)
}

func TestNewUnsupportedKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "no-such-backend"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage.kind=no-such-backend")
}

func TestListKindsSorted(t *testing.T) {
	Register("stub-z", func(ctx context.Context, cfg Config) (Repository, error) {
		return stubRepo{}, nil
	})
	Register("stub-b", func(ctx context.Context, cfg Config) (Repository, error) {
		return stubRepo{}, nil
	})

	kinds := ListKinds()
	assert.Contains(t, kinds, "stub-b")
	assert.Contains(t, kinds, "stub-z")
	for i := 1; i < len(kinds); i++ {
		assert.LessOrEqual(t, kinds[i-1], kinds[i])
	}
}

func TestConfigPassedToFactory(t *testing.T) {
	var got Config
	Register("stub-cfg", func(ctx context.Context, cfg Config) (Repository, error) {
		got = cfg
		return stubRepo{}, nil
	})

	want := Config{
		Kind:             "stub-cfg",
		DSN:              "dsn://x",
		FactTable:        "f",
		OrdersTable:      "o",
		AttributionTable: "a",
		MetricsTable:     "m",
		TermsTable:       "t",
	}
	_, err := New(context.Background(), want)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
