package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchetl/internal/warehouse"
)

// statsRepo is a Repository stub that only answers PartitionStats.
type statsRepo struct {
	fakeRepo
	stats warehouse.PartitionStats
	err   error
}

func (r *statsRepo) PartitionStats(ctx context.Context, date time.Time) (warehouse.PartitionStats, error) {
	return r.stats, r.err
}

// fakeRepo provides panicking defaults so a check reaching past
// PartitionStats fails loudly.
type fakeRepo struct{}

func (fakeRepo) EnsureSchema(context.Context) error { return nil }
func (fakeRepo) ReplaceFactPartition(context.Context, time.Time, []warehouse.FactRow) (int64, error) {
	panic("not expected")
}
func (fakeRepo) FactPartition(context.Context, time.Time) ([]warehouse.FactRow, error) {
	panic("not expected")
}
func (fakeRepo) OrdersInWindow(context.Context, []string, time.Time, time.Time) ([]warehouse.Order, error) {
	panic("not expected")
}
func (fakeRepo) ReplaceAttribution(context.Context, time.Time, []warehouse.AttributionRow) error {
	panic("not expected")
}
func (fakeRepo) ReplaceDailyMetrics(context.Context, time.Time, []warehouse.DailyMetrics) error {
	panic("not expected")
}
func (fakeRepo) ReplaceZeroResultTerms(context.Context, time.Time, []warehouse.ZeroResultTerm) error {
	panic("not expected")
}
func (fakeRepo) PartitionStats(context.Context, time.Time) (warehouse.PartitionStats, error) {
	panic("not expected")
}
func (fakeRepo) Close() {}

var checkDate = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func runChecks(t *testing.T, stats warehouse.PartitionStats, in Input) []Verdict {
	t.Helper()
	repo := &statsRepo{stats: stats}
	vs, err := Run(context.Background(), repo, in)
	require.NoError(t, err)
	require.Len(t, vs, 3)
	return vs
}

func byName(t *testing.T, vs []Verdict, name string) Verdict {
	t.Helper()
	for _, v := range vs {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("no verdict %q", name)
	return Verdict{}
}

func TestAllChecksPass(t *testing.T) {
	vs := runChecks(t,
		warehouse.PartitionStats{RowCount: 950, DistinctKeyCount: 950, NullCritical: 0},
		Input{Date: checkDate, ExtractedCount: 1000, Tolerance: 100},
	)
	for _, v := range vs {
		assert.True(t, v.Pass, "%s: %s", v.Name, v.Detail)
	}
}

func TestDuplicateCheckFails(t *testing.T) {
	vs := runChecks(t,
		warehouse.PartitionStats{RowCount: 1000, DistinctKeyCount: 998},
		Input{Date: checkDate, ExtractedCount: 1000, Tolerance: 100},
	)
	v := byName(t, vs, CheckDuplicates)
	assert.False(t, v.Pass)
	assert.Contains(t, v.Detail, "duplicates=2")
}

func TestRecordCountTolerance(t *testing.T) {
	tests := []struct {
		name      string
		loaded    int64
		extracted int64
		pass      bool
	}{
		{"within tolerance", 950, 1000, true},
		{"outside tolerance", 800, 1000, false},
		{"exactly at tolerance boundary", 900, 1000, false}, // diff == tolerance fails
		{"one inside boundary", 901, 1000, true},
		{"loaded exceeds source", 1099, 1000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := runChecks(t,
				warehouse.PartitionStats{RowCount: tt.loaded, DistinctKeyCount: tt.loaded},
				Input{Date: checkDate, ExtractedCount: tt.extracted, Tolerance: 100},
			)
			assert.Equal(t, tt.pass, byName(t, vs, CheckRecordCount).Pass)
		})
	}
}

func TestNullCriticalCheckFails(t *testing.T) {
	vs := runChecks(t,
		warehouse.PartitionStats{RowCount: 10, DistinctKeyCount: 10, NullCritical: 3},
		Input{Date: checkDate, ExtractedCount: 10},
	)
	v := byName(t, vs, CheckNullFields)
	assert.False(t, v.Pass)
	assert.Contains(t, v.Detail, "null_critical=3")
}

func TestRunPropagatesStatsError(t *testing.T) {
	repo := &statsRepo{err: errors.New("connection refused")}
	_, err := Run(context.Background(), repo, Input{Date: checkDate})
	assert.Error(t, err)
}

func TestFailedNames(t *testing.T) {
	vs := []Verdict{
		{Name: CheckDuplicates, Pass: true},
		{Name: CheckRecordCount, Pass: false},
		{Name: CheckNullFields, Pass: false},
	}
	assert.Equal(t, []string{CheckRecordCount, CheckNullFields}, Failed(vs))
	assert.Empty(t, Failed(vs[:1]))
}
