// Package quality implements the post-load validation checks. Checks are
// independent, order-insensitive predicates over the loaded partition; they
// never roll the load back. A FAIL is an operational signal for follow-up,
// not an abort, unless the pipeline is configured strict.
package quality

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"searchetl/internal/storage"
	"searchetl/internal/warehouse"
)

// DefaultRecordCountTolerance is the allowed absolute difference between
// loaded and extracted row counts.
const DefaultRecordCountTolerance = 100

// Check names, stable for logs, metrics, and alerts.
const (
	CheckDuplicates  = "duplicate_check"
	CheckRecordCount = "record_count_check"
	CheckNullFields  = "null_critical_fields_check"
)

// Verdict is the outcome of one named check.
type Verdict struct {
	Name   string
	Pass   bool
	Detail string
}

// Input carries everything the checks need.
type Input struct {
	Date           time.Time
	ExtractedCount int64 // source-side row count from this run's extraction
	Tolerance      int64 // record-count tolerance; <=0 means the default
}

// check pairs a name with its predicate so the three checks stay one ordered
// list instead of three copies of the same scaffolding.
type check struct {
	name string
	run  func(st warehouse.PartitionStats) Verdict
}

func checks(in Input) []check {
	tol := in.Tolerance
	if tol <= 0 {
		tol = DefaultRecordCountTolerance
	}
	return []check{
		{
			name: CheckDuplicates,
			run: func(st warehouse.PartitionStats) Verdict {
				extra := st.RowCount - st.DistinctKeyCount
				return Verdict{
					Name:   CheckDuplicates,
					Pass:   extra == 0,
					Detail: fmt.Sprintf("rows=%d distinct=%d duplicates=%d", st.RowCount, st.DistinctKeyCount, extra),
				}
			},
		},
		{
			name: CheckRecordCount,
			run: func(st warehouse.PartitionStats) Verdict {
				diff := st.RowCount - in.ExtractedCount
				if diff < 0 {
					diff = -diff
				}
				return Verdict{
					Name:   CheckRecordCount,
					Pass:   diff < tol,
					Detail: fmt.Sprintf("loaded=%d source=%d diff=%d tolerance=%d", st.RowCount, in.ExtractedCount, diff, tol),
				}
			},
		},
		{
			name: CheckNullFields,
			run: func(st warehouse.PartitionStats) Verdict {
				return Verdict{
					Name:   CheckNullFields,
					Pass:   st.NullCritical == 0,
					Detail: fmt.Sprintf("null_critical=%d", st.NullCritical),
				}
			},
		},
	}
}

// Run fetches partition stats once and evaluates all checks concurrently
// (they are independent by contract). Verdicts come back in check order.
func Run(ctx context.Context, repo storage.Repository, in Input) ([]Verdict, error) {
	st, err := repo.PartitionStats(ctx, in.Date)
	if err != nil {
		return nil, fmt.Errorf("quality: %w", err)
	}

	cs := checks(in)
	verdicts := make([]Verdict, len(cs))

	g, _ := errgroup.WithContext(ctx)
	for i, c := range cs {
		i, c := i, c
		g.Go(func() error {
			verdicts[i] = c.run(st)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

// Failed returns the names of failing verdicts.
func Failed(vs []Verdict) []string {
	var out []string
	for _, v := range vs {
		if !v.Pass {
			out = append(out, v.Name)
		}
	}
	return out
}
