// Package postgres implements the warehouse repository on Postgres using
// pgx v5. Partition replacement runs DELETE plus COPY inside one
// transaction, which is what makes re-running a processing date idempotent:
// the partition is either fully swapped or untouched.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"searchetl/internal/storage"
	"searchetl/internal/warehouse"
)

var dialect = goqu.Dialect("postgres")

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  storage.Config
}

// NewRepository connects a pgx pool to cfg.DSN.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, nil
}

// Close releases the connection pool.
func (r *Repository) Close() { r.pool.Close() }

// EnsureSchema creates the output tables if absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := schemaStatements(r.cfg.FactTable, r.cfg.AttributionTable, r.cfg.MetricsTable, r.cfg.TermsTable)
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ReplaceFactPartition implements storage.Repository.
func (r *Repository) ReplaceFactPartition(ctx context.Context, date time.Time, rows []warehouse.FactRow) (int64, error) {
	vals := make([][]any, 0, len(rows))
	for i := range rows {
		f := &rows[i]
		vals = append(vals, []any{
			f.EventDate,
			f.EventTimestamp,
			f.EventName,
			f.UserPseudoID,
			f.SearchTerm,
			f.ResultCount,
			f.SearchType,
			f.ClickPosition,
			boolToFlag(f.IsZeroResult),
			f.CountryCode,
			f.Region,
			f.DeviceCategory,
			f.TrafficSource,
			f.ProcessedAt,
			f.DataDate,
		})
	}
	return r.replaceByDate(ctx, r.cfg.FactTable, "data_date", date, warehouse.FactColumns, vals)
}

// FactPartition implements storage.Repository.
func (r *Repository) FactPartition(ctx context.Context, date time.Time) ([]warehouse.FactRow, error) {
	cols := make([]any, 0, len(warehouse.FactColumns))
	for _, c := range warehouse.FactColumns {
		cols = append(cols, goqu.C(c))
	}
	sqlStr, args, err := dialect.From(goqu.I(r.cfg.FactTable)).
		Select(cols...).
		Where(goqu.C("data_date").Eq(date)).
		Order(goqu.C("event_timestamp").Asc(), goqu.C("user_pseudo_id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build fact query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("fact partition: %w", err)
	}
	defer rows.Close()

	var out []warehouse.FactRow
	for rows.Next() {
		var f warehouse.FactRow
		var zero int16
		if err := rows.Scan(
			&f.EventDate,
			&f.EventTimestamp,
			&f.EventName,
			&f.UserPseudoID,
			&f.SearchTerm,
			&f.ResultCount,
			&f.SearchType,
			&f.ClickPosition,
			&zero,
			&f.CountryCode,
			&f.Region,
			&f.DeviceCategory,
			&f.TrafficSource,
			&f.ProcessedAt,
			&f.DataDate,
		); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		f.IsZeroResult = zero != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// OrdersInWindow implements storage.Repository.
func (r *Repository) OrdersInWindow(ctx context.Context, users []string, from, to time.Time) ([]warehouse.Order, error) {
	if len(users) == 0 {
		return nil, nil
	}
	sqlStr, args, err := dialect.From(goqu.I(r.cfg.OrdersTable)).
		Select(goqu.C("user_pseudo_id"), goqu.C("order_id"), goqu.C("order_date"), goqu.C("order_value"), goqu.C("product_id")).
		Where(
			goqu.C("user_pseudo_id").In(users),
			goqu.C("order_date").Between(goqu.Range(from, to)),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build orders query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("orders window: %w", err)
	}
	defer rows.Close()

	var out []warehouse.Order
	for rows.Next() {
		var o warehouse.Order
		if err := rows.Scan(&o.UserPseudoID, &o.OrderID, &o.OrderDate, &o.OrderValue, &o.ProductID); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ReplaceAttribution implements storage.Repository.
func (r *Repository) ReplaceAttribution(ctx context.Context, date time.Time, rows []warehouse.AttributionRow) error {
	vals := make([][]any, 0, len(rows))
	for i := range rows {
		a := &rows[i]
		vals = append(vals, []any{
			a.EventDate,
			a.UserPseudoID,
			a.SearchTerm,
			a.SearchType,
			a.CountryCode,
			a.Region,
			a.OrderID,
			a.OrderDate,
			a.OrderValue,
			a.ProductID,
		})
	}
	_, err := r.replaceByDate(ctx, r.cfg.AttributionTable, "event_date", date, warehouse.AttributionColumns, vals)
	return err
}

// ReplaceDailyMetrics implements storage.Repository.
func (r *Repository) ReplaceDailyMetrics(ctx context.Context, date time.Time, rows []warehouse.DailyMetrics) error {
	vals := make([][]any, 0, len(rows))
	for i := range rows {
		m := &rows[i]
		vals = append(vals, []any{
			m.EventDate,
			m.Region,
			m.CountryCode,
			m.UniqueUsers,
			m.TotalSearches,
			m.SearchesWithClicks,
			m.EngagementRatePct,
			m.ZeroResultSearches,
			m.ZeroResultRatePct,
			m.DefaultSearches,
			m.AutoSuggestionSearches,
			m.KeywordBoxSearches,
			m.Refinements,
			m.RefinementRatePct,
			m.AvgResultsReturned,
			m.UsersWithOrders,
			m.TotalRevenue,
			m.ConversionRatePct,
		})
	}
	_, err := r.replaceByDate(ctx, r.cfg.MetricsTable, "event_date", date, warehouse.DailyMetricsColumns, vals)
	return err
}

// ReplaceZeroResultTerms implements storage.Repository.
func (r *Repository) ReplaceZeroResultTerms(ctx context.Context, date time.Time, rows []warehouse.ZeroResultTerm) error {
	vals := make([][]any, 0, len(rows))
	for i := range rows {
		t := &rows[i]
		vals = append(vals, []any{t.EventDate, t.SearchTerm, t.Searches, t.SharePct})
	}
	_, err := r.replaceByDate(ctx, r.cfg.TermsTable, "event_date", date, warehouse.ZeroResultTermColumns, vals)
	return err
}

// PartitionStats implements storage.Repository.
func (r *Repository) PartitionStats(ctx context.Context, date time.Time) (warehouse.PartitionStats, error) {
	var st warehouse.PartitionStats
	q := fmt.Sprintf(`SELECT
	count(*),
	count(DISTINCT (event_timestamp, user_pseudo_id)),
	count(*) FILTER (WHERE user_pseudo_id IS NULL OR user_pseudo_id = '' OR event_date IS NULL)
FROM %s WHERE data_date = $1`, pgFQN(r.cfg.FactTable))

	if err := r.pool.QueryRow(ctx, q, date).Scan(&st.RowCount, &st.DistinctKeyCount, &st.NullCritical); err != nil {
		return st, fmt.Errorf("partition stats: %w", err)
	}
	return st, nil
}

// replaceByDate deletes the target date's rows and COPYs the replacements in
// one transaction. Either both land or neither does.
func (r *Repository) replaceByDate(ctx context.Context, table, dateCol string, date time.Time, columns []string, rows [][]any) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", pgFQN(table), pgIdent(dateCol))
	if _, err := tx.Exec(ctx, del, date); err != nil {
		return 0, fmt.Errorf("delete partition %s: %w", table, err)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, splitFQN(table), columns, pgx.CopyFromRows(rows))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Detail != "" {
				return 0, fmt.Errorf("copy into %s: %s (%s)", table, pgErr.Detail, pgErr.SQLState())
			}
			return 0, fmt.Errorf("copy into %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

func boolToFlag(b bool) int16 {
	if b {
		return 1
	}
	return 0
}
