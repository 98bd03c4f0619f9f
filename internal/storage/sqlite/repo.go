// Package sqlite implements the warehouse repository on SQLite via
// database/sql, intended for local development and small deployments. SQLite
// has no COPY; partition replacement runs DELETE plus batched multi-value
// INSERTs inside one transaction, which preserves the same all-or-nothing
// idempotency contract as the Postgres backend.
//
// Dates are stored as TEXT ("2006-01-02"), timestamps as RFC 3339.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "modernc.org/sqlite"

	"searchetl/internal/storage"
	"searchetl/internal/warehouse"
)

var dialect = goqu.Dialect("sqlite3")

const (
	dateLayout      = "2006-01-02"
	insertBatchSize = 200
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
}

// NewRepository opens a SQLite database at cfg.DSN, e.g. "warehouse.db" or
// "file:warehouse.db?cache=shared".
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &Repository{db: db, cfg: cfg}, nil
}

// Close closes the underlying database handle.
func (r *Repository) Close() { r.db.Close() }

// EnsureSchema creates the output tables if absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, s := range schemaStatements(r.cfg.FactTable, r.cfg.AttributionTable, r.cfg.MetricsTable, r.cfg.TermsTable) {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
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
			f.EventDate.Format(dateLayout),
			f.EventTimestamp,
			f.EventName,
			f.UserPseudoID,
			optStr(f.SearchTerm),
			optInt(f.ResultCount),
			f.SearchType,
			optInt(f.ClickPosition),
			boolToFlag(f.IsZeroResult),
			f.CountryCode,
			f.Region,
			f.DeviceCategory,
			f.TrafficSource,
			f.ProcessedAt.UTC().Format(time.RFC3339Nano),
			f.DataDate.Format(dateLayout),
		})
	}
	n, err := r.replaceByDate(ctx, r.cfg.FactTable, "data_date", date, warehouse.FactColumns, vals)
	return n, err
}

// FactPartition implements storage.Repository.
func (r *Repository) FactPartition(ctx context.Context, date time.Time) ([]warehouse.FactRow, error) {
	cols := make([]any, 0, len(warehouse.FactColumns))
	for _, c := range warehouse.FactColumns {
		cols = append(cols, goqu.C(c))
	}
	sqlStr, args, err := dialect.From(goqu.T(r.cfg.FactTable)).
		Select(cols...).
		Where(goqu.C("data_date").Eq(date.Format(dateLayout))).
		Order(goqu.C("event_timestamp").Asc(), goqu.C("user_pseudo_id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build fact query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("fact partition: %w", err)
	}
	defer rows.Close()

	var out []warehouse.FactRow
	for rows.Next() {
		var (
			f                     warehouse.FactRow
			eventDate, dataDate   string
			processedAt           string
			term                  sql.NullString
			resultCount, clickPos sql.NullInt64
			zero                  int64
		)
		if err := rows.Scan(
			&eventDate,
			&f.EventTimestamp,
			&f.EventName,
			&f.UserPseudoID,
			&term,
			&resultCount,
			&f.SearchType,
			&clickPos,
			&zero,
			&f.CountryCode,
			&f.Region,
			&f.DeviceCategory,
			&f.TrafficSource,
			&processedAt,
			&dataDate,
		); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		if f.EventDate, err = time.ParseInLocation(dateLayout, eventDate, time.UTC); err != nil {
			return nil, fmt.Errorf("event_date %q: %w", eventDate, err)
		}
		if f.DataDate, err = time.ParseInLocation(dateLayout, dataDate, time.UTC); err != nil {
			return nil, fmt.Errorf("data_date %q: %w", dataDate, err)
		}
		if f.ProcessedAt, err = time.Parse(time.RFC3339Nano, processedAt); err != nil {
			return nil, fmt.Errorf("etl_processed_at %q: %w", processedAt, err)
		}
		if term.Valid {
			v := term.String
			f.SearchTerm = &v
		}
		if resultCount.Valid {
			v := resultCount.Int64
			f.ResultCount = &v
		}
		if clickPos.Valid {
			v := clickPos.Int64
			f.ClickPosition = &v
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
	sqlStr, args, err := dialect.From(goqu.T(r.cfg.OrdersTable)).
		Select(goqu.C("user_pseudo_id"), goqu.C("order_id"), goqu.C("order_date"), goqu.C("order_value"), goqu.C("product_id")).
		Where(
			goqu.C("user_pseudo_id").In(users),
			goqu.C("order_date").Between(goqu.Range(from.Format(dateLayout), to.Format(dateLayout))),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build orders query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("orders window: %w", err)
	}
	defer rows.Close()

	var out []warehouse.Order
	for rows.Next() {
		var (
			o         warehouse.Order
			orderDate string
		)
		if err := rows.Scan(&o.UserPseudoID, &o.OrderID, &orderDate, &o.OrderValue, &o.ProductID); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if o.OrderDate, err = time.ParseInLocation(dateLayout, orderDate, time.UTC); err != nil {
			return nil, fmt.Errorf("order_date %q: %w", orderDate, err)
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
		var orderDate any
		if a.OrderDate != nil {
			orderDate = a.OrderDate.Format(dateLayout)
		}
		vals = append(vals, []any{
			a.EventDate.Format(dateLayout),
			a.UserPseudoID,
			optStr(a.SearchTerm),
			a.SearchType,
			a.CountryCode,
			a.Region,
			optStr(a.OrderID),
			orderDate,
			optFloat(a.OrderValue),
			optStr(a.ProductID),
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
			m.EventDate.Format(dateLayout),
			m.Region,
			m.CountryCode,
			m.UniqueUsers,
			m.TotalSearches,
			m.SearchesWithClicks,
			optFloat(m.EngagementRatePct),
			m.ZeroResultSearches,
			optFloat(m.ZeroResultRatePct),
			m.DefaultSearches,
			m.AutoSuggestionSearches,
			m.KeywordBoxSearches,
			m.Refinements,
			optFloat(m.RefinementRatePct),
			optFloat(m.AvgResultsReturned),
			m.UsersWithOrders,
			m.TotalRevenue,
			optFloat(m.ConversionRatePct),
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
		vals = append(vals, []any{t.EventDate.Format(dateLayout), t.SearchTerm, t.Searches, t.SharePct})
	}
	_, err := r.replaceByDate(ctx, r.cfg.TermsTable, "event_date", date, warehouse.ZeroResultTermColumns, vals)
	return err
}

// PartitionStats implements storage.Repository.
func (r *Repository) PartitionStats(ctx context.Context, date time.Time) (warehouse.PartitionStats, error) {
	var st warehouse.PartitionStats
	q := fmt.Sprintf(`SELECT
	count(*),
	count(DISTINCT event_timestamp || '|' || user_pseudo_id),
	COALESCE(sum(CASE WHEN user_pseudo_id IS NULL OR user_pseudo_id = '' OR event_date IS NULL THEN 1 ELSE 0 END), 0)
FROM %s WHERE data_date = ?`, quoteIdent(r.cfg.FactTable))

	err := r.db.QueryRowContext(ctx, q, date.Format(dateLayout)).
		Scan(&st.RowCount, &st.DistinctKeyCount, &st.NullCritical)
	if err != nil {
		return st, fmt.Errorf("partition stats: %w", err)
	}
	return st, nil
}

// replaceByDate deletes the target date's rows and re-inserts the
// replacements in one transaction.
func (r *Repository) replaceByDate(ctx context.Context, table, dateCol string, date time.Time, columns []string, rows [][]any) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(table), quoteIdent(dateCol))
	if _, err := tx.ExecContext(ctx, del, date.Format(dateLayout)); err != nil {
		return 0, fmt.Errorf("delete partition %s: %w", table, err)
	}

	n, err := insertBatches(ctx, tx, table, columns, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// insertBatches writes rows with multi-value INSERT statements of at most
// insertBatchSize rows each.
func insertBatches(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	var total int64
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
		groups := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if len(row) != len(columns) {
				return total, fmt.Errorf("insert %s: row has %d values, want %d", table, len(row), len(columns))
			}
			groups[i] = placeholder
			args = append(args, row...)
		}

		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = quoteIdent(c)
		}
		stmt := fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES %s",
			quoteIdent(table), strings.Join(quoted, ","), strings.Join(groups, ","),
		)

		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func boolToFlag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// optStr, optInt, and optFloat pass nil pointers to database/sql as typed
// NULLs.
func optStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func optInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
