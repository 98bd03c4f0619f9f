package postgres

import (
	"fmt"
	"strings"
)

// schemaStatements returns the CREATE TABLE statements for the pipeline's
// output tables. The order ledger is external and deliberately absent.
func schemaStatements(factTable, attributionTable, metricsTable, termsTable string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	event_date date NOT NULL,
	event_timestamp bigint NOT NULL,
	event_name text NOT NULL,
	user_pseudo_id text NOT NULL,
	search_term text,
	search_result_count bigint,
	search_type text NOT NULL,
	click_position bigint,
	is_zero_result smallint NOT NULL DEFAULT 0,
	country_code text,
	region text,
	device_category text,
	traffic_source text,
	etl_processed_at timestamptz NOT NULL,
	data_date date NOT NULL
)`, pgFQN(factTable)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (data_date)`,
			pgIdent(indexName(factTable, "data_date")), pgFQN(factTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	event_date date NOT NULL,
	user_pseudo_id text NOT NULL,
	search_term text,
	search_type text NOT NULL,
	country_code text,
	region text,
	order_id text,
	order_date date,
	order_value double precision,
	product_id text
)`, pgFQN(attributionTable)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (event_date)`,
			pgIdent(indexName(attributionTable, "event_date")), pgFQN(attributionTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	event_date date NOT NULL,
	region text NOT NULL,
	country_code text NOT NULL,
	unique_users bigint NOT NULL,
	total_searches bigint NOT NULL,
	searches_with_clicks bigint NOT NULL,
	engagement_rate_pct double precision,
	zero_result_searches bigint NOT NULL,
	zero_result_rate_pct double precision,
	default_searches bigint NOT NULL,
	auto_suggestion_searches bigint NOT NULL,
	keyword_box_searches bigint NOT NULL,
	refinements bigint NOT NULL,
	refinement_rate_pct double precision,
	avg_results_returned double precision,
	users_with_orders bigint NOT NULL,
	total_revenue double precision NOT NULL,
	conversion_rate_pct double precision,
	PRIMARY KEY (event_date, region, country_code)
)`, pgFQN(metricsTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	event_date date NOT NULL,
	search_term text NOT NULL,
	searches bigint NOT NULL,
	share_pct double precision NOT NULL,
	PRIMARY KEY (event_date, search_term)
)`, pgFQN(termsTable)),
	}
}

// indexName derives a stable index name from a possibly schema-qualified
// table name and a column.
func indexName(table, column string) string {
	base := table
	if i := strings.LastIndex(table, "."); i >= 0 {
		base = table[i+1:]
	}
	return base + "_" + column + "_idx"
}

// pgIdent safely quotes a single identifier segment.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.search_events_fact"
// to "public"."search_events_fact".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}
