package sqlite

import "fmt"

// schemaStatements returns the CREATE TABLE statements for the pipeline's
// output tables in SQLite dialect. Dates are TEXT; the order ledger is
// external and deliberately absent.
func schemaStatements(factTable, attributionTable, metricsTable, termsTable string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	event_date TEXT NOT NULL,
	event_timestamp INTEGER NOT NULL,
	event_name TEXT NOT NULL,
	user_pseudo_id TEXT NOT NULL,
	search_term TEXT,
	search_result_count INTEGER,
	search_type TEXT NOT NULL,
	click_position INTEGER,
	is_zero_result INTEGER NOT NULL DEFAULT 0,
	country_code TEXT,
	region TEXT,
	device_category TEXT,
	traffic_source TEXT,
	etl_processed_at TEXT NOT NULL,
	data_date TEXT NOT NULL
)`, quoteIdent(factTable)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (data_date)`,
			quoteIdent(factTable+"_data_date_idx"), quoteIdent(factTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	event_date TEXT NOT NULL,
	user_pseudo_id TEXT NOT NULL,
	search_term TEXT,
	search_type TEXT NOT NULL,
	country_code TEXT,
	region TEXT,
	order_id TEXT,
	order_date TEXT,
	order_value REAL,
	product_id TEXT
)`, quoteIdent(attributionTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	event_date TEXT NOT NULL,
	region TEXT NOT NULL,
	country_code TEXT NOT NULL,
	unique_users INTEGER NOT NULL,
	total_searches INTEGER NOT NULL,
	searches_with_clicks INTEGER NOT NULL,
	engagement_rate_pct REAL,
	zero_result_searches INTEGER NOT NULL,
	zero_result_rate_pct REAL,
	default_searches INTEGER NOT NULL,
	auto_suggestion_searches INTEGER NOT NULL,
	keyword_box_searches INTEGER NOT NULL,
	refinements INTEGER NOT NULL,
	refinement_rate_pct REAL,
	avg_results_returned REAL,
	users_with_orders INTEGER NOT NULL,
	total_revenue REAL NOT NULL,
	conversion_rate_pct REAL,
	PRIMARY KEY (event_date, region, country_code)
)`, quoteIdent(metricsTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	event_date TEXT NOT NULL,
	search_term TEXT NOT NULL,
	searches INTEGER NOT NULL,
	share_pct REAL NOT NULL,
	PRIMARY KEY (event_date, search_term)
)`, quoteIdent(termsTable)),
	}
}
