// Package warehouse defines the typed records persisted by the pipeline and
// the column orderings used for bulk loads. The shapes here are the contract
// between the transform stages and the storage backends; backends map them
// onto their own dialect but never change their meaning.
package warehouse

import "time"

// FactRow is one enriched search event as stored in the date-partitioned,
// append-only fact table. SearchTerm, ResultCount, and ClickPosition are nil
// when the source parameter was absent (or, for ClickPosition, malformed).
type FactRow struct {
	EventDate      time.Time
	EventTimestamp int64
	EventName      string
	UserPseudoID   string
	SearchTerm     *string
	ResultCount    *int64
	SearchType     string
	ClickPosition  *int64
	IsZeroResult   bool
	CountryCode    string
	Region         string
	DeviceCategory string
	TrafficSource  string
	ProcessedAt    time.Time
	DataDate       time.Time
}

// FactColumns is the destination column order for fact-table bulk loads.
var FactColumns = []string{
	"event_date",
	"event_timestamp",
	"event_name",
	"user_pseudo_id",
	"search_term",
	"search_result_count",
	"search_type",
	"click_position",
	"is_zero_result",
	"country_code",
	"region",
	"device_category",
	"traffic_source",
	"etl_processed_at",
	"data_date",
}

// Search type values produced by the enricher.
const (
	SearchTypeDefault        = "default_search"
	SearchTypeAutoSuggestion = "auto_suggestion"
	SearchTypeKeywordBox     = "keyword_box"
	SearchTypeOther          = "other"
)

// Order is one row of the external order ledger. Read-only to this pipeline.
type Order struct {
	UserPseudoID string
	OrderID      string
	OrderDate    time.Time
	OrderValue   float64
	ProductID    string
}

// AttributionRow joins one search group to at most one order. Order fields
// are nil when no order fell inside the attribution window.
type AttributionRow struct {
	EventDate    time.Time
	UserPseudoID string
	SearchTerm   *string
	SearchType   string
	CountryCode  string
	Region       string
	OrderID      *string
	OrderDate    *time.Time
	OrderValue   *float64
	ProductID    *string
}

// AttributionColumns is the destination column order for attribution loads.
var AttributionColumns = []string{
	"event_date",
	"user_pseudo_id",
	"search_term",
	"search_type",
	"country_code",
	"region",
	"order_id",
	"order_date",
	"order_value",
	"product_id",
}

// DailyMetrics is the pre-computed aggregate consumed by reporting: one row
// per (event_date, region, country). Rate fields are nil when their
// denominator was zero.
type DailyMetrics struct {
	EventDate              time.Time
	Region                 string
	CountryCode            string
	UniqueUsers            int64
	TotalSearches          int64
	SearchesWithClicks     int64
	EngagementRatePct      *float64
	ZeroResultSearches     int64
	ZeroResultRatePct      *float64
	DefaultSearches        int64
	AutoSuggestionSearches int64
	KeywordBoxSearches     int64
	Refinements            int64
	RefinementRatePct      *float64
	AvgResultsReturned     *float64
	UsersWithOrders        int64
	TotalRevenue           float64
	ConversionRatePct      *float64
}

// DailyMetricsColumns is the destination column order for metrics loads.
var DailyMetricsColumns = []string{
	"event_date",
	"region",
	"country_code",
	"unique_users",
	"total_searches",
	"searches_with_clicks",
	"engagement_rate_pct",
	"zero_result_searches",
	"zero_result_rate_pct",
	"default_searches",
	"auto_suggestion_searches",
	"keyword_box_searches",
	"refinements",
	"refinement_rate_pct",
	"avg_results_returned",
	"users_with_orders",
	"total_revenue",
	"conversion_rate_pct",
}

// ZeroResultTerm is one entry of the daily content-gap report: a normalized
// search term that returned zero results, with its frequency and share of all
// zero-result submissions that day.
type ZeroResultTerm struct {
	EventDate  time.Time
	SearchTerm string
	Searches   int64
	SharePct   float64
}

// ZeroResultTermColumns is the destination column order for term loads.
var ZeroResultTermColumns = []string{
	"event_date",
	"search_term",
	"searches",
	"share_pct",
}

// PartitionStats summarizes a loaded fact partition for the post-load checks.
type PartitionStats struct {
	RowCount         int64 // all rows in the partition
	DistinctKeyCount int64 // distinct (event_timestamp, user_pseudo_id) pairs
	NullCritical     int64 // rows with missing user_pseudo_id or event_date
}
