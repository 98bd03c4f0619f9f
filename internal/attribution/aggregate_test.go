package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchetl/internal/ga4"
	"searchetl/internal/warehouse"
)

func submit(user, country, region, searchType string, resultCount *int64) warehouse.FactRow {
	f := warehouse.FactRow{
		EventDate:    day,
		EventName:    ga4.EventSearchSubmit,
		UserPseudoID: user,
		SearchType:   searchType,
		CountryCode:  country,
		Region:       region,
		ResultCount:  resultCount,
	}
	if resultCount != nil && *resultCount == 0 {
		f.IsZeroResult = true
	}
	return f
}

func click(user, country, region string) warehouse.FactRow {
	return warehouse.FactRow{
		EventDate:    day,
		EventName:    ga4.EventSearchClick,
		UserPseudoID: user,
		SearchType:   warehouse.SearchTypeDefault,
		CountryCode:  country,
		Region:       region,
	}
}

func refine(user, country, region string) warehouse.FactRow {
	return warehouse.FactRow{
		EventDate:    day,
		EventName:    ga4.EventSearchRefine,
		UserPseudoID: user,
		SearchType:   warehouse.SearchTypeDefault,
		CountryCode:  country,
		Region:       region,
	}
}

func i64(n int64) *int64 { return &n }

func TestAggregateDailyRates(t *testing.T) {
	facts := []warehouse.FactRow{
		submit("u1", "DE", "Europe", warehouse.SearchTypeDefault, i64(10)),
		submit("u1", "DE", "Europe", warehouse.SearchTypeAutoSuggestion, i64(0)),
		submit("u2", "DE", "Europe", warehouse.SearchTypeKeywordBox, i64(5)),
		click("u1", "DE", "Europe"),
		refine("u2", "DE", "Europe"),
	}

	out := AggregateDaily(facts, nil)
	require.Len(t, out, 1)
	m := out[0]

	assert.Equal(t, "Europe", m.Region)
	assert.Equal(t, "DE", m.CountryCode)
	assert.Equal(t, int64(2), m.UniqueUsers)
	assert.Equal(t, int64(3), m.TotalSearches)
	assert.Equal(t, int64(1), m.SearchesWithClicks)
	assert.Equal(t, int64(1), m.ZeroResultSearches)
	assert.Equal(t, int64(1), m.DefaultSearches)
	assert.Equal(t, int64(1), m.AutoSuggestionSearches)
	assert.Equal(t, int64(1), m.KeywordBoxSearches)
	assert.Equal(t, int64(1), m.Refinements)

	require.NotNil(t, m.EngagementRatePct)
	assert.Equal(t, 33.33, *m.EngagementRatePct)
	require.NotNil(t, m.ZeroResultRatePct)
	assert.Equal(t, 33.33, *m.ZeroResultRatePct)
	require.NotNil(t, m.RefinementRatePct)
	assert.Equal(t, 33.33, *m.RefinementRatePct)
	require.NotNil(t, m.AvgResultsReturned)
	assert.Equal(t, 5.0, *m.AvgResultsReturned)
}

func TestAggregateDailyNilRatesOnZeroDenominator(t *testing.T) {
	// Clicks but no submits: engagement denominator is zero.
	facts := []warehouse.FactRow{
		click("u1", "US", "North America"),
	}
	out := AggregateDaily(facts, nil)
	require.Len(t, out, 1)
	m := out[0]

	assert.Nil(t, m.EngagementRatePct)
	assert.Nil(t, m.ZeroResultRatePct)
	assert.Nil(t, m.RefinementRatePct)
	assert.Nil(t, m.AvgResultsReturned)
	require.NotNil(t, m.ConversionRatePct) // one user, zero orders
	assert.Equal(t, 0.0, *m.ConversionRatePct)
}

func TestAggregateDistinctCountsAgainstFanOut(t *testing.T) {
	facts := []warehouse.FactRow{
		submit("u1", "DE", "Europe", warehouse.SearchTypeDefault, i64(3)),
		submit("u1", "DE", "Europe", warehouse.SearchTypeDefault, i64(7)),
		submit("u2", "DE", "Europe", warehouse.SearchTypeDefault, i64(1)),
	}

	// One order fanned out over u1's two search groups. Revenue and users
	// must be counted once.
	oid := "o1"
	odate := day.AddDate(0, 0, 3)
	oval := 120.0
	pid := "p1"
	attrib := []warehouse.AttributionRow{
		{EventDate: day, UserPseudoID: "u1", Region: "Europe", CountryCode: "DE", OrderID: &oid, OrderDate: &odate, OrderValue: &oval, ProductID: &pid},
		{EventDate: day, UserPseudoID: "u1", Region: "Europe", CountryCode: "DE", OrderID: &oid, OrderDate: &odate, OrderValue: &oval, ProductID: &pid},
		{EventDate: day, UserPseudoID: "u2", Region: "Europe", CountryCode: "DE"},
	}

	out := AggregateDaily(facts, attrib)
	require.Len(t, out, 1)
	m := out[0]

	assert.Equal(t, int64(1), m.UsersWithOrders)
	assert.Equal(t, 120.0, m.TotalRevenue)
	require.NotNil(t, m.ConversionRatePct)
	assert.Equal(t, 50.0, *m.ConversionRatePct) // 1 of 2 users converted
}

func TestAggregateGroupsByRegionAndCountry(t *testing.T) {
	facts := []warehouse.FactRow{
		submit("u1", "DE", "Europe", warehouse.SearchTypeDefault, i64(1)),
		submit("u2", "FR", "Europe", warehouse.SearchTypeDefault, i64(1)),
		submit("u3", "US", "North America", warehouse.SearchTypeDefault, i64(1)),
	}
	out := AggregateDaily(facts, nil)
	assert.Len(t, out, 3)
}

func TestAggregateSkipsUnattributableRows(t *testing.T) {
	facts := []warehouse.FactRow{
		submit("u1", "DE", "Europe", warehouse.SearchTypeDefault, i64(1)),
	}
	oid := "o9"
	attrib := []warehouse.AttributionRow{
		// Group that no fact produced.
		{EventDate: day, UserPseudoID: "u9", Region: "Mars", CountryCode: "XX", OrderID: &oid},
	}
	out := AggregateDaily(facts, attrib)
	require.Len(t, out, 1)
	assert.Equal(t, int64(0), out[0].UsersWithOrders)
	assert.Equal(t, 0.0, out[0].TotalRevenue)
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{33.333333, 33.33},
		{66.666666, 66.67},
		{100, 100},
		{0.005, 0.01},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, round2(tt.in))
	}
}
