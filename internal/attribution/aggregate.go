package attribution

import (
	"math"
	"strings"
	"time"

	"searchetl/internal/ga4"
	"searchetl/internal/warehouse"
)

// Event names re-exported locally to keep the hot loops short.
const (
	eventSubmit = ga4.EventSearchSubmit
	eventClick  = ga4.EventSearchClick
	eventRefine = ga4.EventSearchRefine
)

type groupKey struct {
	eventDate   time.Time
	region      string
	countryCode string
}

// accumulator collects per-group counts during the single pass over facts
// and attribution rows.
type accumulator struct {
	users        map[string]struct{}
	submits      int64
	clicks       int64
	zeroResults  int64
	byType       map[string]int64
	refinements  int64
	resultSum    int64
	resultRows   int64
	orderUsers   map[string]struct{}
	orderIDs     map[string]struct{}
	totalRevenue float64
}

// AggregateDaily rolls fact and attribution rows up into one metrics row per
// (event_date, region, country).
//
// Distinct-count semantics guard against join fan-out: converting users and
// revenue are counted over distinct user and order identifiers, never raw
// attribution rows. Rate fields stay nil when their denominator is zero so a
// region with no searches never divides by zero.
func AggregateDaily(facts []warehouse.FactRow, attrib []warehouse.AttributionRow) []warehouse.DailyMetrics {
	groups := make(map[groupKey]*accumulator)
	var order []groupKey

	acc := func(k groupKey) *accumulator {
		a, ok := groups[k]
		if !ok {
			a = &accumulator{
				users:      make(map[string]struct{}),
				byType:     make(map[string]int64),
				orderUsers: make(map[string]struct{}),
				orderIDs:   make(map[string]struct{}),
			}
			groups[k] = a
			order = append(order, k)
		}
		return a
	}

	for i := range facts {
		f := &facts[i]
		a := acc(groupKey{eventDate: f.EventDate, region: f.Region, countryCode: f.CountryCode})
		a.users[f.UserPseudoID] = struct{}{}

		switch f.EventName {
		case eventSubmit:
			a.submits++
			a.byType[f.SearchType]++
			if f.IsZeroResult {
				a.zeroResults++
			}
			if f.ResultCount != nil {
				a.resultSum += *f.ResultCount
				a.resultRows++
			}
		case eventClick:
			a.clicks++
		case eventRefine:
			a.refinements++
		}
	}

	for i := range attrib {
		r := &attrib[i]
		if r.OrderID == nil {
			continue
		}
		k := groupKey{eventDate: r.EventDate, region: r.Region, countryCode: r.CountryCode}
		a, ok := groups[k]
		if !ok {
			// Attribution rows derive from the same facts; an unknown group
			// would mean the inputs are out of sync. Skip rather than invent
			// a group with zero searches.
			continue
		}
		a.orderUsers[r.UserPseudoID] = struct{}{}
		if _, dup := a.orderIDs[*r.OrderID]; !dup {
			a.orderIDs[*r.OrderID] = struct{}{}
			if r.OrderValue != nil {
				a.totalRevenue += *r.OrderValue
			}
		}
	}

	out := make([]warehouse.DailyMetrics, 0, len(order))
	for _, k := range order {
		a := groups[k]
		m := warehouse.DailyMetrics{
			EventDate:              k.eventDate,
			Region:                 k.region,
			CountryCode:            k.countryCode,
			UniqueUsers:            int64(len(a.users)),
			TotalSearches:          a.submits,
			SearchesWithClicks:     a.clicks,
			ZeroResultSearches:     a.zeroResults,
			DefaultSearches:        a.byType[warehouse.SearchTypeDefault],
			AutoSuggestionSearches: a.byType[warehouse.SearchTypeAutoSuggestion],
			KeywordBoxSearches:     a.byType[warehouse.SearchTypeKeywordBox],
			Refinements:            a.refinements,
			UsersWithOrders:        int64(len(a.orderUsers)),
			TotalRevenue:           a.totalRevenue,
		}

		if a.submits > 0 {
			m.EngagementRatePct = pct(a.clicks, a.submits)
			m.ZeroResultRatePct = pct(a.zeroResults, a.submits)
			m.RefinementRatePct = pct(a.refinements, a.submits)
		}
		if a.resultRows > 0 {
			avg := round2(float64(a.resultSum) / float64(a.resultRows))
			m.AvgResultsReturned = &avg
		}
		if len(a.users) > 0 {
			m.ConversionRatePct = pct(int64(len(a.orderUsers)), int64(len(a.users)))
		}

		out = append(out, m)
	}
	return out
}

// pct returns round(100*num/den, 2) as a pointer. Callers guard den > 0.
func pct(num, den int64) *float64 {
	v := round2(100 * float64(num) / float64(den))
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// normalizeTerm lowercases and trims a search term for frequency counting,
// matching how the reporting layer normalizes terms.
func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
