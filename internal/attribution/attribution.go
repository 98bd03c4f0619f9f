// Package attribution implements the fifth pipeline stage: joining the
// processing date's fact rows against the order ledger inside a bounded
// forward window, then rolling the joined rows up into one metrics row per
// (date, region, country).
//
// The join and the rollup run in memory over typed records; the declarative
// grouping semantics of the reporting layer map onto plain map-keyed passes
// with insertion order preserved for deterministic output.
package attribution

import (
	"sort"
	"time"

	"searchetl/internal/warehouse"
)

// DefaultWindowDays is the forward attribution window.
const DefaultWindowDays = 30

// searchKey is the attribution grain: one row per distinct combination, per
// matched order (or one null-order row when nothing matched).
type searchKey struct {
	eventDate   time.Time
	user        string
	searchTerm  string
	hasTerm     bool
	searchType  string
	countryCode string
	region      string
}

// Attribute left-joins fact rows to orders. An order matches a search group
// when the user ids are equal and the order date falls within
// [searchDate, searchDate+windowDays]. One group can fan out into several
// rows (one per matching order); a group with no match yields a single row
// with nil order fields.
func Attribute(facts []warehouse.FactRow, orders []warehouse.Order, windowDays int) []warehouse.AttributionRow {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	ordersByUser := make(map[string][]warehouse.Order)
	for _, o := range orders {
		ordersByUser[o.UserPseudoID] = append(ordersByUser[o.UserPseudoID], o)
	}

	var keys []searchKey
	seen := make(map[searchKey]struct{}, len(facts))
	for i := range facts {
		k := keyOf(&facts[i])
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	var out []warehouse.AttributionRow
	for _, k := range keys {
		base := warehouse.AttributionRow{
			EventDate:    k.eventDate,
			UserPseudoID: k.user,
			SearchType:   k.searchType,
			CountryCode:  k.countryCode,
			Region:       k.region,
		}
		if k.hasTerm {
			term := k.searchTerm
			base.SearchTerm = &term
		}

		windowEnd := k.eventDate.AddDate(0, 0, windowDays)
		matched := false
		for _, o := range ordersByUser[k.user] {
			if o.OrderDate.Before(k.eventDate) || o.OrderDate.After(windowEnd) {
				continue
			}
			row := base
			oid, odate, oval, pid := o.OrderID, o.OrderDate, o.OrderValue, o.ProductID
			row.OrderID = &oid
			row.OrderDate = &odate
			row.OrderValue = &oval
			row.ProductID = &pid
			out = append(out, row)
			matched = true
		}
		if !matched {
			out = append(out, base)
		}
	}

	return out
}

func keyOf(f *warehouse.FactRow) searchKey {
	k := searchKey{
		eventDate:   f.EventDate,
		user:        f.UserPseudoID,
		searchType:  f.SearchType,
		countryCode: f.CountryCode,
		region:      f.Region,
	}
	if f.SearchTerm != nil {
		k.searchTerm = *f.SearchTerm
		k.hasTerm = true
	}
	return k
}

// ZeroResultTerms builds the daily content-gap report: the topN most common
// normalized search terms among zero-result submissions for date, with each
// term's share of all zero-result submissions. Ties sort by term for stable
// output.
func ZeroResultTerms(facts []warehouse.FactRow, date time.Time, topN int) []warehouse.ZeroResultTerm {
	if topN <= 0 {
		topN = 20
	}

	counts := make(map[string]int64)
	var total int64
	for i := range facts {
		f := &facts[i]
		if f.EventName != eventSubmit || !f.IsZeroResult || f.SearchTerm == nil {
			continue
		}
		term := normalizeTerm(*f.SearchTerm)
		if term == "" {
			continue
		}
		counts[term]++
		total++
	}
	if total == 0 {
		return nil
	}

	out := make([]warehouse.ZeroResultTerm, 0, len(counts))
	for term, n := range counts {
		out = append(out, warehouse.ZeroResultTerm{
			EventDate:  date,
			SearchTerm: term,
			Searches:   n,
			SharePct:   round2(100 * float64(n) / float64(total)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Searches != out[j].Searches {
			return out[i].Searches > out[j].Searches
		}
		return out[i].SearchTerm < out[j].SearchTerm
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
